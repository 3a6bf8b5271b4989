package forecast

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ducminhle1904/quantile-risk-engine/pkg/types"
)

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

var columnAliases = map[string][]string{
	"symbol":       {"symbol", "ticker"},
	"as_of":        {"as_of", "asof", "timestamp", "date"},
	"q10":          {"q10", "p10"},
	"q50":          {"q50", "p50", "median"},
	"q90":          {"q90", "p90"},
	"prob_up":      {"prob_up", "probup", "probability_up"},
	"volatility":   {"volatility", "vol"},
	"horizon_days": {"horizon_days", "horizon"},
	"unit":         {"unit"},
}

// LoadCSV reads a forecast file with a header row. Column order is free;
// horizon_days, volatility and unit are optional.
func LoadCSV(path string) ([]types.Forecast, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open forecasts %s: %w", path, err)
	}
	defer file.Close()
	return ParseCSV(file)
}

// ParseCSV reads forecasts from r. Unparseable rows are skipped with a warning.
func ParseCSV(r io.Reader) ([]types.Forecast, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read forecast header: %w", err)
	}
	cols := mapColumns(header)
	for _, required := range []string{"symbol", "as_of", "q10", "q50", "q90", "prob_up"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("forecast file missing column %q", required)
		}
	}

	var out []types.Forecast
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("error reading forecasts at line %d: %w", line, err)
		}
		f, err := parseRecord(record, cols)
		if err != nil {
			log.Warn().Int("line", line).Err(err).Msg("skipping forecast row")
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func mapColumns(header []string) map[string]int {
	cols := make(map[string]int)
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		for canonical, aliases := range columnAliases {
			for _, alias := range aliases {
				if name == alias {
					cols[canonical] = i
				}
			}
		}
	}
	return cols
}

func parseRecord(record []string, cols map[string]int) (types.Forecast, error) {
	get := func(name string) (string, bool) {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return "", false
		}
		return strings.TrimSpace(record[i]), true
	}
	num := func(name string) (float64, error) {
		s, ok := get(name)
		if !ok || s == "" {
			return 0, nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", name, err)
		}
		return v, nil
	}

	var f types.Forecast
	sym, _ := get("symbol")
	f.Symbol = strings.ToUpper(sym)
	asOf, _ := get("as_of")
	t, err := parseTime(asOf)
	if err != nil {
		return f, err
	}
	f.AsOf = t

	for name, dst := range map[string]*float64{
		"q10": &f.Q10, "q50": &f.Q50, "q90": &f.Q90,
		"prob_up": &f.ProbUp, "volatility": &f.Volatility,
	} {
		if *dst, err = num(name); err != nil {
			return f, err
		}
	}
	h, err := num("horizon_days")
	if err != nil {
		return f, err
	}
	f.HorizonDays = int(h)
	if unit, ok := get("unit"); ok && unit != "" {
		f.Unit = types.QuantileUnit(strings.ToLower(unit))
	}
	return f, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
