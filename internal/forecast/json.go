package forecast

import (
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"

	engerrors "github.com/ducminhle1904/quantile-risk-engine/internal/errors"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/types"
)

// LoadJSON reads a forecast payload file
func LoadJSON(path string) ([]types.Forecast, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read forecasts %s: %w", path, err)
	}
	return ParseJSON(raw)
}

// ParseJSON decodes a forecast payload. The root may be a single object, an
// array of objects or an object with a "forecasts" array. Every object is
// checked against the forecast schema; the first failure rejects the payload.
func ParseJSON(raw []byte) ([]types.Forecast, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, engerrors.NewForecastError("forecast_json", "empty payload")
	}
	if !gjson.ValidBytes(raw) {
		return nil, engerrors.NewForecastError("forecast_json", "invalid json")
	}

	root := gjson.ParseBytes(raw)
	if list := root.Get("forecasts"); list.Exists() {
		root = list
	}
	var nodes []gjson.Result
	switch {
	case root.IsArray():
		nodes = root.Array()
	case root.IsObject():
		nodes = []gjson.Result{root}
	default:
		return nil, engerrors.NewForecastError("forecast_json", "root must be an object or array")
	}

	out := make([]types.Forecast, 0, len(nodes))
	for i, node := range nodes {
		if !node.IsObject() {
			return nil, engerrors.Newf(engerrors.ErrInvalidForecast, "forecast_json", "parse", "forecast #%d is not an object", i+1)
		}
		if err := ValidateObject(node.Value()); err != nil {
			return nil, engerrors.Wrap(err, engerrors.ErrInvalidForecast, "forecast_json", fmt.Sprintf("schema #%d", i+1))
		}
		f, err := decodeNode(node)
		if err != nil {
			return nil, engerrors.Wrap(err, engerrors.ErrInvalidForecast, "forecast_json", fmt.Sprintf("decode #%d", i+1))
		}
		out = append(out, f)
	}
	return out, nil
}

func decodeNode(node gjson.Result) (types.Forecast, error) {
	f := types.Forecast{
		Symbol:      strings.ToUpper(strings.TrimSpace(node.Get("symbol").String())),
		Q10:         node.Get("q10").Float(),
		Q50:         node.Get("q50").Float(),
		Q90:         node.Get("q90").Float(),
		ProbUp:      node.Get("prob_up").Float(),
		Volatility:  node.Get("volatility").Float(),
		HorizonDays: int(node.Get("horizon_days").Int()),
		Unit:        types.QuantileUnit(node.Get("unit").String()),
	}
	asOf := node.Get("as_of")
	if !asOf.Exists() {
		asOf = node.Get("timestamp")
	}
	if !asOf.Exists() {
		return f, fmt.Errorf("missing as_of")
	}
	t, err := parseTime(asOf.String())
	if err != nil {
		return f, err
	}
	f.AsOf = t
	return f, nil
}

// Load dispatches on the file extension
func Load(path string) ([]types.Forecast, error) {
	switch {
	case strings.HasSuffix(strings.ToLower(path), ".json"):
		return LoadJSON(path)
	case strings.HasSuffix(strings.ToLower(path), ".csv"):
		return LoadCSV(path)
	default:
		return nil, fmt.Errorf("unsupported forecast file %s", path)
	}
}
