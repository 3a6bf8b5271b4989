package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ducminhle1904/quantile-risk-engine/pkg/types"
)

// CSVProvider implements DataProvider for CSV files
type CSVProvider struct {
	format CSVColumnMapping
}

// NewCSVProvider creates a new CSV data provider with the daily format
func NewCSVProvider() *CSVProvider {
	return &CSVProvider{
		format: DailyCSVFormat,
	}
}

// NewCSVProviderWithFormat creates a new CSV data provider with custom format
func NewCSVProviderWithFormat(format CSVColumnMapping) *CSVProvider {
	return &CSVProvider{
		format: format,
	}
}

// GetName returns the name of the data provider
func (p *CSVProvider) GetName() string {
	return "CSV Provider"
}

// LoadData loads historical bars from a CSV file
func (p *CSVProvider) LoadData(source string) ([]types.OHLCV, error) {
	file, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", source, err)
	}
	defer file.Close()

	symbol := SymbolFromPath(source)
	return p.Parse(file, symbol)
}

// Parse reads bars from r. Rows that fail to parse are skipped with a warning.
func (p *CSVProvider) Parse(r io.Reader, symbol string) ([]types.OHLCV, error) {
	format := p.format
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	// Skip header
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}

	var data []types.OHLCV
	lineNum := 1
	for {
		record, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("error reading CSV at line %d: %w", lineNum, err)
		}
		lineNum++

		if len(record) < format.MinColumns {
			log.Warn().Int("line", lineNum).Int("expected", format.MinColumns).Int("got", len(record)).Msg("insufficient columns, skipping")
			continue
		}

		timestamp, err := parseTimestamp(record[format.TimestampCol], format.DateFormats)
		if err != nil {
			log.Warn().Int("line", lineNum).Str("value", record[format.TimestampCol]).Msg("invalid timestamp, skipping")
			continue
		}

		var values [5]float64
		cols := [5]int{format.OpenCol, format.HighCol, format.LowCol, format.CloseCol, format.VolumeCol}
		ok := true
		for i, col := range cols {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
			if err != nil {
				log.Warn().Int("line", lineNum).Int("column", col).Str("value", record[col]).Msg("invalid number, skipping")
				ok = false
				break
			}
			values[i] = v
		}
		if !ok {
			continue
		}

		bar := types.OHLCV{
			Symbol:    symbol,
			Timestamp: timestamp,
			Open:      values[0],
			High:      values[1],
			Low:       values[2],
			Close:     values[3],
			Volume:    values[4],
		}
		if format.SymbolCol >= 0 {
			bar.Symbol = strings.ToUpper(strings.TrimSpace(record[format.SymbolCol]))
		}

		if err := validateBar(bar); err != nil {
			log.Warn().Int("line", lineNum).Err(err).Msg("invalid bar, skipping")
			continue
		}
		data = append(data, bar)
	}

	return data, nil
}

// ValidateData validates the integrity of loaded bars
func (p *CSVProvider) ValidateData(data []types.OHLCV) error {
	if len(data) == 0 {
		return fmt.Errorf("no data provided")
	}
	for i, bar := range data {
		if err := validateBar(bar); err != nil {
			return fmt.Errorf("invalid price data at index %d: %w", i, err)
		}
		if i > 0 && bar.Symbol == data[i-1].Symbol && bar.Timestamp.Before(data[i-1].Timestamp) {
			return fmt.Errorf("invalid timestamp sequence at index %d: timestamps must be in chronological order", i)
		}
	}
	return nil
}

// SymbolFromPath derives a ticker from a file name such as data/aapl.csv
func SymbolFromPath(path string) string {
	base := filepath.Base(path)
	return strings.ToUpper(strings.TrimSuffix(base, filepath.Ext(base)))
}

func parseTimestamp(value string, formats []string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range formats {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

func validateBar(bar types.OHLCV) error {
	switch {
	case bar.Open <= 0 || bar.High <= 0 || bar.Low <= 0 || bar.Close <= 0:
		return fmt.Errorf("prices must be positive")
	case bar.High < bar.Low:
		return fmt.Errorf("high (%.4f) cannot be less than low (%.4f)", bar.High, bar.Low)
	case bar.High < bar.Open || bar.High < bar.Close:
		return fmt.Errorf("high (%.4f) must be >= open (%.4f) and close (%.4f)", bar.High, bar.Open, bar.Close)
	case bar.Low > bar.Open || bar.Low > bar.Close:
		return fmt.Errorf("low (%.4f) must be <= open (%.4f) and close (%.4f)", bar.Low, bar.Open, bar.Close)
	}
	return nil
}
