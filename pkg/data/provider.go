package data

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ducminhle1904/quantile-risk-engine/pkg/types"
)

// DataManager combines all data operations in a convenient interface
type DataManager struct {
	provider DataProvider
	filter   *DefaultDataFilter
	locator  FileLocator
}

// NewDataManager creates a new data manager with default components
func NewDataManager() *DataManager {
	return NewDataManagerWithProvider(NewCachedProvider(NewCSVProvider()))
}

// NewDataManagerWithProvider creates a data manager with a custom provider
func NewDataManagerWithProvider(provider DataProvider) *DataManager {
	return &DataManager{
		provider: provider,
		filter:   NewDefaultDataFilter(),
		locator:  NewDefaultFileLocator(),
	}
}

// LoadSymbol loads, sorts and de-duplicates the bars of one file
func (dm *DataManager) LoadSymbol(path string) ([]types.OHLCV, error) {
	bars, err := dm.provider.LoadData(path)
	if err != nil {
		return nil, err
	}
	bars = dm.filter.RemoveDuplicates(dm.filter.SortByTimestamp(bars))
	if err := dm.provider.ValidateData(bars); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bars, nil
}

// LoadSymbols loads one bar file per symbol from dataRoot, restricted to
// [start, end] when the bounds are set
func (dm *DataManager) LoadSymbols(dataRoot string, symbols []string, start, end time.Time) (map[string][]types.OHLCV, error) {
	out := make(map[string][]types.OHLCV, len(symbols))
	for _, sym := range symbols {
		path := dm.locator.FindDataFile(dataRoot, sym)
		if path == "" {
			return nil, fmt.Errorf("no data file for %s under %s", sym, dataRoot)
		}
		bars, err := dm.LoadSymbol(path)
		if err != nil {
			return nil, err
		}
		for i := range bars {
			bars[i].Symbol = strings.ToUpper(sym)
		}
		out[strings.ToUpper(sym)] = dm.filter.FilterByDateRange(bars, start, end)
	}
	return out, nil
}

// LoadPanel loads a multi-symbol file and groups it by symbol
func LoadPanel(path string) (map[string][]types.OHLCV, error) {
	bars, err := NewCSVProviderWithFormat(PanelCSVFormat).LoadData(path)
	if err != nil {
		return nil, err
	}
	filter := NewDefaultDataFilter()
	out := make(map[string][]types.OHLCV)
	for _, bar := range bars {
		out[bar.Symbol] = append(out[bar.Symbol], bar)
	}
	for sym, series := range out {
		out[sym] = filter.RemoveDuplicates(filter.SortByTimestamp(series))
	}
	return out, nil
}

// ParseTrailingPeriod parses period strings like "7d", "30d", "180d"
func ParseTrailingPeriod(s string) (time.Duration, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if strings.HasSuffix(s, "days") {
		s = strings.TrimSuffix(s, "days") + "d"
	}
	if strings.HasSuffix(s, "d") {
		nStr := strings.TrimSuffix(s, "d")
		if nStr == "" {
			return 0, false
		}
		n, err := strconv.Atoi(nStr)
		if err != nil || n <= 0 {
			return 0, false
		}
		return time.Duration(n) * 24 * time.Hour, true
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, true
	}
	return 0, false
}
