package data

import (
	"fmt"
	"sort"
	"time"

	"github.com/ducminhle1904/quantile-risk-engine/pkg/types"
)

// DefaultDataFilter implements DataFilter for common filtering operations
type DefaultDataFilter struct{}

// NewDefaultDataFilter creates a new default data filter
func NewDefaultDataFilter() *DefaultDataFilter {
	return &DefaultDataFilter{}
}

// FilterByDateRange keeps bars within [start, end]. Zero bounds are open.
func (f *DefaultDataFilter) FilterByDateRange(data []types.OHLCV, start, end time.Time) []types.OHLCV {
	var filtered []types.OHLCV
	for _, bar := range data {
		if !start.IsZero() && bar.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && bar.Timestamp.After(end) {
			continue
		}
		filtered = append(filtered, bar)
	}
	return filtered
}

// ValidateTimeSequence ensures bars are in chronological order without duplicates
func (f *DefaultDataFilter) ValidateTimeSequence(data []types.OHLCV) error {
	for i := 1; i < len(data); i++ {
		if data[i].Timestamp.Before(data[i-1].Timestamp) {
			return fmt.Errorf("data not in chronological order at index %d: %s comes after %s",
				i, data[i].Timestamp.Format(time.RFC3339), data[i-1].Timestamp.Format(time.RFC3339))
		}
		if data[i].Timestamp.Equal(data[i-1].Timestamp) {
			return fmt.Errorf("duplicate timestamp at index %d: %s",
				i, data[i].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

// SortByTimestamp returns a chronologically sorted copy
func (f *DefaultDataFilter) SortByTimestamp(data []types.OHLCV) []types.OHLCV {
	sorted := make([]types.OHLCV, len(data))
	copy(sorted, data)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}

// RemoveDuplicates keeps the first bar of each calendar day
func (f *DefaultDataFilter) RemoveDuplicates(data []types.OHLCV) []types.OHLCV {
	var filtered []types.OHLCV
	seen := make(map[time.Time]bool)
	for _, bar := range data {
		day := types.DayKey(bar.Timestamp)
		if seen[day] {
			continue
		}
		seen[day] = true
		filtered = append(filtered, bar)
	}
	return filtered
}

// Panel is a set of per-symbol daily closes aligned on a trading calendar
type Panel struct {
	Days   []time.Time
	closes map[time.Time]map[string]float64
}

// BuildPanel aligns bars by UTC calendar day. A day exists when any symbol
// has a bar on it.
func BuildPanel(bars map[string][]types.OHLCV) *Panel {
	p := &Panel{closes: make(map[time.Time]map[string]float64)}
	for sym, series := range bars {
		for _, bar := range series {
			day := types.DayKey(bar.Timestamp)
			row, ok := p.closes[day]
			if !ok {
				row = make(map[string]float64)
				p.closes[day] = row
				p.Days = append(p.Days, day)
			}
			row[sym] = bar.Close
		}
	}
	sort.Slice(p.Days, func(i, j int) bool { return p.Days[i].Before(p.Days[j]) })
	return p
}

// Closes returns the closes known on day. The map is a copy.
func (p *Panel) Closes(day time.Time) map[string]float64 {
	row := p.closes[types.DayKey(day)]
	out := make(map[string]float64, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

// Close returns the close of symbol on day
func (p *Panel) Close(symbol string, day time.Time) (float64, bool) {
	v, ok := p.closes[types.DayKey(day)][symbol]
	return v, ok
}

// Slice returns a panel restricted to days [from, to)
func (p *Panel) Slice(from, to int) *Panel {
	out := &Panel{closes: make(map[time.Time]map[string]float64)}
	if from < 0 {
		from = 0
	}
	if to > len(p.Days) {
		to = len(p.Days)
	}
	for _, day := range p.Days[from:to] {
		out.Days = append(out.Days, day)
		out.closes[day] = p.closes[day]
	}
	return out
}

// Len returns the number of trading days
func (p *Panel) Len() int {
	return len(p.Days)
}
