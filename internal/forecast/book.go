package forecast

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ducminhle1904/quantile-risk-engine/pkg/types"
)

// Book is an in-memory, time-ordered forecast store. It is safe for
// concurrent use.
type Book struct {
	mu       sync.RWMutex
	bySymbol map[string][]types.Forecast
	all      []types.Forecast
}

// NewBook creates a book holding forecasts
func NewBook(forecasts ...types.Forecast) *Book {
	b := &Book{bySymbol: make(map[string][]types.Forecast)}
	b.Add(forecasts...)
	return b
}

// Add inserts forecasts keeping as-of order
func (b *Book) Add(forecasts ...types.Forecast) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, f := range forecasts {
		f.Symbol = strings.ToUpper(strings.TrimSpace(f.Symbol))
		b.bySymbol[f.Symbol] = append(b.bySymbol[f.Symbol], f)
		b.all = append(b.all, f)
	}
	for sym := range b.bySymbol {
		sortByAsOf(b.bySymbol[sym])
	}
	sortByAsOf(b.all)
}

// Forecast implements Source
func (b *Book) Forecast(_ context.Context, symbol string, asOf time.Time) (types.Forecast, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	series := b.bySymbol[strings.ToUpper(symbol)]
	i := sort.Search(len(series), func(i int) bool { return series[i].AsOf.After(asOf) })
	if i == 0 {
		return types.Forecast{}, ErrNoForecast
	}
	return series[i-1], nil
}

// Between returns the forecasts with after < AsOf <= upto in as-of order.
// A zero after is open.
func (b *Book) Between(after, upto time.Time) []types.Forecast {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []types.Forecast
	for _, f := range b.all {
		if f.AsOf.After(upto) {
			break
		}
		if !after.IsZero() && !f.AsOf.After(after) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Symbols lists the symbols with at least one forecast
func (b *Book) Symbols() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, 0, len(b.bySymbol))
	for sym := range b.bySymbol {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of forecasts held
func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.all)
}

func sortByAsOf(fs []types.Forecast) {
	sort.SliceStable(fs, func(i, j int) bool { return fs[i].AsOf.Before(fs[j].AsOf) })
}
