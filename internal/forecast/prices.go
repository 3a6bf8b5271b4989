package forecast

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ducminhle1904/quantile-risk-engine/pkg/data"
)

// StaticPrices is a mutable in-memory price table
type StaticPrices struct {
	mu     sync.RWMutex
	prices map[string]float64
}

// NewStaticPrices creates a price table seeded with prices
func NewStaticPrices(prices map[string]float64) *StaticPrices {
	s := &StaticPrices{prices: make(map[string]float64)}
	s.SetAll(prices)
	return s
}

// Set updates one price
func (s *StaticPrices) Set(symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[strings.ToUpper(symbol)] = price
}

// SetAll updates several prices
func (s *StaticPrices) SetAll(prices map[string]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sym, p := range prices {
		s.prices[strings.ToUpper(sym)] = p
	}
}

// CurrentPrice implements PriceSource
func (s *StaticPrices) CurrentPrice(_ context.Context, symbol string) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prices[strings.ToUpper(symbol)]
	return p, ok, nil
}

// QuoteFile reads prices from a JSON file on every call. The file holds
// either {"AAPL": 187.2} or [{"symbol": "AAPL", "price": 187.2}].
type QuoteFile struct {
	path string
}

// NewQuoteFile creates a file-backed price source
func NewQuoteFile(path string) *QuoteFile {
	return &QuoteFile{path: path}
}

// CurrentPrice implements PriceSource
func (q *QuoteFile) CurrentPrice(_ context.Context, symbol string) (float64, bool, error) {
	raw, err := os.ReadFile(q.path)
	if err != nil {
		return 0, false, fmt.Errorf("read quotes: %w", err)
	}
	if !gjson.ValidBytes(raw) {
		return 0, false, fmt.Errorf("quotes file %s is not valid json", q.path)
	}

	symbol = strings.ToUpper(symbol)
	var (
		price float64
		found bool
	)
	root := gjson.ParseBytes(raw)
	if root.IsArray() {
		root.ForEach(func(_, v gjson.Result) bool {
			if strings.EqualFold(v.Get("symbol").String(), symbol) {
				price, found = v.Get("price").Float(), true
				return false
			}
			return true
		})
	} else {
		root.ForEach(func(k, v gjson.Result) bool {
			if strings.EqualFold(k.String(), symbol) {
				price, found = v.Float(), true
				return false
			}
			return true
		})
	}
	return price, found, nil
}

// BarReplay serves the close of the current replay day from a bar panel
type BarReplay struct {
	mu    sync.RWMutex
	panel *data.Panel
	day   time.Time
}

// NewBarReplay creates a replay source positioned on the first day
func NewBarReplay(panel *data.Panel) *BarReplay {
	r := &BarReplay{panel: panel}
	if panel.Len() > 0 {
		r.day = panel.Days[0]
	}
	return r
}

// SetDay moves the replay to day
func (r *BarReplay) SetDay(day time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.day = day
}

// CurrentPrice implements PriceSource
func (r *BarReplay) CurrentPrice(_ context.Context, symbol string) (float64, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.panel.Close(strings.ToUpper(symbol), r.day)
	return p, ok, nil
}
