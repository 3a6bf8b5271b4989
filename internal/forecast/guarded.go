package forecast

import (
	"context"

	"github.com/ducminhle1904/quantile-risk-engine/internal/safety"
)

// GuardedPriceSource fails fast while its circuit breaker is open. A missing
// price counts as a successful lookup.
type GuardedPriceSource struct {
	source  PriceSource
	breaker *safety.CircuitBreaker
}

// NewGuardedPriceSource wraps source with breaker
func NewGuardedPriceSource(source PriceSource, breaker *safety.CircuitBreaker) *GuardedPriceSource {
	return &GuardedPriceSource{source: source, breaker: breaker}
}

// CurrentPrice implements PriceSource
func (g *GuardedPriceSource) CurrentPrice(ctx context.Context, symbol string) (float64, bool, error) {
	var (
		price float64
		ok    bool
	)
	err := g.breaker.Call(func() error {
		var err error
		price, ok, err = g.source.CurrentPrice(ctx, symbol)
		return err
	})
	if err != nil {
		return 0, false, err
	}
	return price, ok, nil
}

// Breaker exposes the breaker for health reporting
func (g *GuardedPriceSource) Breaker() *safety.CircuitBreaker {
	return g.breaker
}
