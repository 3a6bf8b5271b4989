package sizing

import (
	"math"

	"github.com/ducminhle1904/quantile-risk-engine/pkg/config"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/types"
)

// Capital is the portfolio capital visible to the sizer
type Capital struct {
	Available   float64 // free cash
	TotalEquity float64 // cash plus marked positions
}

// PositionSizer converts a trade proposal into an order quantity. A zero
// quantity means no trade and is not an error.
type PositionSizer interface {
	Size(sig types.Signal, price float64, cfg config.RiskConfig, capital Capital) float64
}

// Sizer implements Kelly and fixed-fraction sizing
type Sizer struct{}

// NewSizer creates a new position sizer
func NewSizer() *Sizer {
	return &Sizer{}
}

// KellyFraction returns the unclamped Kelly fraction (b·p − q)/b
func KellyFraction(p, b float64) float64 {
	if b <= 0 {
		return 0
	}
	return (b*p - (1 - p)) / b
}

// Odds returns the reward-to-risk ratio of the proposal
func Odds(sig types.Signal) float64 {
	risk := sig.Risk()
	if risk <= 0 {
		return 0
	}
	return sig.Reward() / risk
}

// Fraction returns the share of available capital to commit, or 0 inside the
// no-trade zone (p ≤ 0.5 or b ≤ 1)
func (s *Sizer) Fraction(sig types.Signal, cfg config.RiskConfig) float64 {
	p := sig.Confidence
	b := Odds(sig)
	if p <= 0.5 || b <= 1 || math.IsNaN(p) || math.IsNaN(b) {
		return 0
	}

	var f float64
	switch cfg.PositionSizingMethod {
	case config.SizingFixed:
		f = cfg.FixedFraction
	default:
		f = KellyFraction(p, b)
		f = math.Max(0, math.Min(f, cfg.EffectiveKellyCap()))
	}

	if cfg.VolatilityAdjustment && sig.Volatility > 0 {
		f /= 1 + sig.Volatility
	}
	return f
}

// Size implements PositionSizer
func (s *Sizer) Size(sig types.Signal, price float64, cfg config.RiskConfig, capital Capital) float64 {
	if price <= 0 || capital.Available <= 0 || capital.TotalEquity <= 0 {
		return 0
	}
	f := s.Fraction(sig, cfg)
	if f <= 0 {
		return 0
	}

	var notional float64
	if cfg.PositionSizingMethod == config.SizingFixed {
		notional = math.Min(f*capital.TotalEquity, capital.Available)
	} else {
		notional = f * capital.Available
	}
	if limit := cfg.MaxPositionSize * capital.TotalEquity; notional > limit {
		notional = limit
	}
	return notional / price
}
