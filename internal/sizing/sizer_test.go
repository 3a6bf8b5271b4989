package sizing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ducminhle1904/quantile-risk-engine/pkg/config"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/types"
)

func unconstrained() config.RiskConfig {
	cfg := config.MustPreset(config.ProfileAggressive)
	cfg.MaxPositionSize = 1.0
	cfg.VolatilityAdjustment = false
	return cfg
}

func longSignal(p float64) types.Signal {
	return types.Signal{Symbol: "AAPL", Side: types.SideLong, Entry: 100, StopLoss: 95, TakeProfit: 115, Confidence: p, Volatility: 0.1}
}

// TestSize_KellyClampedToCap sizes a strong edge at the 25% cap: 100k capital → 250 shares
func TestSize_KellyClampedToCap(t *testing.T) {
	s := NewSizer()
	sig := longSignal(0.7)

	assert.InDelta(t, 3.0, Odds(sig), 1e-12)
	assert.InDelta(t, 0.6, KellyFraction(0.7, 3), 1e-12)
	assert.InDelta(t, 0.25, s.Fraction(sig, unconstrained()), 1e-12)

	qty := s.Size(sig, 100, unconstrained(), Capital{Available: 100000, TotalEquity: 100000})
	assert.InDelta(t, 250.0, qty, 1e-9)
}

// TestSize_VolatilityAdjustment scales the fraction by 1/(1+vol)
func TestSize_VolatilityAdjustment(t *testing.T) {
	cfg := unconstrained()
	cfg.VolatilityAdjustment = true

	qty := NewSizer().Size(longSignal(0.7), 100, cfg, Capital{Available: 100000, TotalEquity: 100000})
	assert.InDelta(t, 25000/1.1/100, qty, 1e-9)
}

// TestSize_PositionCap caps notional at maxPositionSize × equity
func TestSize_PositionCap(t *testing.T) {
	cfg := unconstrained()
	cfg.MaxPositionSize = 0.1

	qty := NewSizer().Size(longSignal(0.7), 100, cfg, Capital{Available: 100000, TotalEquity: 100000})
	assert.InDelta(t, 100.0, qty, 1e-9)
}

// TestSize_NoTradeZone returns zero for non-positive edge
func TestSize_NoTradeZone(t *testing.T) {
	s := NewSizer()
	capital := Capital{Available: 100000, TotalEquity: 100000}
	tests := []struct {
		name string
		sig  types.Signal
	}{
		{"coin flip", longSignal(0.5)},
		{"losing side", longSignal(0.4)},
		{"odds at one", types.Signal{Side: types.SideLong, Entry: 100, StopLoss: 95, TakeProfit: 105, Confidence: 0.9}},
		{"odds below one", types.Signal{Side: types.SideLong, Entry: 100, StopLoss: 90, TakeProfit: 105, Confidence: 0.9}},
		{"zero risk", types.Signal{Side: types.SideLong, Entry: 100, StopLoss: 100, TakeProfit: 105, Confidence: 0.9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, 0.0, s.Size(tt.sig, 100, unconstrained(), capital))
		})
	}
}

// TestSize_KellyNeverExceedsCap checks the clamp over a grid of edges
func TestSize_KellyNeverExceedsCap(t *testing.T) {
	s := NewSizer()
	cfg := unconstrained()
	for p := 0.0; p <= 1.0; p += 0.05 {
		for tp := 100.5; tp < 200; tp += 7.5 {
			sig := types.Signal{Side: types.SideLong, Entry: 100, StopLoss: 95, TakeProfit: tp, Confidence: p}
			f := s.Fraction(sig, cfg)
			assert.GreaterOrEqual(t, f, 0.0)
			assert.LessOrEqual(t, f, 0.25)
		}
	}
}

// TestSize_ShortUsesSwappedQuantiles checks odds for a short proposal
func TestSize_ShortUsesSwappedQuantiles(t *testing.T) {
	sig := types.Signal{Side: types.SideShort, Entry: 100, StopLoss: 105, TakeProfit: 85, Confidence: 0.7}
	assert.InDelta(t, 3.0, Odds(sig), 1e-12)

	qty := NewSizer().Size(sig, 100, unconstrained(), Capital{Available: 50000, TotalEquity: 100000})
	assert.InDelta(t, 125.0, qty, 1e-9)
}

// TestSize_FixedFraction sizes from total equity limited by free cash
func TestSize_FixedFraction(t *testing.T) {
	cfg := unconstrained()
	cfg.PositionSizingMethod = config.SizingFixed
	cfg.FixedFraction = 0.1

	qty := NewSizer().Size(longSignal(0.7), 100, cfg, Capital{Available: 100000, TotalEquity: 100000})
	assert.InDelta(t, 100.0, qty, 1e-9)

	qty = NewSizer().Size(longSignal(0.7), 100, cfg, Capital{Available: 5000, TotalEquity: 100000})
	assert.InDelta(t, 50.0, qty, 1e-9)
}
