package strategy

import (
	"math"

	"github.com/ducminhle1904/quantile-risk-engine/pkg/config"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/types"
)

// QuantileSignals derives entries from the forecast median and the
// probability of an up move. Stops and targets sit on the outer quantiles.
type QuantileSignals struct{}

// NewQuantileSignals creates the quantile-based signal generator
func NewQuantileSignals() *QuantileSignals {
	return &QuantileSignals{}
}

// GetName returns the name of the generator
func (g *QuantileSignals) GetName() string {
	return "quantile"
}

// Generate implements SignalGenerator
func (g *QuantileSignals) Generate(forecast types.Forecast, price float64, cfg config.RiskConfig) (types.Signal, bool) {
	sig, d := g.Evaluate(forecast, price, cfg)
	return sig, d == DecisionLong || d == DecisionShort
}

// Evaluate is Generate with the reason for the outcome
func (g *QuantileSignals) Evaluate(forecast types.Forecast, price float64, cfg config.RiskConfig) (types.Signal, Decision) {
	if price <= 0 || math.IsNaN(price) {
		return types.Signal{}, DecisionNoEdge
	}
	f := forecast.PriceLevels(price)

	sig := types.Signal{
		Symbol:     f.Symbol,
		Entry:      price,
		Volatility: f.Volatility,
		Timestamp:  f.AsOf,
	}

	switch {
	case f.ProbUp >= cfg.MinEntryProbability && f.Q50 > price:
		sig.Side = types.SideLong
		sig.StopLoss, sig.TakeProfit = f.Q10, f.Q90
		sig.Confidence = f.ProbUp
		if sig.StopLoss >= price {
			return types.Signal{}, DecisionStopWrongSide
		}
	case 1-f.ProbUp >= cfg.MinEntryProbability && f.Q50 < price:
		sig.Side = types.SideShort
		sig.StopLoss, sig.TakeProfit = f.Q90, f.Q10
		sig.Confidence = 1 - f.ProbUp
		if sig.StopLoss <= price {
			return types.Signal{}, DecisionStopWrongSide
		}
	default:
		return types.Signal{}, DecisionNoEdge
	}

	if cfg.MaxTradeDrawdown > 0 && sig.Risk()/price > cfg.MaxTradeDrawdown {
		return types.Signal{}, DecisionStopTooWide
	}

	if sig.Side == types.SideShort {
		return sig, DecisionShort
	}
	return sig, DecisionLong
}
