package portfolio

import "math"

// DefaultExposure is the shared stateless exposure calculator
var DefaultExposure ExposureCalculator = &DefaultExposureCalculator{}

// DefaultExposureCalculator implements the ExposureCalculator interface
type DefaultExposureCalculator struct{}

// NewExposureCalculator creates a new exposure calculator
func NewExposureCalculator() ExposureCalculator {
	return &DefaultExposureCalculator{}
}

// GrossExposure sums the absolute notional of every open position at its mark
func (c *DefaultExposureCalculator) GrossExposure(state *State) float64 {
	total := 0.0
	for _, p := range state.Positions {
		total += math.Abs(p.Notional())
	}
	return total
}

// Leverage is gross exposure over total equity
//
// Example: $150k of positions on $100k equity = 1.5x
func (c *DefaultExposureCalculator) Leverage(state *State) float64 {
	return c.LeverageAfter(state, 0)
}

// LeverageAfter is the leverage that would result from adding notional
// to the book. Non-positive equity yields +Inf.
func (c *DefaultExposureCalculator) LeverageAfter(state *State, additionalNotional float64) float64 {
	equity := state.TotalEquity()
	exposure := c.GrossExposure(state) + math.Abs(additionalNotional)
	if equity <= 0 {
		if exposure == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return exposure / equity
}
