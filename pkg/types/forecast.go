package types

import "time"

// QuantileUnit tells how the forecast quantiles are expressed.
type QuantileUnit string

const (
	UnitPrice  QuantileUnit = "price"
	UnitReturn QuantileUnit = "return"
)

// Forecast is a distributional prediction for one symbol as of a point in time.
// Values are never mutated once produced.
type Forecast struct {
	Symbol      string       `json:"symbol"`
	AsOf        time.Time    `json:"as_of"`
	Q10         float64      `json:"q10"`
	Q50         float64      `json:"q50"`
	Q90         float64      `json:"q90"`
	ProbUp      float64      `json:"prob_up"`
	Volatility  float64      `json:"volatility"`
	HorizonDays int          `json:"horizon_days"`
	Unit        QuantileUnit `json:"unit,omitempty"`
}

// PriceLevels returns a copy whose quantiles are price levels. Return-unit
// quantiles are applied to price; price-unit forecasts come back unchanged.
func (f Forecast) PriceLevels(price float64) Forecast {
	if f.Unit != UnitReturn {
		return f
	}
	out := f
	out.Q10 = price * (1 + f.Q10)
	out.Q50 = price * (1 + f.Q50)
	out.Q90 = price * (1 + f.Q90)
	out.Unit = UnitPrice
	return out
}

// Horizon returns the forecast horizon as a duration.
func (f Forecast) Horizon() time.Duration {
	return time.Duration(f.HorizonDays) * 24 * time.Hour
}
