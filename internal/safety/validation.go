package safety

import (
	"fmt"
	"math"
	"strings"

	engerrors "github.com/ducminhle1904/quantile-risk-engine/internal/errors"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/types"
)

// ValidationResult represents the result of a validation check
type ValidationResult struct {
	Valid   bool
	Message string
	Code    string
}

// Err converts a failed result into a typed engine error, nil when valid
func (r ValidationResult) Err(sentinel *engerrors.EngineError, component, operation string) error {
	if r.Valid {
		return nil
	}
	return engerrors.New(sentinel, component, operation, r.Message).WithContext("code", r.Code)
}

// Validator provides input validation for prices, orders and forecasts
type Validator struct{}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidatePrice validates a price value for trading
func (v *Validator) ValidatePrice(price float64, symbol string) ValidationResult {
	if math.IsNaN(price) {
		return invalid("INVALID_PRICE_NAN", "invalid price for %s: price is NaN", symbol)
	}
	if math.IsInf(price, 0) {
		return invalid("INVALID_PRICE_INF", "invalid price for %s: price is infinite", symbol)
	}
	if price <= 0 {
		return invalid("INVALID_PRICE_NEGATIVE", "invalid price %.8f for %s: price must be positive", price, symbol)
	}
	if price > 1e10 {
		return invalid("PRICE_OUT_OF_BOUNDS", "suspicious price %.8f for %s: exceeds reasonable bounds", price, symbol)
	}
	return ValidationResult{Valid: true}
}

// ValidateQuantity validates a quantity value for trading
func (v *Validator) ValidateQuantity(quantity float64, symbol string) ValidationResult {
	if math.IsNaN(quantity) || math.IsInf(quantity, 0) {
		return invalid("INVALID_QUANTITY_NAN", "invalid quantity for %s: quantity is not finite", symbol)
	}
	if quantity <= 0 {
		return invalid("INVALID_QUANTITY_NEGATIVE", "invalid quantity %.8f for %s: quantity must be positive", quantity, symbol)
	}
	return ValidationResult{Valid: true}
}

// ValidateOrder checks the static fields of an order
func (v *Validator) ValidateOrder(order types.Order) ValidationResult {
	if strings.TrimSpace(order.Symbol) == "" {
		return invalid("INVALID_SYMBOL", "order has empty symbol")
	}
	if !order.Side.Valid() {
		return invalid("INVALID_SIDE", "invalid order side %q for %s", order.Side, order.Symbol)
	}
	if order.Type != "" && order.Type != types.OrderMarket {
		return invalid("UNSUPPORTED_ORDER_TYPE", "unsupported order type %q for %s", order.Type, order.Symbol)
	}
	return v.ValidateQuantity(order.Quantity, order.Symbol)
}

// ValidateForecast checks quantile ordering, probability range and volatility.
// Return-unit forecasts are checked on their raw values.
func (v *Validator) ValidateForecast(f types.Forecast) ValidationResult {
	if strings.TrimSpace(f.Symbol) == "" {
		return invalid("FORECAST_NO_SYMBOL", "forecast has empty symbol")
	}
	if f.AsOf.IsZero() {
		return invalid("FORECAST_NO_TIMESTAMP", "forecast for %s has no as-of time", f.Symbol)
	}
	for name, val := range map[string]float64{"q10": f.Q10, "q50": f.Q50, "q90": f.Q90, "prob_up": f.ProbUp, "volatility": f.Volatility} {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return invalid("FORECAST_NOT_FINITE", "forecast for %s has non-finite %s", f.Symbol, name)
		}
	}
	if f.Q10 > f.Q50 || f.Q50 > f.Q90 {
		return invalid("FORECAST_QUANTILE_ORDER", "forecast for %s violates q10 <= q50 <= q90 (%.6f, %.6f, %.6f)", f.Symbol, f.Q10, f.Q50, f.Q90)
	}
	if f.ProbUp < 0 || f.ProbUp > 1 {
		return invalid("FORECAST_PROB_RANGE", "forecast for %s has prob_up %.4f outside [0, 1]", f.Symbol, f.ProbUp)
	}
	if f.Volatility < 0 {
		return invalid("FORECAST_NEGATIVE_VOL", "forecast for %s has negative volatility %.6f", f.Symbol, f.Volatility)
	}
	switch f.Unit {
	case "", types.UnitPrice:
		if f.Q10 <= 0 {
			return invalid("FORECAST_NON_POSITIVE_PRICE", "forecast for %s has non-positive price quantile %.6f", f.Symbol, f.Q10)
		}
	case types.UnitReturn:
		if f.Q10 <= -1 {
			return invalid("FORECAST_RETURN_RANGE", "forecast for %s has return quantile %.6f at or below -100%%", f.Symbol, f.Q10)
		}
	default:
		return invalid("FORECAST_UNKNOWN_UNIT", "forecast for %s has unknown unit %q", f.Symbol, f.Unit)
	}
	return ValidationResult{Valid: true}
}

func invalid(code, format string, args ...interface{}) ValidationResult {
	return ValidationResult{Valid: false, Code: code, Message: fmt.Sprintf(format, args...)}
}
