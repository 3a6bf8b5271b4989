package forecast

import (
	"context"
	"errors"
	"time"

	"github.com/ducminhle1904/quantile-risk-engine/pkg/types"
)

// ErrNoForecast is returned when no forecast is known for a symbol at or
// before the requested time
var ErrNoForecast = errors.New("no forecast available")

// Source supplies the most recent forecast for a symbol as of a point in
// time. Forecasts dated after asOf are never returned.
type Source interface {
	Forecast(ctx context.Context, symbol string, asOf time.Time) (types.Forecast, error)
}

// PriceSource supplies the current price of a symbol. A false second return
// means the price is unknown, which aborts only the order that needed it.
type PriceSource interface {
	CurrentPrice(ctx context.Context, symbol string) (float64, bool, error)
}

// Handler consumes forecasts delivered by a Watcher
type Handler func(ctx context.Context, forecasts []types.Forecast) error
