package portfolio

import (
	"time"

	"github.com/ducminhle1904/quantile-risk-engine/pkg/types"
)

// StateManager handles portfolio checkpoint persistence
type StateManager interface {
	Save(state *State) error
	Load() (*State, error)
	Lock() error
	Unlock() error
	IsLocked() bool
}

// OrderExecutor applies an order to a portfolio at the given quote
type OrderExecutor interface {
	Execute(order types.Order, price float64, state *State, at time.Time) (Trade, error)
}

// ExposureCalculator computes leverage figures for risk checks
type ExposureCalculator interface {
	GrossExposure(state *State) float64
	Leverage(state *State) float64
	LeverageAfter(state *State, additionalNotional float64) float64
}
