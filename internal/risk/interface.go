package risk

import (
	"time"

	"github.com/ducminhle1904/quantile-risk-engine/internal/portfolio"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/types"
)

// ConstraintChecker decides whether an order may add exposure to a portfolio
type ConstraintChecker interface {
	// Validate returns nil or a *ConstraintError listing every breached rule.
	// Violations are appended to the portfolio violation log.
	Validate(order types.Order, state *portfolio.State, at time.Time) error

	// ShouldLiquidate reports whether the drawdown limit forces a flat book
	ShouldLiquidate(state *portfolio.State) bool
}
