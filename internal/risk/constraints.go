package risk

import (
	"fmt"
	"time"

	"github.com/ducminhle1904/quantile-risk-engine/internal/portfolio"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/config"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/types"
)

// ConstraintEngine evaluates the portfolio-level risk rules. All rules run
// on every call so the caller sees the complete set of breaches.
type ConstraintEngine struct {
	cfg             config.RiskConfig
	exposure        portfolio.ExposureCalculator
	enforceDrawdown bool
}

// NewConstraintEngine creates a constraint engine. The drawdown rule is only
// evaluated when enforceDrawdown is set (batch mode).
func NewConstraintEngine(cfg config.RiskConfig, enforceDrawdown bool) *ConstraintEngine {
	return &ConstraintEngine{
		cfg:             cfg,
		exposure:        portfolio.NewExposureCalculator(),
		enforceDrawdown: enforceDrawdown,
	}
}

// Config returns the risk configuration in force
func (e *ConstraintEngine) Config() config.RiskConfig {
	return e.cfg
}

// IncreasesExposure reports whether order opens or adds to a position.
// Orders that only reduce exposure are never blocked.
func IncreasesExposure(order types.Order, state *portfolio.State) bool {
	pos, ok := state.Position(order.Symbol)
	if !ok {
		return true
	}
	return pos.Side == order.Side.PositionSide()
}

// Check evaluates every rule without touching the portfolio
func (e *ConstraintEngine) Check(order types.Order, state *portfolio.State, at time.Time) []types.Violation {
	if !IncreasesExposure(order, state) {
		return nil
	}

	equity := state.TotalEquity()
	price := order.RequestedPrice
	if price <= 0 {
		if pos, ok := state.Position(order.Symbol); ok {
			price = pos.MarkPrice
		}
	}
	notional := order.Quantity * price

	var out []types.Violation
	add := func(rule types.Rule, format string, args ...interface{}) {
		o := order
		out = append(out, types.Violation{
			Timestamp: at,
			Rule:      rule,
			Detail:    fmt.Sprintf(format, args...),
			Order:     &o,
		})
	}

	// 1. leverage
	if lev := e.exposure.LeverageAfter(state, notional); lev > e.cfg.MaxLeverage {
		add(types.RuleMaxLeverage, "leverage %.2fx would exceed %.2fx", lev, e.cfg.MaxLeverage)
	}

	// 2. position size
	if equity <= 0 || notional/equity > e.cfg.MaxPositionSize {
		add(types.RuleMaxPositionSize, "notional %.2f exceeds %.1f%% of equity %.2f", notional, e.cfg.MaxPositionSize*100, equity)
	}

	// 3. trades per day
	if e.cfg.MaxTradesPerDay > 0 {
		if n := state.TradesOn(at); n >= e.cfg.MaxTradesPerDay {
			add(types.RuleMaxTradesPerDay, "%d trades today, limit %d", n, e.cfg.MaxTradesPerDay)
		}
	}

	// 4. daily loss
	if ret := dailyReturn(state, at); ret <= -e.cfg.MaxDailyLoss {
		add(types.RuleMaxDailyLoss, "equity down %.2f%% today, limit %.2f%%", -ret*100, e.cfg.MaxDailyLoss*100)
	}

	// 5. cooldown after stop-loss
	if e.cfg.CooldownAfterStopDays > 0 && !state.LastStopLossExit.IsZero() {
		until := state.LastStopLossExit.Add(time.Duration(e.cfg.CooldownAfterStopDays) * 24 * time.Hour)
		if at.Before(until) {
			add(types.RuleCooldownAfterStop, "cooling down after stop-loss until %s", until.Format(time.RFC3339))
		}
	}

	// 6. drawdown (batch only)
	if e.enforceDrawdown {
		if dd := state.Drawdown(); dd >= e.cfg.MaxDrawdown {
			add(types.RuleMaxDrawdown, "drawdown %.2f%% reached limit %.2f%%", dd*100, e.cfg.MaxDrawdown*100)
		}
	}

	return out
}

// Validate implements ConstraintChecker
func (e *ConstraintEngine) Validate(order types.Order, state *portfolio.State, at time.Time) error {
	violations := e.Check(order, state, at)
	if len(violations) == 0 {
		return nil
	}
	for _, v := range violations {
		state.RecordViolation(v)
	}
	return &ConstraintError{Symbol: order.Symbol, Violations: violations}
}

// ShouldLiquidate implements ConstraintChecker
func (e *ConstraintEngine) ShouldLiquidate(state *portfolio.State) bool {
	return e.enforceDrawdown && len(state.Positions) > 0 && state.Drawdown() >= e.cfg.MaxDrawdown
}

// dailyReturn measures against day-start equity, treating a stale day as flat
func dailyReturn(state *portfolio.State, at time.Time) float64 {
	if !types.SameDay(state.CurrentDay, at) {
		return 0
	}
	return state.DailyReturn()
}

var _ ConstraintChecker = (*ConstraintEngine)(nil)
