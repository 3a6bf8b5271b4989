package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	engerrors "github.com/ducminhle1904/quantile-risk-engine/internal/errors"
	"github.com/ducminhle1904/quantile-risk-engine/internal/logger"
	"github.com/ducminhle1904/quantile-risk-engine/internal/monitoring"
	"github.com/ducminhle1904/quantile-risk-engine/internal/performance"
	"github.com/ducminhle1904/quantile-risk-engine/internal/portfolio"
	"github.com/ducminhle1904/quantile-risk-engine/internal/risk"
	"github.com/ducminhle1904/quantile-risk-engine/internal/safety"
	"github.com/ducminhle1904/quantile-risk-engine/internal/sizing"
	"github.com/ducminhle1904/quantile-risk-engine/internal/strategy"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/config"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/types"
)

const component = "engine"

// Outcome classifies what happened to a forecast
type Outcome string

const (
	OutcomeInvalid  Outcome = "invalid"
	OutcomeNoSignal Outcome = "no_signal"
	OutcomeNoSize   Outcome = "no_size"
	OutcomeRejected Outcome = "rejected"
	OutcomeFailed   Outcome = "failed"
	OutcomeOpened   Outcome = "opened"
	OutcomeClosed   Outcome = "closed"
)

// Result is the trace of one forecast through the pipeline
type Result struct {
	Outcome Outcome
	Signal  *types.Signal
	Order   *types.Order
	Trade   *portfolio.Trade
}

// Engine is the driver-independent trading core: forecast validation,
// signal generation, sizing, risk constraints and execution against a
// portfolio the caller owns.
type Engine struct {
	cfg       config.EngineConfig
	signals   strategy.SignalGenerator
	sizer     sizing.PositionSizer
	risk      *risk.ConstraintEngine
	exec      *portfolio.Executor
	analyzer  *performance.Analyzer
	validator *safety.Validator
	log       *logger.Logger
	label     string
}

// Option customizes an Engine
type Option func(*Engine)

// WithLogger attaches a session logger
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithSignalGenerator replaces the quantile signal generator
func WithSignalGenerator(g strategy.SignalGenerator) Option {
	return func(e *Engine) { e.signals = g }
}

// WithSizer replaces the Kelly/fixed sizer
func WithSizer(s sizing.PositionSizer) Option {
	return func(e *Engine) { e.sizer = s }
}

// WithLabel sets the label used for per-run metrics
func WithLabel(label string) Option {
	return func(e *Engine) { e.label = label }
}

// New creates an engine for the resolved configuration. The drawdown rule
// is enforced only in backtest mode.
func New(cfg config.EngineConfig, opts ...Option) *Engine {
	e := &Engine{
		cfg:       cfg,
		signals:   strategy.NewQuantileSignals(),
		sizer:     sizing.NewSizer(),
		risk:      risk.NewConstraintEngine(cfg.Risk, cfg.Mode == config.ModeBacktest),
		exec:      portfolio.NewExecutor(cfg.Costs),
		analyzer:  performance.NewAnalyzer(cfg.RiskFreeRate, cfg.PeriodsPerYear),
		validator: safety.NewValidator(),
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the engine configuration
func (e *Engine) Config() config.EngineConfig {
	return e.cfg
}

// Executor exposes the fill simulator
func (e *Engine) Executor() *portfolio.Executor {
	return e.exec
}

// NewPortfolio creates a fresh portfolio funded with the initial capital
func (e *Engine) NewPortfolio() *portfolio.State {
	return portfolio.NewState(e.cfg.InitialCapital)
}

// Mark rolls the trading day and revalues the portfolio at prices
func (e *Engine) Mark(state *portfolio.State, prices map[string]float64, at time.Time) {
	state.RollDay(at)
	state.MarkToMarket(prices)
	for sym, p := range prices {
		monitoring.UpdatePrice(sym, p)
	}
	if e.label != "" {
		monitoring.UpdatePortfolio(e.label, state.TotalEquity(), state.Drawdown())
	}
}

// ProcessForecast runs one forecast through the pipeline. A non-nil error is
// returned for invalid input, constraint rejections and execution failures;
// only an invariant breach is fatal.
func (e *Engine) ProcessForecast(state *portfolio.State, forecast types.Forecast, price float64, at time.Time) (Result, error) {
	if err := e.validator.ValidateForecast(forecast).Err(engerrors.ErrInvalidForecast, component, "process_forecast"); err != nil {
		e.recordError(err)
		return Result{Outcome: OutcomeInvalid}, err
	}
	if err := e.validator.ValidatePrice(price, forecast.Symbol).Err(engerrors.ErrPriceUnavailable, component, "process_forecast"); err != nil {
		e.recordError(err)
		return Result{Outcome: OutcomeInvalid}, err
	}

	sig, ok := e.signals.Generate(forecast, price, e.cfg.Risk)
	if !ok {
		return Result{Outcome: OutcomeNoSignal}, nil
	}
	res := Result{Signal: &sig}

	if pos, open := state.Position(sig.Symbol); open && pos.Side != sig.Side {
		order := e.exitOrder(pos, price, types.ReasonSignalExit, at)
		res.Order = &order
		trade, err := e.execute(state, order, price, at)
		if err != nil {
			res.Outcome = OutcomeFailed
			return res, err
		}
		res.Outcome, res.Trade = OutcomeClosed, &trade
		return res, nil
	}

	qty := e.sizer.Size(sig, price, e.cfg.Risk, sizing.Capital{Available: state.Cash, TotalEquity: state.TotalEquity()})
	if qty <= 0 {
		res.Outcome = OutcomeNoSize
		return res, nil
	}

	order := types.Order{
		ID:             uuid.NewString(),
		Symbol:         sig.Symbol,
		Side:           sig.Side.EntryOrderSide(),
		Quantity:       qty,
		RequestedPrice: price,
		Type:           types.OrderMarket,
		Reason:         types.ReasonEntry,
		Signal:         &sig,
		CreatedAt:      at,
	}
	res.Order = &order

	if err := e.validate(state, order, at); err != nil {
		res.Outcome = OutcomeRejected
		return res, err
	}

	trade, err := e.execute(state, order, price, at)
	if err != nil {
		res.Outcome = OutcomeFailed
		return res, err
	}
	res.Outcome, res.Trade = OutcomeOpened, &trade
	return res, nil
}

// SubmitOrder applies an externally supplied order. Orders that add
// exposure pass through the risk constraints first.
func (e *Engine) SubmitOrder(state *portfolio.State, order types.Order, price float64, at time.Time) (portfolio.Trade, error) {
	if err := e.validator.ValidateOrder(order).Err(engerrors.ErrInvalidOrder, component, "submit_order"); err != nil {
		e.recordError(err)
		return portfolio.Trade{}, err
	}
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.Type == "" {
		order.Type = types.OrderMarket
	}
	if order.RequestedPrice <= 0 {
		order.RequestedPrice = price
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = at
	}
	if risk.IncreasesExposure(order, state) {
		if order.Reason == "" {
			order.Reason = types.ReasonEntry
		}
		if err := e.validate(state, order, at); err != nil {
			return portfolio.Trade{}, err
		}
	} else if order.Reason == "" {
		order.Reason = types.ReasonManual
	}
	return e.execute(state, order, price, at)
}

// CheckExits closes positions whose stop-loss or take-profit was crossed
func (e *Engine) CheckExits(state *portfolio.State, prices map[string]float64, at time.Time) ([]portfolio.Trade, error) {
	var trades []portfolio.Trade
	for _, sym := range state.Symbols() {
		pos := state.Positions[sym]
		price, ok := prices[sym]
		if !ok || price <= 0 {
			continue
		}
		var reason types.Reason
		switch {
		case pos.StopHit(price):
			reason = types.ReasonStopLoss
		case pos.TargetHit(price):
			reason = types.ReasonTakeProfit
		default:
			continue
		}
		trade, err := e.execute(state, e.exitOrder(pos, price, reason, at), price, at)
		if err != nil {
			if engerrors.IsFatal(err) {
				return trades, err
			}
			e.log.LogError("exit "+sym, err)
			continue
		}
		trades = append(trades, trade)
	}
	return trades, nil
}

// EnforceDrawdown liquidates the book when the drawdown limit is reached.
// It reports whether a liquidation happened.
func (e *Engine) EnforceDrawdown(state *portfolio.State, prices map[string]float64, at time.Time) (bool, []portfolio.Trade, error) {
	if !e.risk.ShouldLiquidate(state) {
		return false, nil, nil
	}
	v := types.Violation{
		Timestamp: at,
		Rule:      types.RuleMaxDrawdown,
		Detail:    "drawdown limit reached, liquidating",
	}
	state.RecordViolation(v)
	monitoring.RecordViolation(string(v.Rule))
	e.log.LogViolation("*", string(v.Rule), v.Detail)
	trades, err := e.CloseAll(state, prices, types.ReasonLiquidation, at)
	return true, trades, err
}

// CloseAll liquidates every position and logs the fills
func (e *Engine) CloseAll(state *portfolio.State, prices map[string]float64, reason types.Reason, at time.Time) ([]portfolio.Trade, error) {
	trades, err := state.CloseAll(prices, e.exec, reason, at)
	for _, t := range trades {
		e.observeTrade(t)
	}
	if err != nil {
		e.recordError(err)
	}
	return trades, err
}

// Summarize computes the summary of a finished portfolio
func (e *Engine) Summarize(state *portfolio.State) Summary {
	return NewSummary(state, e.cfg.Risk.Name, e.analyzer)
}

func (e *Engine) exitOrder(pos *portfolio.Position, price float64, reason types.Reason, at time.Time) types.Order {
	return types.Order{
		ID:             uuid.NewString(),
		Symbol:         pos.Symbol,
		Side:           pos.Side.ExitOrderSide(),
		Quantity:       pos.Quantity,
		RequestedPrice: price,
		Type:           types.OrderMarket,
		Reason:         reason,
		CreatedAt:      at,
	}
}

func (e *Engine) validate(state *portfolio.State, order types.Order, at time.Time) error {
	err := e.risk.Validate(order, state, at)
	if err == nil {
		return nil
	}
	if cerr, ok := err.(*risk.ConstraintError); ok {
		for _, v := range cerr.Violations {
			monitoring.RecordViolation(string(v.Rule))
			e.log.LogViolation(order.Symbol, string(v.Rule), v.Detail)
		}
	}
	monitoring.RecordError(string(engerrors.KindConstraint))
	return err
}

func (e *Engine) execute(state *portfolio.State, order types.Order, price float64, at time.Time) (portfolio.Trade, error) {
	trade, err := e.exec.Execute(order, price, state, at)
	if err != nil {
		e.recordError(err)
		if !engerrors.IsFatal(err) {
			return portfolio.Trade{}, err
		}
		return trade, err
	}
	e.observeTrade(trade)
	return trade, nil
}

func (e *Engine) observeTrade(t portfolio.Trade) {
	monitoring.RecordTrade(t.Symbol, string(t.Side), string(t.Reason), t.Notional())
	e.log.LogTradeExecution(t.ID, t.Symbol, string(t.Side), string(t.Reason), t.Quantity, t.ExecutionPrice(), t.Commission, t.RealizedPnL)
	if t.Shortfall > 0 {
		monitoring.RecordViolation(string(types.RuleCashFloor))
		e.log.LogViolation(t.Symbol, string(types.RuleCashFloor), fmt.Sprintf("close left %.2f unsettled", t.Shortfall))
	}
}

func (e *Engine) recordError(err error) {
	kind := engerrors.KindOf(err)
	if kind == "" {
		kind = "UNKNOWN"
	}
	monitoring.RecordError(string(kind))
	if kind == engerrors.KindInvariantBreach {
		e.log.LogError("invariant breach", err)
		return
	}
	e.log.LogWarning(component, "%v", err)
}
