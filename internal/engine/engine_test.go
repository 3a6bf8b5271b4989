package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engerrors "github.com/ducminhle1904/quantile-risk-engine/internal/errors"
	"github.com/ducminhle1904/quantile-risk-engine/internal/risk"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/config"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/types"
)

var t0 = time.Date(2024, 4, 1, 16, 0, 0, 0, time.UTC)

func testConfig(mode config.Mode) config.EngineConfig {
	cfg := config.DefaultEngineConfig()
	cfg.Mode = mode
	cfg.Costs = config.CostModel{}
	cfg.Risk = config.MustPreset(config.ProfileAggressive)
	cfg.Risk.MaxPositionSize = 0.25
	cfg.Risk.MaxLeverage = 2
	cfg.Risk.VolatilityAdjustment = false
	cfg.Risk.MinEntryProbability = 0.55
	cfg.Risk.MaxTradeDrawdown = 0.1
	cfg.Risk.MaxDrawdown = 0.2
	cfg.Risk.CooldownAfterStopDays = 1
	return *cfg
}

func bullish(symbol string, at time.Time) types.Forecast {
	return types.Forecast{Symbol: symbol, AsOf: at, Q10: 95, Q50: 105, Q90: 115, ProbUp: 0.7, Volatility: 0.1, HorizonDays: 5}
}

func bearish(symbol string, at time.Time) types.Forecast {
	return types.Forecast{Symbol: symbol, AsOf: at, Q10: 85, Q50: 95, Q90: 105, ProbUp: 0.3, Volatility: 0.1, HorizonDays: 5}
}

// TestProcessForecast_KellyEntry opens 250 shares on 100k capital at price 100
func TestProcessForecast_KellyEntry(t *testing.T) {
	e := New(testConfig(config.ModeBacktest))
	st := e.NewPortfolio()
	e.Mark(st, map[string]float64{"AAPL": 100}, t0)

	res, err := e.ProcessForecast(st, bullish("AAPL", t0), 100, t0)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOpened, res.Outcome)
	require.NotNil(t, res.Trade)
	assert.InDelta(t, 250.0, res.Trade.Quantity, 1e-9)

	pos, ok := st.Position("AAPL")
	require.True(t, ok)
	assert.Equal(t, types.SideLong, pos.Side)
	assert.Equal(t, 95.0, pos.StopLoss)
	assert.Equal(t, 115.0, pos.TakeProfit)
	assert.InDelta(t, 100000.0, st.TotalEquity(), 1e-6)
}

// TestProcessForecast_InvalidForecast rejects malformed input before signal generation
func TestProcessForecast_InvalidForecast(t *testing.T) {
	e := New(testConfig(config.ModeBacktest))
	st := e.NewPortfolio()
	f := bullish("AAPL", t0)
	f.Q10 = 120

	res, err := e.ProcessForecast(st, f, 100, t0)
	assert.Equal(t, OutcomeInvalid, res.Outcome)
	assert.ErrorIs(t, err, engerrors.ErrInvalidForecast)
	assert.False(t, engerrors.IsFatal(err))
	assert.Empty(t, st.Trades)
}

// TestProcessForecast_PriceUnavailable aborts only the order
func TestProcessForecast_PriceUnavailable(t *testing.T) {
	e := New(testConfig(config.ModeBacktest))
	_, err := e.ProcessForecast(e.NewPortfolio(), bullish("AAPL", t0), 0, t0)
	assert.ErrorIs(t, err, engerrors.ErrPriceUnavailable)
}

// TestProcessForecast_NoSignal leaves the portfolio untouched
func TestProcessForecast_NoSignal(t *testing.T) {
	e := New(testConfig(config.ModeBacktest))
	st := e.NewPortfolio()
	f := bullish("AAPL", t0)
	f.ProbUp = 0.5

	res, err := e.ProcessForecast(st, f, 100, t0)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoSignal, res.Outcome)
	assert.Empty(t, st.Trades)
}

// TestProcessForecast_ConstraintRejection logs the violation and keeps state
func TestProcessForecast_ConstraintRejection(t *testing.T) {
	cfg := testConfig(config.ModeBacktest)
	cfg.Risk.MaxTradesPerDay = 1
	e := New(cfg)
	st := e.NewPortfolio()
	e.Mark(st, map[string]float64{"AAPL": 100, "MSFT": 100}, t0)

	_, err := e.ProcessForecast(st, bullish("AAPL", t0), 100, t0)
	require.NoError(t, err)

	res, err := e.ProcessForecast(st, bullish("MSFT", t0), 100, t0)
	assert.Equal(t, OutcomeRejected, res.Outcome)
	assert.ErrorIs(t, err, engerrors.ErrConstraintViolated)
	var cerr *risk.ConstraintError
	require.ErrorAs(t, err, &cerr)
	assert.True(t, cerr.Has(types.RuleMaxTradesPerDay))
	assert.NotContains(t, st.Positions, "MSFT")
	assert.Len(t, st.Violations, 1)
}

// TestProcessForecast_OppositeSignalCloses exits instead of flipping
func TestProcessForecast_OppositeSignalCloses(t *testing.T) {
	e := New(testConfig(config.ModeBacktest))
	st := e.NewPortfolio()
	e.Mark(st, map[string]float64{"AAPL": 100}, t0)
	_, err := e.ProcessForecast(st, bullish("AAPL", t0), 100, t0)
	require.NoError(t, err)

	next := t0.Add(24 * time.Hour)
	e.Mark(st, map[string]float64{"AAPL": 100}, next)
	res, err := e.ProcessForecast(st, bearish("AAPL", next), 100, next)
	require.NoError(t, err)
	assert.Equal(t, OutcomeClosed, res.Outcome)
	assert.Equal(t, types.ReasonSignalExit, res.Trade.Reason)
	assert.Empty(t, st.Positions)
}

// TestCheckExits closes on stop-loss and take-profit
func TestCheckExits(t *testing.T) {
	e := New(testConfig(config.ModeBacktest))
	st := e.NewPortfolio()
	e.Mark(st, map[string]float64{"AAPL": 100, "MSFT": 100}, t0)
	_, err := e.ProcessForecast(st, bullish("AAPL", t0), 100, t0)
	require.NoError(t, err)
	_, err = e.ProcessForecast(st, bullish("MSFT", t0), 100, t0)
	require.NoError(t, err)

	next := t0.Add(24 * time.Hour)
	prices := map[string]float64{"AAPL": 94, "MSFT": 116}
	e.Mark(st, prices, next)
	trades, err := e.CheckExits(st, prices, next)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, types.ReasonStopLoss, trades[0].Reason)
	assert.Equal(t, types.ReasonTakeProfit, trades[1].Reason)
	assert.Equal(t, next, st.LastStopLossExit)
	assert.Empty(t, st.Positions)

	// cooldown blocks a fresh entry the same day
	_, err = e.ProcessForecast(st, bullish("AAPL", next), 100, next)
	var cerr *risk.ConstraintError
	require.ErrorAs(t, err, &cerr)
	assert.True(t, cerr.Has(types.RuleCooldownAfterStop))
}

// TestEnforceDrawdown liquidates in backtest mode only
func TestEnforceDrawdown(t *testing.T) {
	for _, mode := range []config.Mode{config.ModeBacktest, config.ModeLive} {
		t.Run(string(mode), func(t *testing.T) {
			cfg := testConfig(mode)
			cfg.Risk.MaxPositionSize = 1
			e := New(cfg)
			st := e.NewPortfolio()
			_, err := e.SubmitOrder(st, types.Order{Symbol: "AAPL", Side: types.OrderBuy, Quantity: 900}, 100, t0)
			require.NoError(t, err)

			prices := map[string]float64{"AAPL": 70}
			e.Mark(st, prices, t0)
			liquidated, trades, err := e.EnforceDrawdown(st, prices, t0)
			require.NoError(t, err)
			if mode == config.ModeBacktest {
				assert.True(t, liquidated)
				require.Len(t, trades, 1)
				assert.Equal(t, types.ReasonLiquidation, trades[0].Reason)
				assert.Empty(t, st.Positions)
			} else {
				assert.False(t, liquidated)
				assert.Len(t, st.Positions, 1)
			}
		})
	}
}

// TestSubmitOrder_ClosingBypassesConstraints lets a reducing order through any limit
func TestSubmitOrder_ClosingBypassesConstraints(t *testing.T) {
	cfg := testConfig(config.ModeLive)
	cfg.Risk.MaxTradesPerDay = 1
	e := New(cfg)
	st := e.NewPortfolio()
	_, err := e.SubmitOrder(st, types.Order{Symbol: "AAPL", Side: types.OrderBuy, Quantity: 10}, 100, t0)
	require.NoError(t, err)

	_, err = e.SubmitOrder(st, types.Order{Symbol: "MSFT", Side: types.OrderBuy, Quantity: 10}, 100, t0)
	assert.ErrorIs(t, err, engerrors.ErrConstraintViolated)

	tr, err := e.SubmitOrder(st, types.Order{Symbol: "AAPL", Side: types.OrderSell, Quantity: 10}, 101, t0)
	require.NoError(t, err)
	assert.Equal(t, types.ReasonManual, tr.Reason)
	assert.InDelta(t, 10.0, tr.RealizedPnL, 1e-9)
}

// TestSubmitOrder_InvalidOrder is a validation error
func TestSubmitOrder_InvalidOrder(t *testing.T) {
	e := New(testConfig(config.ModeLive))
	_, err := e.SubmitOrder(e.NewPortfolio(), types.Order{Symbol: "AAPL", Side: types.OrderBuy, Quantity: -1}, 100, t0)
	assert.ErrorIs(t, err, engerrors.ErrInvalidOrder)
}

// TestSummarize reports capital, return and the ledger
func TestSummarize(t *testing.T) {
	e := New(testConfig(config.ModeBacktest))
	st := e.NewPortfolio()
	_, err := e.SubmitOrder(st, types.Order{Symbol: "AAPL", Side: types.OrderBuy, Quantity: 100}, 100, t0)
	require.NoError(t, err)
	st.Snapshot(t0)
	_, err = e.CloseAll(st, map[string]float64{"AAPL": 110}, types.ReasonSessionEnd, t0.Add(24*time.Hour))
	require.NoError(t, err)
	st.Snapshot(t0.Add(24 * time.Hour))

	s := e.Summarize(st)
	assert.Equal(t, 100000.0, s.InitialCapital)
	assert.InDelta(t, 101000.0, s.FinalCapital, 1e-6)
	assert.InDelta(t, 0.01, s.TotalReturn, 1e-9)
	assert.Len(t, s.Trades, 2)
	assert.Equal(t, 1, s.Metrics.ClosedTrades)
	assert.InDelta(t, 1.0, s.Metrics.WinRate, 1e-12)
	assert.InDelta(t, 1000.0, s.RealizedPnL(), 1e-9)
}
