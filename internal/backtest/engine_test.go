package backtest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/quantile-risk-engine/internal/engine"
	"github.com/ducminhle1904/quantile-risk-engine/internal/forecast"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/config"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/types"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/validation"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func day(i int) time.Time {
	return day0.AddDate(0, 0, i)
}

func testConfig() config.EngineConfig {
	cfg := config.DefaultEngineConfig()
	cfg.Costs = config.CostModel{}
	cfg.Risk = config.MustPreset(config.ProfileAggressive)
	cfg.Risk.MaxPositionSize = 0.25
	cfg.Risk.MinEntryProbability = 0.55
	cfg.Risk.MaxDrawdown = 0.2
	return *cfg
}

func bars(symbol string, closes ...float64) []types.OHLCV {
	out := make([]types.OHLCV, len(closes))
	for i, c := range closes {
		out[i] = types.OHLCV{Symbol: symbol, Timestamp: day(i), Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	return out
}

func bullish(symbol string, at time.Time) types.Forecast {
	return types.Forecast{Symbol: symbol, AsOf: at, Q10: 95, Q50: 105, Q90: 115, ProbUp: 0.7, Volatility: 0.1, HorizonDays: 5}
}

func runBacktest(t *testing.T, cfg config.EngineConfig, in Input) *BacktestResults {
	t.Helper()
	res, err := NewBacktestEngine(cfg, zerolog.Nop()).Run(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func TestRun_EmptyInput(t *testing.T) {
	res := runBacktest(t, testConfig(), Input{})
	assert.Equal(t, 0, res.Days)
	assert.Equal(t, 100000.0, res.Summary.InitialCapital)
	assert.Equal(t, 100000.0, res.Summary.FinalCapital)
	assert.Empty(t, res.Summary.Trades)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, res.RunID, res.Summary.RunID)
}

func TestRun_TakeProfit(t *testing.T) {
	in := Input{
		Bars:      map[string][]types.OHLCV{"AAPL": bars("AAPL", 100, 116, 116)},
		Forecasts: forecast.NewBook(bullish("AAPL", day(0).Add(16*time.Hour))),
	}
	res := runBacktest(t, testConfig(), in)

	require.Len(t, res.Summary.Trades, 2)
	entry, exit := res.Summary.Trades[0], res.Summary.Trades[1]
	assert.Equal(t, types.ReasonEntry, entry.Reason)
	assert.InDelta(t, 250.0, entry.Quantity, 1e-9)
	assert.Equal(t, types.ReasonTakeProfit, exit.Reason)
	assert.Equal(t, day(1), exit.Timestamp)
	assert.InDelta(t, 4000.0, exit.RealizedPnL, 1e-6)
	assert.InDelta(t, 104000.0, res.Summary.FinalCapital, 1e-6)
	assert.Equal(t, 3, res.Days)
	assert.Equal(t, 1, res.Outcomes[engine.OutcomeOpened])
}

func TestRun_NoLookahead(t *testing.T) {
	in := Input{
		Bars:      map[string][]types.OHLCV{"AAPL": bars("AAPL", 90, 120, 100, 101)},
		Forecasts: forecast.NewBook(bullish("AAPL", day(2).Add(12*time.Hour))),
	}
	res := runBacktest(t, testConfig(), in)

	require.NotEmpty(t, res.Summary.Trades)
	first := res.Summary.Trades[0]
	assert.Equal(t, day(2), first.Timestamp)
	assert.Equal(t, 100.0, first.EntryPrice)
	for _, snap := range res.Summary.Equity[:2] {
		assert.InDelta(t, 100000.0, snap.TotalEquity, 1e-9)
	}
}

func TestRun_StaleForecastsBeforeWindowIgnored(t *testing.T) {
	in := Input{
		Bars:      map[string][]types.OHLCV{"AAPL": bars("AAPL", 100, 100, 100)},
		Forecasts: forecast.NewBook(bullish("AAPL", day(0))),
		Start:     day(1),
	}
	res := runBacktest(t, testConfig(), in)
	assert.Empty(t, res.Summary.Trades)
	assert.Equal(t, 2, res.Days)
	assert.Equal(t, day(1), res.StartDate)
}

func TestRun_SessionEndClosesPositions(t *testing.T) {
	in := Input{
		Bars:      map[string][]types.OHLCV{"AAPL": bars("AAPL", 100, 104)},
		Forecasts: forecast.NewBook(bullish("AAPL", day(0))),
	}
	res := runBacktest(t, testConfig(), in)

	require.Len(t, res.Summary.Trades, 2)
	last := res.Summary.Trades[1]
	assert.Equal(t, types.ReasonSessionEnd, last.Reason)
	assert.InDelta(t, 1000.0, last.RealizedPnL, 1e-6)
	assert.Equal(t, 0, res.Summary.OpenPositions)
	require.Len(t, res.Summary.Equity, 2)
	assert.InDelta(t, 101000.0, res.Summary.Equity[1].TotalEquity, 1e-6)
	assert.InDelta(t, 0.01, res.Summary.TotalReturn, 1e-9)
}

func TestRun_DrawdownLiquidationHaltsEntries(t *testing.T) {
	cfg := testConfig()
	cfg.Risk.PositionSizingMethod = config.SizingFixed
	cfg.Risk.FixedFraction = 0.9
	cfg.Risk.MaxPositionSize = 1
	cfg.Risk.MaxTradeDrawdown = 0

	wide := types.Forecast{Symbol: "AAPL", Q10: 50, Q50: 105, Q90: 160, ProbUp: 0.7}
	f1, f3 := wide, wide
	f1.AsOf, f3.AsOf = day(0), day(2)

	in := Input{
		Bars:      map[string][]types.OHLCV{"AAPL": bars("AAPL", 100, 75, 75)},
		Forecasts: forecast.NewBook(f1, f3),
	}
	res := runBacktest(t, cfg, in)

	assert.True(t, res.Liquidated)
	assert.Equal(t, day(1), res.LiquidatedAt)
	require.Len(t, res.Summary.Trades, 2)
	assert.Equal(t, types.ReasonLiquidation, res.Summary.Trades[1].Reason)
	assert.Equal(t, 1, res.Outcomes[engine.OutcomeRejected])
	require.Len(t, res.Summary.Violations, 2)
	for _, v := range res.Summary.Violations {
		assert.Equal(t, types.RuleMaxDrawdown, v.Rule)
	}
	assert.InDelta(t, 77500.0, res.Summary.FinalCapital, 1e-6)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in := Input{Bars: map[string][]types.OHLCV{"AAPL": bars("AAPL", 100, 101)}}
	res, err := NewBacktestEngine(testConfig(), zerolog.Nop()).Run(ctx, in)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, 0, res.Days)
}

func TestCompareProfiles(t *testing.T) {
	in := Input{
		Bars:      map[string][]types.OHLCV{"AAPL": bars("AAPL", 100, 116, 116)},
		Forecasts: forecast.NewBook(bullish("AAPL", day(0))),
	}
	base := *config.DefaultEngineConfig()
	pool := NewWorkerPool(2, zerolog.Nop())

	var calls int
	pool.OnProgress(func(done, total int) { calls++ })

	results, err := CompareProfiles(context.Background(), pool, base, config.PresetNames(), in)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, name := range config.PresetNames() {
		assert.Equal(t, name, results[i].Label)
		require.NoError(t, results[i].Error)
		assert.Equal(t, name, results[i].Results.Summary.Profile)
	}
	assert.Equal(t, 3, calls)

	_, err = CompareProfiles(context.Background(), pool, base, []string{"yolo"}, in)
	assert.Error(t, err)
}

// TestWorkerPool_ProgressIsSerialized records progress without locking; the
// pool serializes the callback
func TestWorkerPool_ProgressIsSerialized(t *testing.T) {
	in := Input{
		Bars:      map[string][]types.OHLCV{"AAPL": bars("AAPL", 100, 104, 108, 112)},
		Forecasts: forecast.NewBook(bullish("AAPL", day(0))),
	}
	jobs := make([]BacktestJob, 8)
	for i := range jobs {
		jobs[i] = BacktestJob{ID: fmt.Sprintf("job-%d", i), Label: "run", Config: testConfig(), Input: in}
	}

	pool := NewWorkerPool(4, zerolog.Nop())
	var seen []int
	pool.OnProgress(func(done, total int) {
		assert.Equal(t, len(jobs), total)
		seen = append(seen, done)
	})

	results, err := pool.Run(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, results, len(jobs))
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, seen)
}

func TestWalkForward(t *testing.T) {
	closes := make([]float64, 40)
	var fs []types.Forecast
	for i := range closes {
		closes[i] = 100 + float64(i)
		if i%5 == 0 {
			fs = append(fs, types.Forecast{Symbol: "AAPL", AsOf: day(i), Q10: closes[i] - 5, Q50: closes[i] + 5, Q90: closes[i] + 15, ProbUp: 0.7})
		}
	}
	in := Input{Bars: map[string][]types.OHLCV{"AAPL": bars("AAPL", closes...)}, Forecasts: forecast.NewBook(fs...)}
	wf := validation.WalkForwardConfig{Rolling: true, TrainDays: 20, TestDays: 5, RollDays: 5, MinTrainDays: 20, MinTestDays: 5}

	summary, results, err := WalkForward(context.Background(), NewWorkerPool(4, zerolog.Nop()), testConfig(), in, wf)
	require.NoError(t, err)
	require.Len(t, results, 8)
	require.Len(t, summary.Results, 4)
	assert.Equal(t, "fold1_train", results[0].Label)
	assert.Equal(t, 20, results[0].Results.Days)
	assert.Equal(t, 5, results[1].Results.Days)
	assert.Greater(t, summary.AverageTrainReturn, 0.0)

	_, _, err = WalkForward(context.Background(), NewWorkerPool(1, zerolog.Nop()), testConfig(), Input{}, wf)
	assert.Error(t, err)
}

func TestProgressTracker(t *testing.T) {
	pt := NewProgressTracker(4)
	assert.Zero(t, pt.EstimateTimeRemaining())
	pt.Increment()
	done, total, pct, _ := pt.GetProgress()
	assert.Equal(t, 1, done)
	assert.Equal(t, 4, total)
	assert.Equal(t, 25.0, pct)
}
