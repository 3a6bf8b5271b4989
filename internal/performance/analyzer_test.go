package performance

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/quantile-risk-engine/internal/portfolio"
)

func curve(values ...float64) []portfolio.EquitySnapshot {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]portfolio.EquitySnapshot, len(values))
	for i, v := range values {
		out[i] = portfolio.EquitySnapshot{Timestamp: start.AddDate(0, 0, i), TotalEquity: v, Cash: v}
	}
	return out
}

func closed(pnl float64) portfolio.Trade {
	exit := 100.0
	return portfolio.Trade{Quantity: 1, EntryPrice: 100, ExitPrice: &exit, RealizedPnL: pnl, Commission: 0.1}
}

// TestAnalyze_Empty returns zero metrics without panicking
func TestAnalyze_Empty(t *testing.T) {
	m := NewAnalyzer(0, 252).Analyze(nil, nil, 1000)
	assert.Equal(t, Metrics{}, m)
}

// TestAnalyze_TotalAndAnnualizedReturn checks compounding over the period count
func TestAnalyze_TotalAndAnnualizedReturn(t *testing.T) {
	eq := curve(1010, 1020.1, 1030.301)
	m := NewAnalyzer(0, 252).Analyze(eq, nil, 1000)

	assert.InDelta(t, 0.030301, m.TotalReturn, 1e-9)
	assert.InDelta(t, math.Pow(1.01, 252)-1, m.AnnualizedReturn, 1e-6)
	assert.Equal(t, 3, m.Periods)
	// constant returns have no variance
	assert.InDelta(t, 0.0, m.Volatility, 1e-9)
	assert.Equal(t, 0.0, m.SharpeRatio)
	assert.Equal(t, 0.0, m.MaxDrawdown)
}

// TestAnalyze_Sharpe checks sign and scale of the Sharpe ratio
func TestAnalyze_Sharpe(t *testing.T) {
	up := NewAnalyzer(0, 252).Analyze(curve(1010, 1005, 1020, 1030, 1025, 1040), nil, 1000)
	down := NewAnalyzer(0, 252).Analyze(curve(990, 995, 980, 970, 975, 960), nil, 1000)

	assert.Greater(t, up.SharpeRatio, 0.0)
	assert.Less(t, down.SharpeRatio, 0.0)
	assert.Greater(t, up.Volatility, 0.0)
	assert.Greater(t, up.SortinoRatio, 0.0)

	riskFree := NewAnalyzer(0.5, 252).Analyze(curve(1010, 1005, 1020, 1030, 1025, 1040), nil, 1000)
	assert.Less(t, riskFree.SharpeRatio, up.SharpeRatio)
}

// TestAnalyze_IntradaySnapshots annualizes on daily closes, not on ticks
func TestAnalyze_IntradaySnapshots(t *testing.T) {
	start := time.Date(2024, 1, 1, 14, 30, 0, 0, time.UTC)
	var eq []portfolio.EquitySnapshot
	for day := range 2 {
		for minute := range 390 {
			v := 1000 * math.Pow(1.01, float64(day)) * (1 + 0.01*float64(minute)/389)
			eq = append(eq, portfolio.EquitySnapshot{
				Timestamp:   start.AddDate(0, 0, day).Add(time.Duration(minute) * time.Minute),
				TotalEquity: v,
			})
		}
	}
	m := NewAnalyzer(0, 252).Analyze(eq, nil, 1000)

	assert.Equal(t, 2, m.Periods)
	assert.InDelta(t, 0.0201, m.TotalReturn, 1e-9)
	// daily closes 1010 and 1020.1, two of 252 periods
	assert.InDelta(t, math.Pow(1.0201, 126)-1, m.AnnualizedReturn, 1e-6)
	assert.Greater(t, m.AnnualizedReturn, m.TotalReturn)

	daily := DailyCloses(eq)
	require.Len(t, daily, 2)
	assert.Equal(t, eq[389].Timestamp, daily[0].Timestamp)
	assert.Equal(t, eq[779].Timestamp, daily[1].Timestamp)
}

// TestDailyCloses_KeepsUndatedSnapshots treats each undated point as a period
func TestDailyCloses_KeepsUndatedSnapshots(t *testing.T) {
	eq := []portfolio.EquitySnapshot{{TotalEquity: 1}, {TotalEquity: 2}, {TotalEquity: 3}}
	assert.Len(t, DailyCloses(eq), 3)
	assert.Empty(t, DailyCloses(nil))
}

// TestMaxDrawdown tracks the worst decline from the running peak
func TestMaxDrawdown(t *testing.T) {
	assert.InDelta(t, 0.25, MaxDrawdown(curve(1100, 1200, 900, 1000, 1300), 1000), 1e-12)
	assert.InDelta(t, 0.1, MaxDrawdown(curve(900), 1000), 1e-12)
}

// TestValueAtRisk uses the empirical tail
func TestValueAtRisk(t *testing.T) {
	returns := make([]float64, 100)
	for i := range returns {
		returns[i] = float64(i-50) / 1000 // -0.050 .. 0.049
	}
	v95, c95 := ValueAtRisk(returns, 0.95)
	v99, c99 := ValueAtRisk(returns, 0.99)

	assert.InDelta(t, 0.045, v95, 1e-12)
	assert.InDelta(t, 0.0475, c95, 1e-12)
	assert.InDelta(t, 0.049, v99, 1e-12)
	assert.InDelta(t, 0.0495, c99, 1e-12)
	assert.GreaterOrEqual(t, c95, v95)
	assert.GreaterOrEqual(t, v99, v95)

	v, c := ValueAtRisk([]float64{0.01, 0.02}, 0.95)
	assert.Equal(t, 0.0, v)
	assert.Equal(t, 0.0, c)
}

// TestAnalyze_TradeMetrics counts only closing trades for the win rate
func TestAnalyze_TradeMetrics(t *testing.T) {
	open := portfolio.Trade{Quantity: 1, EntryPrice: 100, Commission: 0.1}
	trades := []portfolio.Trade{open, closed(30), open, closed(-10), closed(20), open}

	m := NewAnalyzer(0, 252).Analyze(curve(1000, 1040), trades, 1000)
	assert.Equal(t, 6, m.TotalTrades)
	assert.Equal(t, 3, m.ClosedTrades)
	assert.Equal(t, 2, m.WinningTrades)
	assert.InDelta(t, 2.0/3.0, m.WinRate, 1e-12)
	assert.InDelta(t, 5.0, m.ProfitFactor, 1e-12)
	assert.InDelta(t, 25.0, m.AverageWin, 1e-12)
	assert.InDelta(t, 10.0, m.AverageLoss, 1e-12)
	assert.InDelta(t, 0.6, m.TotalCommission, 1e-12)
}

// TestAnalyze_Exposure averages gross exposure over equity
func TestAnalyze_Exposure(t *testing.T) {
	eq := curve(1000, 1000)
	eq[0].GrossExposure = 500
	eq[1].GrossExposure = 1500
	m := NewAnalyzer(0, 252).Analyze(eq, nil, 1000)
	assert.InDelta(t, 1.5, m.MaxExposure, 1e-12)
	assert.InDelta(t, 1.0, m.AvgExposure, 1e-12)
}
