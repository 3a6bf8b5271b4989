package performance

import (
	"math"
	"sort"

	"github.com/ducminhle1904/quantile-risk-engine/internal/portfolio"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/types"
)

// Metrics summarizes the risk and return of a run. All ratios are fractions.
// Undefined ratios (no variance, no losses) are reported as 0.
type Metrics struct {
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	Volatility       float64 `json:"volatility"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	SortinoRatio     float64 `json:"sortino_ratio"`
	CalmarRatio      float64 `json:"calmar_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	VaR95            float64 `json:"var_95"`
	CVaR95           float64 `json:"cvar_95"`
	VaR99            float64 `json:"var_99"`
	CVaR99           float64 `json:"cvar_99"`
	WinRate          float64 `json:"win_rate"`
	ProfitFactor     float64 `json:"profit_factor"`
	AverageWin       float64 `json:"average_win"`
	AverageLoss      float64 `json:"average_loss"`
	TotalTrades      int     `json:"total_trades"`
	ClosedTrades     int     `json:"closed_trades"`
	WinningTrades    int     `json:"winning_trades"`
	LosingTrades     int     `json:"losing_trades"`
	MaxExposure      float64 `json:"max_exposure"`
	AvgExposure      float64 `json:"avg_exposure"`
	Turnover         float64 `json:"turnover"`
	TotalCommission  float64 `json:"total_commission"`
	TotalSlippage    float64 `json:"total_slippage"`
	Periods          int     `json:"periods"`
}

// Analyzer derives performance metrics from an equity curve and trade ledger.
// It holds no state beyond its parameters and never mutates its inputs.
type Analyzer struct {
	riskFreeRate   float64
	periodsPerYear int
}

// NewAnalyzer creates an analyzer. periodsPerYear is the number of trading
// days per year; the curve is resampled to one close per day before returns
// are taken.
func NewAnalyzer(riskFreeRate float64, periodsPerYear int) *Analyzer {
	if periodsPerYear <= 0 {
		periodsPerYear = 252
	}
	return &Analyzer{riskFreeRate: riskFreeRate, periodsPerYear: periodsPerYear}
}

// Analyze computes every metric
func (a *Analyzer) Analyze(equity []portfolio.EquitySnapshot, trades []portfolio.Trade, initialCapital float64) Metrics {
	var m Metrics
	returns := PeriodReturns(DailyCloses(equity), initialCapital)
	m.Periods = len(returns)

	final := initialCapital
	if n := len(equity); n > 0 {
		final = equity[n-1].TotalEquity
	}
	if initialCapital > 0 {
		m.TotalReturn = final/initialCapital - 1
	}

	a.calculateAnnualizedMetrics(&m, returns, initialCapital, final)
	m.MaxDrawdown = MaxDrawdown(equity, initialCapital)
	if m.MaxDrawdown > 0 {
		m.CalmarRatio = m.AnnualizedReturn / m.MaxDrawdown
	}
	m.VaR95, m.CVaR95 = ValueAtRisk(returns, 0.95)
	m.VaR99, m.CVaR99 = ValueAtRisk(returns, 0.99)

	calculateTradeMetrics(&m, trades)
	calculateExposureMetrics(&m, equity)
	m.Turnover = turnover(equity, trades)
	return m
}

func (a *Analyzer) calculateAnnualizedMetrics(m *Metrics, returns []float64, initial, final float64) {
	if len(returns) == 0 || initial <= 0 {
		return
	}
	ppy := float64(a.periodsPerYear)
	years := float64(len(returns)) / ppy
	if final > 0 {
		m.AnnualizedReturn = math.Pow(final/initial, 1/years) - 1
	} else {
		m.AnnualizedReturn = -1
	}

	m.Volatility = stdDev(returns) * math.Sqrt(ppy)
	if m.Volatility > 1e-12 {
		m.SharpeRatio = (m.AnnualizedReturn - a.riskFreeRate) / m.Volatility
	}
	if dd := downsideDeviation(returns) * math.Sqrt(ppy); dd > 1e-12 {
		m.SortinoRatio = (m.AnnualizedReturn - a.riskFreeRate) / dd
	}
}

// DailyCloses keeps the last snapshot of each calendar day. Snapshots without
// a timestamp are kept as separate periods.
func DailyCloses(equity []portfolio.EquitySnapshot) []portfolio.EquitySnapshot {
	out := make([]portfolio.EquitySnapshot, 0, len(equity))
	for _, s := range equity {
		if n := len(out); n > 0 && types.SameDay(out[n-1].Timestamp, s.Timestamp) {
			out[n-1] = s
			continue
		}
		out = append(out, s)
	}
	return out
}

// PeriodReturns converts an equity curve into simple period returns. The
// first period is measured against initialCapital.
func PeriodReturns(equity []portfolio.EquitySnapshot, initialCapital float64) []float64 {
	if len(equity) == 0 {
		return nil
	}
	out := make([]float64, 0, len(equity))
	prev := initialCapital
	for _, s := range equity {
		if prev > 0 {
			out = append(out, s.TotalEquity/prev-1)
		}
		prev = s.TotalEquity
	}
	return out
}

// MaxDrawdown is the largest peak-to-trough decline of the curve
func MaxDrawdown(equity []portfolio.EquitySnapshot, initialCapital float64) float64 {
	peak := initialCapital
	maxDD := 0.0
	for _, s := range equity {
		if s.TotalEquity > peak {
			peak = s.TotalEquity
		}
		if peak > 0 {
			if dd := (peak - s.TotalEquity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// ValueAtRisk returns the empirical VaR and CVaR at the confidence level,
// expressed as positive loss fractions
func ValueAtRisk(returns []float64, level float64) (float64, float64) {
	n := len(returns)
	if n == 0 {
		return 0, 0
	}
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)

	idx := int(math.Floor((1 - level) * float64(n)))
	if idx >= n {
		idx = n - 1
	}
	varLoss := math.Max(0, -sorted[idx])

	tail := 0.0
	for _, r := range sorted[:idx+1] {
		tail += r
	}
	cvarLoss := math.Max(0, -tail/float64(idx+1))
	return varLoss, cvarLoss
}

func calculateTradeMetrics(m *Metrics, trades []portfolio.Trade) {
	m.TotalTrades = len(trades)
	grossProfit, grossLoss := 0.0, 0.0
	for _, t := range trades {
		m.TotalCommission += t.Commission
		m.TotalSlippage += t.Slippage
		if !t.IsClose() {
			continue
		}
		m.ClosedTrades++
		if t.RealizedPnL > 0 {
			m.WinningTrades++
			grossProfit += t.RealizedPnL
		} else {
			m.LosingTrades++
			grossLoss += -t.RealizedPnL
		}
	}
	if m.ClosedTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.ClosedTrades)
	}
	if m.WinningTrades > 0 {
		m.AverageWin = grossProfit / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AverageLoss = grossLoss / float64(m.LosingTrades)
	}
	if grossLoss > 0 {
		m.ProfitFactor = grossProfit / grossLoss
	}
}

func calculateExposureMetrics(m *Metrics, equity []portfolio.EquitySnapshot) {
	if len(equity) == 0 {
		return
	}
	total := 0.0
	for _, s := range equity {
		if s.TotalEquity <= 0 {
			continue
		}
		exp := s.GrossExposure / s.TotalEquity
		if exp > m.MaxExposure {
			m.MaxExposure = exp
		}
		total += exp
	}
	m.AvgExposure = total / float64(len(equity))
}

func turnover(equity []portfolio.EquitySnapshot, trades []portfolio.Trade) float64 {
	if len(equity) == 0 {
		return 0
	}
	volume := 0.0
	for _, t := range trades {
		volume += t.Notional()
	}
	avg := 0.0
	for _, s := range equity {
		avg += s.TotalEquity
	}
	avg /= float64(len(equity))
	if avg <= 0 {
		return 0
	}
	return volume / avg
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stdDev is the sample standard deviation
func stdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mu := mean(xs)
	v := 0.0
	for _, x := range xs {
		v += (x - mu) * (x - mu)
	}
	return math.Sqrt(v / float64(len(xs)-1))
}

func downsideDeviation(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	v := 0.0
	for _, x := range xs {
		if x < 0 {
			v += x * x
		}
	}
	return math.Sqrt(v / float64(len(xs)))
}
