package reporting

import (
	"encoding/json"
	"os"
	"time"

	"github.com/ducminhle1904/quantile-risk-engine/internal/backtest"
	"github.com/ducminhle1904/quantile-risk-engine/internal/engine"
	"github.com/ducminhle1904/quantile-risk-engine/internal/performance"
)

// SummaryReport is the JSON form of a run. Money is rounded to cents and
// ratios to six places.
type SummaryReport struct {
	RunID          string              `json:"run_id"`
	Label          string              `json:"label,omitempty"`
	Profile        string              `json:"profile"`
	StartDate      string              `json:"start_date,omitempty"`
	EndDate        string              `json:"end_date,omitempty"`
	Days           int                 `json:"days,omitempty"`
	InitialCapital float64             `json:"initial_capital"`
	FinalCapital   float64             `json:"final_capital"`
	TotalReturn    float64             `json:"total_return"`
	Liquidated     bool                `json:"liquidated"`
	OpenPositions  int                 `json:"open_positions"`
	Metrics        performance.Metrics `json:"performance_metrics"`
	Trades         []TradeReport       `json:"trades"`
	Violations     []ViolationReport   `json:"constraint_violations"`
	Equity         []EquityPoint       `json:"equity_curve"`
}

// TradeReport is one ledger entry
type TradeReport struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Symbol      string    `json:"symbol"`
	Side        string    `json:"side"`
	Quantity    float64   `json:"quantity"`
	EntryPrice  float64   `json:"entry_price"`
	ExitPrice   *float64  `json:"exit_price,omitempty"`
	RealizedPnL float64   `json:"realized_pnl"`
	Commission  float64   `json:"commission"`
	Slippage    float64   `json:"slippage"`
	Reason      string    `json:"reason"`
}

// ViolationReport is one rejected-order record
type ViolationReport struct {
	Timestamp time.Time `json:"timestamp"`
	Rule      string    `json:"rule"`
	Symbol    string    `json:"symbol,omitempty"`
	Detail    string    `json:"detail"`
}

// EquityPoint is one equity-curve sample
type EquityPoint struct {
	Timestamp   time.Time `json:"timestamp"`
	Cash        float64   `json:"cash"`
	TotalEquity float64   `json:"total_equity"`
	Exposure    float64   `json:"gross_exposure"`
	Drawdown    float64   `json:"drawdown"`
}

// DefaultJSONFormatter implements JSON output functionality
type DefaultJSONFormatter struct{}

// NewDefaultJSONFormatter creates a new JSON formatter
func NewDefaultJSONFormatter() *DefaultJSONFormatter {
	return &DefaultJSONFormatter{}
}

// NewSummaryReport converts a summary into its rounded report form
func NewSummaryReport(label string, s engine.Summary) SummaryReport {
	rep := SummaryReport{
		RunID:          s.RunID,
		Label:          label,
		Profile:        s.Profile,
		InitialCapital: rounded(s.InitialCapital, moneyPlaces),
		FinalCapital:   rounded(s.FinalCapital, moneyPlaces),
		TotalReturn:    rounded(s.TotalReturn, ratioPlaces),
		OpenPositions:  s.OpenPositions,
		Metrics:        roundMetrics(s.Metrics),
		Trades:         make([]TradeReport, 0, len(s.Trades)),
		Violations:     make([]ViolationReport, 0, len(s.Violations)),
		Equity:         make([]EquityPoint, 0, len(s.Equity)),
	}
	for _, t := range s.Trades {
		tr := TradeReport{
			ID:          t.ID,
			Timestamp:   t.Timestamp,
			Symbol:      t.Symbol,
			Side:        string(t.Side),
			Quantity:    rounded(t.Quantity, quantityPlaces),
			EntryPrice:  rounded(t.EntryPrice, pricePlaces),
			RealizedPnL: rounded(t.RealizedPnL, moneyPlaces),
			Commission:  rounded(t.Commission, moneyPlaces),
			Slippage:    rounded(t.Slippage, moneyPlaces),
			Reason:      string(t.Reason),
		}
		if t.ExitPrice != nil {
			exit := rounded(*t.ExitPrice, pricePlaces)
			tr.ExitPrice = &exit
		}
		rep.Trades = append(rep.Trades, tr)
	}
	for _, v := range s.Violations {
		vr := ViolationReport{Timestamp: v.Timestamp, Rule: string(v.Rule), Detail: v.Detail}
		if v.Order != nil {
			vr.Symbol = v.Order.Symbol
		}
		rep.Violations = append(rep.Violations, vr)
	}
	for _, e := range s.Equity {
		rep.Equity = append(rep.Equity, EquityPoint{
			Timestamp:   e.Timestamp,
			Cash:        rounded(e.Cash, moneyPlaces),
			TotalEquity: rounded(e.TotalEquity, moneyPlaces),
			Exposure:    rounded(e.GrossExposure, moneyPlaces),
			Drawdown:    rounded(e.Drawdown, ratioPlaces),
		})
	}
	return rep
}

func roundMetrics(m performance.Metrics) performance.Metrics {
	r := func(v float64) float64 { return rounded(v, ratioPlaces) }
	m.TotalReturn = r(m.TotalReturn)
	m.AnnualizedReturn = r(m.AnnualizedReturn)
	m.Volatility = r(m.Volatility)
	m.SharpeRatio = r(m.SharpeRatio)
	m.SortinoRatio = r(m.SortinoRatio)
	m.CalmarRatio = r(m.CalmarRatio)
	m.MaxDrawdown = r(m.MaxDrawdown)
	m.VaR95 = r(m.VaR95)
	m.CVaR95 = r(m.CVaR95)
	m.VaR99 = r(m.VaR99)
	m.CVaR99 = r(m.CVaR99)
	m.WinRate = r(m.WinRate)
	m.ProfitFactor = r(m.ProfitFactor)
	m.AverageWin = rounded(m.AverageWin, moneyPlaces)
	m.AverageLoss = rounded(m.AverageLoss, moneyPlaces)
	m.MaxExposure = r(m.MaxExposure)
	m.AvgExposure = r(m.AvgExposure)
	m.Turnover = r(m.Turnover)
	m.TotalCommission = rounded(m.TotalCommission, moneyPlaces)
	m.TotalSlippage = rounded(m.TotalSlippage, moneyPlaces)
	return m
}

// FormatResults renders a backtest run as indented JSON
func (f *DefaultJSONFormatter) FormatResults(results *backtest.BacktestResults) ([]byte, error) {
	rep := NewSummaryReport(results.Label, results.Summary)
	rep.Days = results.Days
	rep.Liquidated = results.Liquidated
	if !results.StartDate.IsZero() {
		rep.StartDate = results.StartDate.Format("2006-01-02")
		rep.EndDate = results.EndDate.Format("2006-01-02")
	}
	return json.MarshalIndent(rep, "", "  ")
}

// FormatSummary renders a summary as indented JSON
func (f *DefaultJSONFormatter) FormatSummary(label string, s engine.Summary) ([]byte, error) {
	return json.MarshalIndent(NewSummaryReport(label, s), "", "  ")
}

// WriteSummaryJSON writes a backtest run to path
func (f *DefaultJSONFormatter) WriteSummaryJSON(results *backtest.BacktestResults, path string) error {
	data, err := f.FormatResults(results)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

// WriteSessionJSON writes a session summary to path
func WriteSessionJSON(label string, s engine.Summary, path string) error {
	data, err := NewDefaultJSONFormatter().FormatSummary(label, s)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if err := ensureParent(path); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(path, data)
}
