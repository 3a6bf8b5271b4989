package engine

import (
	"github.com/ducminhle1904/quantile-risk-engine/internal/performance"
	"github.com/ducminhle1904/quantile-risk-engine/internal/portfolio"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/types"
)

// Summary is the final report of a backtest or stopped session
type Summary struct {
	RunID          string                     `json:"run_id"`
	Profile        string                     `json:"profile"`
	InitialCapital float64                    `json:"initial_capital"`
	FinalCapital   float64                    `json:"final_capital"`
	TotalReturn    float64                    `json:"total_return"`
	Trades         []portfolio.Trade          `json:"trades"`
	Metrics        performance.Metrics        `json:"performance_metrics"`
	Violations     []types.Violation          `json:"constraint_violations"`
	Equity         []portfolio.EquitySnapshot `json:"equity_curve"`
	OpenPositions  int                        `json:"open_positions"`
}

// NewSummary builds a summary from a portfolio state
func NewSummary(state *portfolio.State, profile string, analyzer *performance.Analyzer) Summary {
	final := state.TotalEquity()
	s := Summary{
		Profile:        profile,
		InitialCapital: state.InitialCapital,
		FinalCapital:   final,
		Trades:         append([]portfolio.Trade(nil), state.Trades...),
		Metrics:        analyzer.Analyze(state.Equity, state.Trades, state.InitialCapital),
		Violations:     append([]types.Violation(nil), state.Violations...),
		Equity:         append([]portfolio.EquitySnapshot(nil), state.Equity...),
		OpenPositions:  len(state.Positions),
	}
	if state.InitialCapital > 0 {
		s.TotalReturn = final/state.InitialCapital - 1
	}
	return s
}

// RealizedPnL sums realized profit across the ledger
func (s Summary) RealizedPnL() float64 {
	total := 0.0
	for _, t := range s.Trades {
		total += t.RealizedPnL
	}
	return total
}
