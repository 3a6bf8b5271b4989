package reporting

import (
	"github.com/ducminhle1904/quantile-risk-engine/internal/backtest"
	"github.com/ducminhle1904/quantile-risk-engine/internal/engine"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/validation"
)

// Package reporting renders run summaries to the console and to files

// ConsoleReporter defines interface for console output
type ConsoleReporter interface {
	OutputResults(results *backtest.BacktestResults)
	OutputSummary(title string, summary engine.Summary)
	PrintComparison(results []backtest.BacktestResult)
	PrintWalkForwardSummary(summary *validation.WalkForwardSummary)
}

// FileReporter defines interface for file output
type FileReporter interface {
	WriteTradesCSV(summary engine.Summary, path string) error
	WriteTradesXLSX(results *backtest.BacktestResults, path string) error
	WriteSummaryJSON(results *backtest.BacktestResults, path string) error
	WriteEquityChart(results *backtest.BacktestResults, path string) error
}

// PathManager defines interface for output path management
type PathManager interface {
	GetDefaultOutputDir(label, runID string) string
	EnsureDirectoryExists(path string) error
}

// Reporter combines all reporting interfaces
type Reporter interface {
	ConsoleReporter
	FileReporter
	PathManager
}

// ExcelStyles holds Excel formatting styles
type ExcelStyles struct {
	HeaderStyle        int
	CurrencyStyle      int
	PriceStyle         int
	QuantityStyle      int
	PercentStyle       int
	BaseStyle          int
	DateStyle          int
	RedPercentStyle    int
	GreenPercentStyle  int
	RedCurrencyStyle   int
	GreenCurrencyStyle int
	SummaryStyle       int
}

// ReportingConfig holds configuration for reporting
type ReportingConfig struct {
	EnableConsole   bool
	EnableFiles     bool
	OutputDirectory string
	ExcelEnabled    bool
	CSVEnabled      bool
	JSONEnabled     bool
	ChartEnabled    bool
}

// DefaultReportingConfig enables every output under results/
func DefaultReportingConfig() ReportingConfig {
	return ReportingConfig{
		EnableConsole:   true,
		EnableFiles:     true,
		OutputDirectory: DefaultResultsRoot,
		ExcelEnabled:    true,
		CSVEnabled:      true,
		JSONEnabled:     true,
		ChartEnabled:    true,
	}
}

var _ Reporter = (*DefaultReporter)(nil)
