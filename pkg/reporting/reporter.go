package reporting

import (
	"path/filepath"

	"github.com/ducminhle1904/quantile-risk-engine/internal/backtest"
	"github.com/ducminhle1904/quantile-risk-engine/internal/engine"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/validation"
)

// Output file names inside a run directory
const (
	TradesCSVFile   = "trades.csv"
	WorkbookFile    = "report.xlsx"
	SummaryJSONFile = "summary.json"
	EquityChartFile = "equity.html"
	CompareChart    = "comparison.html"
	WalkForwardFile = "walk_forward.json"
)

// DefaultReporter implements the complete Reporter interface
type DefaultReporter struct {
	console *DefaultConsoleReporter
	csv     *DefaultCSVReporter
	excel   *DefaultExcelReporter
	json    *DefaultJSONFormatter
	paths   *DefaultPathManager
}

// NewDefaultReporter creates a reporter writing the console to stdout and
// files under root
func NewDefaultReporter(root string) *DefaultReporter {
	return &DefaultReporter{
		console: NewDefaultConsoleReporter(),
		csv:     NewDefaultCSVReporter(),
		excel:   NewDefaultExcelReporter(),
		json:    NewDefaultJSONFormatter(),
		paths:   NewDefaultPathManager(root),
	}
}

// Console output methods
func (r *DefaultReporter) OutputResults(results *backtest.BacktestResults) {
	r.console.OutputResults(results)
}

func (r *DefaultReporter) OutputSummary(title string, summary engine.Summary) {
	r.console.OutputSummary(title, summary)
}

func (r *DefaultReporter) PrintComparison(results []backtest.BacktestResult) {
	r.console.PrintComparison(results)
}

func (r *DefaultReporter) PrintWalkForwardSummary(summary *validation.WalkForwardSummary) {
	r.console.PrintWalkForwardSummary(summary)
}

// File output methods
func (r *DefaultReporter) WriteTradesCSV(summary engine.Summary, path string) error {
	return r.csv.WriteTradesCSV(summary, path)
}

func (r *DefaultReporter) WriteTradesXLSX(results *backtest.BacktestResults, path string) error {
	return r.excel.WriteTradesXLSX(results, path)
}

func (r *DefaultReporter) WriteSummaryJSON(results *backtest.BacktestResults, path string) error {
	return r.json.WriteSummaryJSON(results, path)
}

func (r *DefaultReporter) WriteEquityChart(results *backtest.BacktestResults, path string) error {
	return WriteEquityChart(results, path)
}

// Path management methods
func (r *DefaultReporter) GetDefaultOutputDir(label, runID string) string {
	return r.paths.GetDefaultOutputDir(label, runID)
}

func (r *DefaultReporter) EnsureDirectoryExists(path string) error {
	return r.paths.EnsureDirectoryExists(path)
}

// ReportingManager provides a high-level interface for all reporting needs
type ReportingManager struct {
	reporter Reporter
	config   ReportingConfig
}

// NewReportingManager creates a new reporting manager with configuration
func NewReportingManager(config ReportingConfig) *ReportingManager {
	return &ReportingManager{
		reporter: NewDefaultReporter(config.OutputDirectory),
		config:   config,
	}
}

// NewReportingManagerWith uses a caller-supplied reporter
func NewReportingManagerWith(reporter Reporter, config ReportingConfig) *ReportingManager {
	return &ReportingManager{reporter: reporter, config: config}
}

// ReportResults outputs a backtest run according to configuration and
// returns the files written
func (m *ReportingManager) ReportResults(results *backtest.BacktestResults) ([]string, error) {
	if m.config.EnableConsole {
		m.reporter.OutputResults(results)
	}
	if !m.config.EnableFiles || results == nil {
		return nil, nil
	}

	dir := m.reporter.GetDefaultOutputDir(results.Label, results.RunID)
	var written []string
	write := func(enabled bool, name string, fn func(string) error) error {
		if !enabled {
			return nil
		}
		path := filepath.Join(dir, name)
		if err := fn(path); err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	if err := write(m.config.CSVEnabled, TradesCSVFile, func(p string) error {
		return m.reporter.WriteTradesCSV(results.Summary, p)
	}); err != nil {
		return written, err
	}
	if err := write(m.config.ExcelEnabled, WorkbookFile, func(p string) error {
		return m.reporter.WriteTradesXLSX(results, p)
	}); err != nil {
		return written, err
	}
	if err := write(m.config.JSONEnabled, SummaryJSONFile, func(p string) error {
		return m.reporter.WriteSummaryJSON(results, p)
	}); err != nil {
		return written, err
	}
	if err := write(m.config.ChartEnabled && len(results.Summary.Equity) > 0, EquityChartFile, func(p string) error {
		return m.reporter.WriteEquityChart(results, p)
	}); err != nil {
		return written, err
	}
	return written, nil
}

// ReportComparison prints the comparison table and writes the overlay chart
func (m *ReportingManager) ReportComparison(results []backtest.BacktestResult) ([]string, error) {
	if m.config.EnableConsole {
		m.reporter.PrintComparison(results)
	}
	if !m.config.EnableFiles || !m.config.ChartEnabled {
		return nil, nil
	}
	path := filepath.Join(m.reporter.GetDefaultOutputDir("comparison", ""), CompareChart)
	if err := WriteComparisonChart(results, path); err != nil {
		return nil, err
	}
	return []string{path}, nil
}

// ReportWalkForward prints the fold table and writes the summary as JSON
func (m *ReportingManager) ReportWalkForward(summary *validation.WalkForwardSummary) ([]string, error) {
	if m.config.EnableConsole {
		m.reporter.PrintWalkForwardSummary(summary)
	}
	if !m.config.EnableFiles || !m.config.JSONEnabled || summary == nil {
		return nil, nil
	}
	path := filepath.Join(m.reporter.GetDefaultOutputDir("walk_forward", ""), WalkForwardFile)
	if err := writeJSON(path, summary); err != nil {
		return nil, err
	}
	return []string{path}, nil
}

// ReportSession prints and exports the final summary of a live session
func (m *ReportingManager) ReportSession(label string, summary engine.Summary) ([]string, error) {
	if m.config.EnableConsole {
		m.reporter.OutputSummary("SESSION SUMMARY", summary)
	}
	if !m.config.EnableFiles {
		return nil, nil
	}
	if label == "" {
		label = "session"
	}
	dir := m.reporter.GetDefaultOutputDir(label, summary.RunID)
	var written []string
	if m.config.CSVEnabled {
		path := filepath.Join(dir, TradesCSVFile)
		if err := m.reporter.WriteTradesCSV(summary, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	if m.config.ExcelEnabled {
		path := filepath.Join(dir, WorkbookFile)
		if err := NewDefaultExcelReporter().WriteSessionXLSX(summary, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	if m.config.JSONEnabled {
		path := filepath.Join(dir, SummaryJSONFile)
		if err := WriteSessionJSON(label, summary, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}
