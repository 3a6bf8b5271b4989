package reporting

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ducminhle1904/quantile-risk-engine/internal/backtest"
	"github.com/ducminhle1904/quantile-risk-engine/internal/engine"
	"github.com/ducminhle1904/quantile-risk-engine/internal/store"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/validation"
)

// DefaultConsoleReporter renders tables to an output stream
type DefaultConsoleReporter struct {
	out io.Writer
}

// NewDefaultConsoleReporter creates a console reporter writing to stdout
func NewDefaultConsoleReporter() *DefaultConsoleReporter {
	return &DefaultConsoleReporter{out: os.Stdout}
}

// NewConsoleReporter creates a console reporter writing to w
func NewConsoleReporter(w io.Writer) *DefaultConsoleReporter {
	return &DefaultConsoleReporter{out: w}
}

// OutputResults prints a backtest run with its window and outcome counts
func (r *DefaultConsoleReporter) OutputResults(results *backtest.BacktestResults) {
	if results == nil {
		return
	}
	title := "BACKTEST RESULTS"
	if results.Label != "" {
		title = fmt.Sprintf("BACKTEST RESULTS - %s", results.Label)
	}

	t := r.newTable(title)
	t.AppendRows([]table.Row{
		{"📅 Period", fmt.Sprintf("%s → %s (%d days)", results.StartDate.Format("2006-01-02"), results.EndDate.Format("2006-01-02"), results.Days)},
		{"🆔 Run", results.RunID},
	})
	t.AppendSeparator()
	appendSummaryRows(t, results.Summary)
	if results.Liquidated {
		t.AppendSeparator()
		t.AppendRow(table.Row{"🚨 Liquidated", results.LiquidatedAt.Format("2006-01-02")})
	}
	if len(results.Outcomes) > 0 {
		t.AppendSeparator()
		outcomes := make([]string, 0, len(results.Outcomes))
		for o := range results.Outcomes {
			outcomes = append(outcomes, string(o))
		}
		sort.Strings(outcomes)
		for _, o := range outcomes {
			t.AppendRow(table.Row{"🧭 " + o, results.Outcomes[engine.Outcome(o)]})
		}
	}
	r.renderPairs(t)
}

// OutputSummary prints a summary under the given title
func (r *DefaultConsoleReporter) OutputSummary(title string, summary engine.Summary) {
	t := r.newTable(title)
	appendSummaryRows(t, summary)
	r.renderPairs(t)
}

func appendSummaryRows(t table.Writer, s engine.Summary) {
	m := s.Metrics
	t.AppendRows([]table.Row{
		{"⚙️ Profile", s.Profile},
		{"💰 Initial Capital", fmt.Sprintf("$%.2f", s.InitialCapital)},
		{"💰 Final Capital", fmt.Sprintf("$%.2f", s.FinalCapital)},
		{"📈 Total Return", pct(s.TotalReturn)},
		{"📈 Annualized Return", pct(m.AnnualizedReturn)},
		{"📉 Max Drawdown", pct(m.MaxDrawdown)},
		{"📊 Volatility", pct(m.Volatility)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"📊 Sharpe Ratio", fmt.Sprintf("%.2f", m.SharpeRatio)},
		{"📊 Sortino Ratio", fmt.Sprintf("%.2f", m.SortinoRatio)},
		{"📊 Calmar Ratio", fmt.Sprintf("%.2f", m.CalmarRatio)},
		{"⚠️ VaR 95 / CVaR 95", fmt.Sprintf("%s / %s", pct(m.VaR95), pct(m.CVaR95))},
		{"⚠️ VaR 99 / CVaR 99", fmt.Sprintf("%s / %s", pct(m.VaR99), pct(m.CVaR99))},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"🔄 Trades", fmt.Sprintf("%d (%d closed)", m.TotalTrades, m.ClosedTrades)},
		{"✅ Win Rate", fmt.Sprintf("%s (%d W / %d L)", pct(m.WinRate), m.WinningTrades, m.LosingTrades)},
		{"💹 Profit Factor", fmt.Sprintf("%.2f", m.ProfitFactor)},
		{"🎯 Max / Avg Exposure", fmt.Sprintf("%s / %s", pct(m.MaxExposure), pct(m.AvgExposure))},
		{"💸 Costs", fmt.Sprintf("$%.2f commission, $%.2f slippage", m.TotalCommission, m.TotalSlippage)},
		{"🚫 Violations", len(s.Violations)},
		{"📂 Open Positions", s.OpenPositions},
	})
}

// PrintComparison prints one row per profile run
func (r *DefaultConsoleReporter) PrintComparison(results []backtest.BacktestResult) {
	t := r.newTable("PROFILE COMPARISON")
	t.AppendHeader(table.Row{"Profile", "Final", "Return", "Max DD", "Sharpe", "Sortino", "Trades", "Win Rate", "Violations"})
	for _, res := range results {
		if res.Error != nil || res.Results == nil {
			t.AppendRow(table.Row{res.Label, "error", res.Error, "", "", "", "", "", ""})
			continue
		}
		s := res.Results.Summary
		t.AppendRow(table.Row{
			res.Label,
			fmt.Sprintf("$%.2f", s.FinalCapital),
			pct(s.TotalReturn),
			pct(s.Metrics.MaxDrawdown),
			fmt.Sprintf("%.2f", s.Metrics.SharpeRatio),
			fmt.Sprintf("%.2f", s.Metrics.SortinoRatio),
			s.Metrics.TotalTrades,
			pct(s.Metrics.WinRate),
			len(s.Violations),
		})
	}
	cfgs := []table.ColumnConfig{{Number: 1, Align: text.AlignLeft}}
	for n := 2; n <= 9; n++ {
		cfgs = append(cfgs, table.ColumnConfig{Number: n, Align: text.AlignRight})
	}
	t.SetColumnConfigs(cfgs)
	fmt.Fprintln(r.out, t.Render())
	fmt.Fprintln(r.out)
}

// PrintWalkForwardSummary prints per-fold results and the consistency verdict
func (r *DefaultConsoleReporter) PrintWalkForwardSummary(summary *validation.WalkForwardSummary) {
	if summary == nil {
		return
	}
	t := r.newTable("WALK-FORWARD SUMMARY")
	t.AppendHeader(table.Row{"Fold", "Train Return", "Test Return", "Train DD", "Test DD", "Train Sharpe", "Test Sharpe", "Trades"})
	for _, f := range summary.Results {
		t.AppendRow(table.Row{
			f.Fold,
			pct(f.TrainReturn),
			pct(f.TestReturn),
			pct(f.TrainDrawdown),
			pct(f.TestDrawdown),
			fmt.Sprintf("%.2f", f.TrainSharpe),
			fmt.Sprintf("%.2f", f.TestSharpe),
			fmt.Sprintf("%d / %d", f.TrainTrades, f.TestTrades),
		})
	}
	t.AppendSeparator()
	t.AppendRow(table.Row{
		"avg",
		fmt.Sprintf("%s ± %s", pct(summary.AverageTrainReturn), pct(summary.TrainReturnStdDev)),
		fmt.Sprintf("%s ± %s", pct(summary.AverageTestReturn), pct(summary.TestReturnStdDev)),
		pct(summary.AverageTrainDrawdown),
		pct(summary.AverageTestDrawdown),
		"", "", "",
	})
	fmt.Fprintln(r.out, t.Render())

	fmt.Fprintf(r.out, "Return degradation: %.1f%%\n", summary.ReturnDegradation*100)
	switch summary.OverfittingRisk {
	case validation.RiskHigh:
		fmt.Fprintln(r.out, "⚠️  HIGH OVERFITTING RISK - profile may not generalize")
	case validation.RiskModerate:
		fmt.Fprintln(r.out, "⚠️  MODERATE OVERFITTING - some out-of-sample degradation")
	default:
		fmt.Fprintln(r.out, "✅ ROBUST - consistent across folds")
	}
	fmt.Fprintln(r.out)
}

// PrintRunHistory prints stored runs, newest first, and the violation tally
// across all of them
func (r *DefaultConsoleReporter) PrintRunHistory(runs []store.RunModel, violations map[string]int64) {
	t := r.newTable("RUN HISTORY")
	t.AppendHeader(table.Row{"ID", "Kind", "Label", "Profile", "Finished", "Final", "Return", "Max DD", "Sharpe", "Trades"})
	for _, run := range runs {
		id := run.ID
		if len(id) > 8 {
			id = id[:8]
		}
		t.AppendRow(table.Row{
			id,
			run.Kind,
			run.Label,
			run.Profile,
			run.FinishedAt.Format("2006-01-02 15:04"),
			fmt.Sprintf("$%.2f", run.FinalCapital),
			pct(run.TotalReturn),
			pct(run.MaxDrawdown),
			fmt.Sprintf("%.2f", run.SharpeRatio),
			run.TradeCount,
		})
	}
	fmt.Fprintln(r.out, t.Render())

	if len(violations) == 0 {
		fmt.Fprintln(r.out)
		return
	}
	rules := make([]string, 0, len(violations))
	for rule := range violations {
		rules = append(rules, rule)
	}
	sort.Strings(rules)
	vt := r.newTable("VIOLATIONS BY RULE")
	for _, rule := range rules {
		vt.AppendRow(table.Row{rule, violations[rule]})
	}
	fmt.Fprintln(r.out, vt.Render())
	fmt.Fprintln(r.out)
}

func (r *DefaultConsoleReporter) newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	return t
}

// renderPairs writes a two-column key/value table
func (r *DefaultConsoleReporter) renderPairs(t table.Writer) {
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 22, Align: text.AlignLeft},
		{Number: 2, WidthMin: 25, WidthMax: 60, Align: text.AlignLeft},
	})
	fmt.Fprintln(r.out, t.Render())
	fmt.Fprintln(r.out)
}

func pct(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

// OutputConsole prints results to stdout
func OutputConsole(results *backtest.BacktestResults) {
	NewDefaultConsoleReporter().OutputResults(results)
}
