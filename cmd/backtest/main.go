package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ducminhle1904/quantile-risk-engine/cmd/common"
	"github.com/ducminhle1904/quantile-risk-engine/internal/backtest"
	"github.com/ducminhle1904/quantile-risk-engine/internal/forecast"
	"github.com/ducminhle1904/quantile-risk-engine/internal/logger"
	"github.com/ducminhle1904/quantile-risk-engine/internal/store"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/config"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/data"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/reporting"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/types"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/validation"
)

const appName = "qre-backtest"

// Run modes
const (
	modeSingle      = "single"
	modeCompare     = "compare"
	modeWalkForward = "walk-forward"
)

type backtestFlags struct {
	common *common.CommonFlags

	bars      *string
	symbols   *string
	forecasts *string
	start     *string
	end       *string
	period    *string

	mode     *string
	profiles *string
	workers  *int
	label    *string

	wfRolling *bool
	wfSplit   *float64
	wfTrain   *int
	wfTest    *int
	wfRoll    *int

	output *string
	db     *string

	history *int
	show    *string
}

func registerFlags(fs *flag.FlagSet) *backtestFlags {
	wf := validation.DefaultWalkForwardConfig()
	return &backtestFlags{
		common: common.RegisterCommonFlags(fs),

		bars:      fs.String("bars", "", "Multi-symbol bar file (symbol,date,open,high,low,close,volume)"),
		symbols:   fs.String("symbols", "", "Comma-separated symbols loaded from -data-root (defaults to config symbols)"),
		forecasts: fs.String("forecasts", "", "Forecast file (.csv or .json)"),
		start:     fs.String("start", "", "First trading day (YYYY-MM-DD)"),
		end:       fs.String("end", "", "Last trading day (YYYY-MM-DD)"),
		period:    fs.String("period", "", "Trailing window ending at the last bar, e.g. 180d"),

		mode:     fs.String("mode", modeSingle, "Run mode: single, compare, walk-forward"),
		profiles: fs.String("profiles", strings.Join(config.PresetNames(), ","), "Profiles for -mode compare"),
		workers:  fs.Int("workers", 4, "Parallel backtests for compare and walk-forward"),
		label:    fs.String("label", "", "Run label used in reports"),

		wfRolling: fs.Bool("wf-rolling", false, "Rolling walk-forward folds instead of one holdout split"),
		wfSplit:   fs.Float64("wf-split", wf.SplitRatio, "Train fraction for the holdout split"),
		wfTrain:   fs.Int("wf-train", wf.TrainDays, "Rolling train window in trading days"),
		wfTest:    fs.Int("wf-test", wf.TestDays, "Rolling test window in trading days"),
		wfRoll:    fs.Int("wf-roll", wf.RollDays, "Rolling step in trading days"),

		output: fs.String("output", "", "Report directory (defaults to config results_dir)"),
		db:     fs.String("db", "", "SQLite database for run history (defaults to config database_path)"),

		history: fs.Int("history", 0, "List the N most recent stored runs and exit"),
		show:    fs.String("show", "", "Print the stored summary of a run id and exit"),
	}
}

// inspecting reports whether the run only reads the run store
func (f *backtestFlags) inspecting() bool {
	return *f.history > 0 || *f.show != ""
}

func (f *backtestFlags) validate() error {
	v := common.NewFlagValidator().
		ValidateChoice("mode", *f.mode, []string{modeSingle, modeCompare, modeWalkForward}, false).
		ValidateChoice("profile", *f.common.Profile, config.PresetNames(), true).
		ValidateFile("forecasts", *f.forecasts, !f.inspecting()).
		ValidateFile("bars", *f.bars, false).
		ValidateInt("workers", *f.workers, 1, 64).
		ValidateFloat("wf-split", *f.wfSplit, 0.1, 0.95)
	if *f.bars == "" && !f.inspecting() {
		v.ValidateDirectory("data-root", *f.common.DataRoot, true)
	}
	if *f.period != "" {
		if _, ok := data.ParseTrailingPeriod(*f.period); !ok {
			v.AddError(fmt.Sprintf("period must look like 30d or 180d, got: %s", *f.period))
		}
	}
	for _, d := range []struct{ name, value string }{{"start", *f.start}, {"end", *f.end}} {
		if d.value == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", d.value); err != nil {
			v.AddError(fmt.Sprintf("%s must be YYYY-MM-DD, got: %s", d.name, d.value))
		}
	}
	if v.HasErrors() {
		v.PrintErrors()
		return v.GetError()
	}
	return nil
}

func main() {
	fs := flag.NewFlagSet(appName, flag.ExitOnError)
	flags := registerFlags(fs)
	_ = fs.Parse(os.Args[1:])

	usage := common.NewUsageFormatter(appName, "Replay quantile forecasts through the risk-constrained trading engine").
		AddExample(appName+" -bars data/panel.csv -forecasts data/forecasts.csv", "Single backtest with the configured profile").
		AddExample(appName+" -bars data/panel.csv -forecasts data/forecasts.csv -mode compare", "Compare every risk profile on the same data").
		AddExample(appName+" -symbols AAPL,MSFT -forecasts f.json -mode walk-forward -wf-rolling", "Rolling walk-forward validation").
		AddExample(appName+" -db results/runs.db -history 20", "List the last 20 stored runs")
	if common.CheckHelpAndVersion(appName, fs, flags.common, usage) {
		return
	}

	if err := common.LoadEnvFile(*flags.common.EnvFile); err != nil {
		common.Warn("continuing without %s", *flags.common.EnvFile)
	}
	common.SetupLogger(flags.common)
	zl := logger.NewConsole(*flags.common.LogLevel)

	if err := flags.validate(); err != nil {
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flags, zl); err != nil {
		common.Error("%v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, flags *backtestFlags, zl zerolog.Logger) error {
	cfg, err := common.LoadEngineConfig(flags.common)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	cfg.Mode = config.ModeBacktest

	if flags.inspecting() {
		return inspect(ctx, flags, cfg)
	}

	in, err := loadInput(flags, cfg)
	if err != nil {
		return err
	}
	common.Info("Loaded %d symbols and %d forecasts", len(in.Bars), in.Forecasts.Len())

	repCfg := reporting.DefaultReportingConfig()
	repCfg.OutputDirectory = firstNonEmpty(*flags.output, cfg.ResultsDir, reporting.DefaultResultsRoot)
	repCfg.EnableFiles = !*flags.common.ConsoleOnly
	reports := reporting.NewReportingManager(repCfg)

	var runs *store.GormStore
	if path := firstNonEmpty(*flags.db, cfg.DatabasePath); path != "" && !*flags.common.ConsoleOnly {
		if runs, err = store.NewGormStore(path); err != nil {
			return fmt.Errorf("open run store: %w", err)
		}
		defer runs.Close()
	}

	switch *flags.mode {
	case modeCompare:
		return runCompare(ctx, flags, *cfg, in, zl, reports, runs)
	case modeWalkForward:
		return runWalkForward(ctx, flags, *cfg, in, zl, reports)
	default:
		return runSingle(ctx, flags, *cfg, in, zl, reports, runs)
	}
}

func runSingle(ctx context.Context, flags *backtestFlags, cfg config.EngineConfig, in backtest.Input, zl zerolog.Logger, reports *reporting.ReportingManager, runs *store.GormStore) error {
	bt := backtest.NewBacktestEngine(cfg, zl)
	bt.SetLabel(firstNonEmpty(*flags.label, cfg.RiskProfile))

	common.Progress("Running backtest (%s profile)", cfg.RiskProfile)
	res, err := bt.Run(ctx, in)
	if err != nil {
		return err
	}
	written, err := reports.ReportResults(res)
	if err != nil {
		return fmt.Errorf("write reports: %w", err)
	}
	for _, path := range written {
		common.Success("wrote %s", path)
	}
	return persist(ctx, runs, res)
}

func runCompare(ctx context.Context, flags *backtestFlags, cfg config.EngineConfig, in backtest.Input, zl zerolog.Logger, reports *reporting.ReportingManager, runs *store.GormStore) error {
	profiles := splitList(*flags.profiles)
	pool := backtest.NewWorkerPool(*flags.workers, zl)
	tracker := backtest.NewProgressTracker(len(profiles))
	pool.OnProgress(func(done, total int) {
		tracker.Increment()
		common.Progress("%d/%d profiles done", done, total)
	})

	results, err := backtest.CompareProfiles(ctx, pool, cfg, profiles, in)
	if err != nil {
		return err
	}
	written, err := reports.ReportComparison(results)
	if err != nil {
		return fmt.Errorf("write comparison: %w", err)
	}
	for _, path := range written {
		common.Success("wrote %s", path)
	}
	for _, r := range results {
		if r.Error != nil {
			common.Warn("profile %s failed: %v", r.Label, r.Error)
			continue
		}
		if err := persist(ctx, runs, r.Results); err != nil {
			return err
		}
	}
	_, _, _, elapsed := tracker.GetProgress()
	common.Info("Compared %d profiles in %s", len(results), common.FormatDuration(elapsed))
	return nil
}

func runWalkForward(ctx context.Context, flags *backtestFlags, cfg config.EngineConfig, in backtest.Input, zl zerolog.Logger, reports *reporting.ReportingManager) error {
	wf := validation.DefaultWalkForwardConfig()
	wf.Rolling = *flags.wfRolling
	wf.SplitRatio = *flags.wfSplit
	wf.TrainDays = *flags.wfTrain
	wf.TestDays = *flags.wfTest
	wf.RollDays = *flags.wfRoll

	pool := backtest.NewWorkerPool(*flags.workers, zl)
	summary, _, err := backtest.WalkForward(ctx, pool, cfg, in, wf)
	if err != nil {
		return err
	}
	written, err := reports.ReportWalkForward(summary)
	if err != nil {
		return fmt.Errorf("write walk-forward report: %w", err)
	}
	for _, path := range written {
		common.Success("wrote %s", path)
	}
	return nil
}

// inspect prints stored runs without running a backtest
func inspect(ctx context.Context, flags *backtestFlags, cfg *config.EngineConfig) error {
	path := firstNonEmpty(*flags.db, cfg.DatabasePath)
	if path == "" {
		return fmt.Errorf("-history and -show need -db or database_path in the config")
	}
	runs, err := store.NewGormStore(path)
	if err != nil {
		return fmt.Errorf("open run store: %w", err)
	}
	defer runs.Close()

	console := reporting.NewDefaultConsoleReporter()
	if *flags.show != "" {
		summary, err := runs.LoadSummary(ctx, *flags.show)
		if err != nil {
			return err
		}
		console.OutputSummary("STORED RUN "+summary.RunID, summary)
		return nil
	}

	list, err := runs.ListRuns(ctx, "", *flags.history)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	counts, err := runs.ViolationCounts(ctx)
	if err != nil {
		return fmt.Errorf("count violations: %w", err)
	}
	console.PrintRunHistory(list, counts)
	return nil
}

func loadInput(flags *backtestFlags, cfg *config.EngineConfig) (backtest.Input, error) {
	var in backtest.Input
	var err error

	start, end := parseDay(*flags.start), parseDay(*flags.end)
	if *flags.bars != "" {
		in.Bars, err = data.LoadPanel(*flags.bars)
	} else {
		symbols := splitList(*flags.symbols)
		if len(symbols) == 0 {
			symbols = cfg.Symbols
		}
		if len(symbols) == 0 {
			return in, fmt.Errorf("no symbols: pass -bars, -symbols or set symbols in the config")
		}
		in.Bars, err = data.NewDataManager().LoadSymbols(*flags.common.DataRoot, symbols, time.Time{}, time.Time{})
	}
	if err != nil {
		return in, fmt.Errorf("load bars: %w", err)
	}
	if len(in.Bars) == 0 {
		return in, fmt.Errorf("no bars loaded")
	}

	forecasts, err := forecast.Load(*flags.forecasts)
	if err != nil {
		return in, fmt.Errorf("load forecasts: %w", err)
	}
	in.Forecasts = forecast.NewBook(forecasts...)

	if d, ok := data.ParseTrailingPeriod(*flags.period); ok {
		last := lastDay(in.Bars)
		end = last
		start = last.Add(-d)
	}
	in.Start, in.End = start, end
	return in, nil
}

func persist(ctx context.Context, runs *store.GormStore, res *backtest.BacktestResults) error {
	if runs == nil || res == nil {
		return nil
	}
	rec := store.RunRecord{
		ID:        res.RunID,
		Kind:      store.KindBacktest,
		Label:     res.Label,
		StartedAt: time.Now().Add(-res.Duration),
		Summary:   res.Summary,
	}
	if err := runs.SaveRun(ctx, rec); err != nil {
		return fmt.Errorf("save run %s: %w", res.RunID, err)
	}
	return nil
}

func lastDay(bars map[string][]types.OHLCV) time.Time {
	var last time.Time
	for _, series := range bars {
		if n := len(series); n > 0 && series[n-1].Timestamp.After(last) {
			last = series[n-1].Timestamp
		}
	}
	return last
}

func parseDay(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
