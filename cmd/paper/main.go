package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ducminhle1904/quantile-risk-engine/cmd/common"
	engerrors "github.com/ducminhle1904/quantile-risk-engine/internal/errors"
	"github.com/ducminhle1904/quantile-risk-engine/internal/engine"
	"github.com/ducminhle1904/quantile-risk-engine/internal/forecast"
	"github.com/ducminhle1904/quantile-risk-engine/internal/logger"
	"github.com/ducminhle1904/quantile-risk-engine/internal/monitoring"
	"github.com/ducminhle1904/quantile-risk-engine/internal/notifications"
	"github.com/ducminhle1904/quantile-risk-engine/internal/safety"
	"github.com/ducminhle1904/quantile-risk-engine/internal/session"
	"github.com/ducminhle1904/quantile-risk-engine/internal/store"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/config"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/reporting"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/types"
)

const appName = "qre-paper"

type paperFlags struct {
	common *common.CommonFlags

	forecastDir *string
	quotes      *string
	prices      *string
	label       *string
	resume      *string

	interval *string
	idleTTL  *string
	listen   *string

	checkpoints *string
	output      *string
	db          *string
}

func registerFlags(fs *flag.FlagSet) *paperFlags {
	return &paperFlags{
		common: common.RegisterCommonFlags(fs),

		forecastDir: fs.String("forecast-dir", "forecasts", "Directory watched for forecast files (.csv or .json)"),
		quotes:      fs.String("quotes", "", "JSON quote file re-read on every price update"),
		prices:      fs.String("prices", "", "Fixed prices, e.g. AAPL=187.2,MSFT=402.5"),
		label:       fs.String("label", "paper", "Session label"),
		resume:      fs.String("resume", "", "Resume the session with this id from its checkpoint"),

		interval: fs.String("interval", "1m", "Price update interval"),
		idleTTL:  fs.String("idle-ttl", "1d", "Stop sessions idle for this long (0 disables)"),
		listen:   fs.String("listen", ":9090", "Address for /metrics and /health (empty disables)"),

		checkpoints: fs.String("checkpoints", "state", "Session checkpoint directory"),
		output:      fs.String("output", "", "Report directory (defaults to config results_dir)"),
		db:          fs.String("db", "", "SQLite database for session history (defaults to config database_path)"),
	}
}

func (f *paperFlags) validate() error {
	v := common.NewFlagValidator().
		ValidateChoice("profile", *f.common.Profile, config.PresetNames(), true).
		ValidateDirectory("forecast-dir", *f.forecastDir, true).
		ValidateFile("quotes", *f.quotes, false)
	if *f.quotes == "" && *f.prices == "" {
		v.AddError("one of -quotes or -prices is required")
	}
	if _, err := parsePrices(*f.prices); err != nil {
		v.AddError(err.Error())
	}
	if d, err := common.ParseDuration(*f.interval); err != nil || d <= 0 {
		v.AddError(fmt.Sprintf("interval must be a positive duration, got: %s", *f.interval))
	}
	if *f.idleTTL != "0" {
		if _, err := common.ParseDuration(*f.idleTTL); err != nil {
			v.AddError(fmt.Sprintf("idle-ttl must be a duration, got: %s", *f.idleTTL))
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

	usage := common.NewUsageFormatter(appName, "Paper-trade forecasts dropped into a directory against live quotes").
		AddExample(appName+" -config configs/paper.yaml -forecast-dir inbox -quotes quotes.json", "Watch inbox and mark to quotes.json").
		AddExample(appName+" -prices AAPL=187.2 -profile conservative", "Trade against fixed prices").
		AddExample(appName+" -quotes quotes.json -resume 6f1c...", "Resume a checkpointed session")
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

// trader owns the single active session and replaces it with a fresh one,
// built from the latest configuration, after it stops.
type trader struct {
	store   *session.Store
	reports *reporting.ReportingManager
	health  *monitoring.HealthChecker
	notify  notifications.Notifier
	label   string
	log     zerolog.Logger

	mu       sync.Mutex
	cfg      config.EngineConfig
	current  *session.Session
	reported map[string]bool
}

func run(ctx context.Context, flags *paperFlags, zl zerolog.Logger) error {
	cfg, err := loadConfig(flags, zl)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	prices, err := priceSource(flags)
	if err != nil {
		return err
	}

	opts := []session.Option{
		session.WithLogger(zl),
		session.WithCheckpointDir(*flags.checkpoints),
	}
	if cfg.LogDir != "" {
		opts = append(opts, session.WithLogDir(cfg.LogDir))
	}
	if path := firstNonEmpty(*flags.db, cfg.DatabasePath); path != "" {
		runs, err := store.NewGormStore(path)
		if err != nil {
			return fmt.Errorf("open run store: %w", err)
		}
		defer runs.Close()
		opts = append(opts, session.WithRunStore(runs))
	}

	repCfg := reporting.DefaultReportingConfig()
	repCfg.OutputDirectory = firstNonEmpty(*flags.output, cfg.ResultsDir, reporting.DefaultResultsRoot)
	repCfg.EnableFiles = !*flags.common.ConsoleOnly
	repCfg.ChartEnabled = false

	breaker := safety.NewCircuitBreaker("quotes", safety.DefaultCircuitBreakerConfig())
	guarded := forecast.NewGuardedPriceSource(forecast.NewRetryingPriceSource(prices, forecast.DefaultRetryConfig()), breaker)
	sessions := session.NewStore(guarded, opts...)
	t := &trader{
		store:    sessions,
		reports:  reporting.NewReportingManager(repCfg),
		health:   monitoring.NewHealthChecker(sessions.Counts),
		notify:   notifications.FromEnv(os.Getenv),
		label:    *flags.label,
		log:      zl.With().Str("component", "paper").Logger(),
		cfg:      *cfg,
		reported: make(map[string]bool),
	}
	breaker.SetStateChangeCallback(func(name string, from, to safety.CircuitBreakerState) {
		t.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("price source circuit changed")
		if to == safety.StateOpen {
			t.alert(notifications.LevelWarning, fmt.Sprintf("price source %s unavailable, circuit open", name))
		}
	})
	if *flags.resume != "" {
		s, err := sessions.Restore(*cfg, *flags.resume, t.label)
		if err != nil {
			return fmt.Errorf("resume %s: %w", *flags.resume, err)
		}
		t.current = s
		common.Success("Resumed session %s", s.ID())
	}
	if *flags.common.ConfigFile != "" {
		if _, err := config.Watch(*flags.common.ConfigFile, t.reconfigure, func(err error) {
			t.log.Warn().Err(err).Msg("config reload rejected")
		}); err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
	}

	srv := t.serve(*flags.listen)
	watcher := forecast.NewWatcher(*flags.forecastDir, t.handleForecasts, zl)
	interval, _ := common.ParseDuration(*flags.interval)
	var ttl time.Duration
	if *flags.idleTTL != "0" {
		ttl, _ = common.ParseDuration(*flags.idleTTL)
	}

	common.Header("PAPER TRADING")
	common.Info("Watching %s, marking every %s (%s profile)", *flags.forecastDir, common.FormatDuration(interval), cfg.RiskProfile)

	watchErr := make(chan error, 1)
	go func() { watchErr <- watcher.Run(ctx) }()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-watchErr:
			if err != nil && !errors.Is(err, context.Canceled) {
				t.shutdown(srv)
				return fmt.Errorf("forecast watcher: %w", err)
			}
			break loop
		case <-ticker.C:
			t.tick(ctx, ttl)
		}
	}

	t.shutdown(srv)
	return nil
}

func loadConfig(flags *paperFlags, zl zerolog.Logger) (*config.EngineConfig, error) {
	cfg, err := common.LoadEngineConfig(flags.common)
	if err != nil {
		return nil, err
	}
	cfg.Mode = config.ModeLive
	zl.Info().Str("profile", cfg.RiskProfile).Float64("capital", cfg.InitialCapital).
		Strs("symbols", cfg.Symbols).Msg("configuration loaded")
	return cfg, nil
}

// reconfigure takes effect when the next session is created
func (t *trader) reconfigure(next *config.EngineConfig) {
	next.Mode = config.ModeLive
	t.mu.Lock()
	profile := t.cfg.RiskProfile
	t.cfg = *next
	t.mu.Unlock()
	t.log.Info().Str("from", profile).Str("to", next.RiskProfile).Msg("config reloaded; applies to the next session")
}

// active returns the running session, creating one when none is active
func (t *trader) active() (*session.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil && t.current.State() == session.StateActive {
		return t.current, nil
	}
	s, err := t.store.Create(t.cfg, t.label)
	if err != nil {
		return nil, err
	}
	t.current = s
	common.Success("Started session %s (%s profile)", s.ID(), t.cfg.RiskProfile)
	t.alert(notifications.LevelInfo, fmt.Sprintf("session %s started (%s profile, capital %.2f)", s.ID(), t.cfg.RiskProfile, t.cfg.InitialCapital))
	return s, nil
}

func (t *trader) handleForecasts(ctx context.Context, forecasts []types.Forecast) error {
	s, err := t.active()
	if err != nil {
		t.health.ReportError(err.Error())
		return err
	}
	for _, f := range forecasts {
		res, err := s.SubmitForecast(ctx, f)
		if err != nil {
			if engerrors.IsFatal(err) {
				t.failed(s, err)
				return err
			}
			t.log.Warn().Err(err).Str("symbol", f.Symbol).Msg("forecast not traded")
			continue
		}
		t.logResult(f, res)
	}
	return nil
}

func (t *trader) logResult(f types.Forecast, res engine.Result) {
	ev := t.log.Debug()
	if res.Trade != nil {
		ev = t.log.Info()
		t.health.MarkTrade(res.Trade.Timestamp)
		ev = ev.Str("side", string(res.Trade.Side)).Float64("qty", res.Trade.Quantity).Float64("price", res.Trade.EntryPrice)
	}
	ev.Str("symbol", f.Symbol).Str("outcome", string(res.Outcome)).Msg("forecast processed")
}

func (t *trader) tick(ctx context.Context, ttl time.Duration) {
	t.mu.Lock()
	s := t.current
	t.mu.Unlock()

	if s != nil && s.State() == session.StateActive {
		trades, err := s.UpdatePrices(ctx)
		switch {
		case err != nil:
			t.log.Warn().Err(err).Str("session", s.ID()).Msg("price update failed")
			if engerrors.IsFatal(err) {
				t.failed(s, err)
			}
		default:
			t.health.MarkPrice(time.Now())
			for _, tr := range trades {
				t.health.MarkTrade(tr.Timestamp)
				price := tr.EntryPrice
				if tr.ExitPrice != nil {
					price = *tr.ExitPrice
				}
				common.Info("%s %s %.4f @ %.4f (%s)", tr.Symbol, tr.Side, tr.Quantity, price, tr.Reason)
			}
		}
	}

	if ttl <= 0 {
		return
	}
	for _, id := range t.store.Expire(ctx, ttl) {
		t.log.Info().Str("session", id).Dur("idle_ttl", ttl).Msg("session expired")
		if s, err := t.store.Get(id); err == nil {
			t.report(s.ID(), s.Summary())
		}
	}
}

// failed reports a session that stopped on an invariant breach. Its summary
// is written now since idle expiry drops terminal sessions from the store.
func (t *trader) failed(s *session.Session, err error) {
	t.health.ReportError(err.Error())
	t.alert(notifications.LevelError, fmt.Sprintf("session %s failed: %v", s.ID(), err))
	t.report(s.ID(), s.Summary())
}

func (t *trader) serve(addr string) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.NewMetricsHandler())
	mux.Handle("/health", t.health)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	t.log.Info().Str("addr", addr).Msg("serving /metrics and /health")
	return srv
}

func (t *trader) shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	infos := t.store.List()
	if err := t.store.StopAll(ctx); err != nil {
		common.Error("stopping sessions: %v", err)
	}
	for _, info := range infos {
		s, err := t.store.Get(info.ID)
		if err != nil {
			continue
		}
		t.report(s.ID(), s.Summary())
	}
	if srv != nil {
		_ = srv.Shutdown(ctx)
	}
}

func (t *trader) report(id string, summary engine.Summary) {
	t.mu.Lock()
	done := t.reported[id]
	t.reported[id] = true
	t.mu.Unlock()
	if done {
		return
	}
	t.alert(notifications.LevelSuccess, fmt.Sprintf("session %s ended: equity %.2f (%+.2f%%), %d trades, %d violations",
		id, summary.FinalCapital, summary.TotalReturn*100, len(summary.Trades), len(summary.Violations)))
	written, err := t.reports.ReportSession(t.label, summary)
	if err != nil {
		common.Error("report session %s: %v", id, err)
		return
	}
	for _, path := range written {
		common.Success("wrote %s", path)
	}
}

func (t *trader) alert(level, msg string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := t.notify.SendAlert(ctx, level, msg); err != nil {
		t.log.Warn().Err(err).Msg("alert not delivered")
	}
}

func priceSource(flags *paperFlags) (forecast.PriceSource, error) {
	if *flags.quotes != "" {
		return forecast.NewQuoteFile(*flags.quotes), nil
	}
	prices, err := parsePrices(*flags.prices)
	if err != nil {
		return nil, err
	}
	return forecast.NewStaticPrices(prices), nil
}

// parsePrices reads SYMBOL=PRICE pairs separated by commas
func parsePrices(s string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		sym, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("price %q must look like SYMBOL=PRICE", pair)
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || price <= 0 {
			return nil, fmt.Errorf("price for %s must be a positive number, got: %s", sym, raw)
		}
		out[strings.ToUpper(strings.TrimSpace(sym))] = price
	}
	return out, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
