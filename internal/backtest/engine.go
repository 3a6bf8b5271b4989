package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ducminhle1904/quantile-risk-engine/internal/engine"
	engerrors "github.com/ducminhle1904/quantile-risk-engine/internal/errors"
	"github.com/ducminhle1904/quantile-risk-engine/internal/forecast"
	"github.com/ducminhle1904/quantile-risk-engine/internal/portfolio"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/config"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/data"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/types"
)

// Input is the market history and forecast stream of one run. Start and End
// bound the simulated days (inclusive); zero bounds are open.
type Input struct {
	Bars      map[string][]types.OHLCV
	Forecasts *forecast.Book
	Start     time.Time
	End       time.Time
}

// BacktestResults is the outcome of one batch run
type BacktestResults struct {
	RunID        string                 `json:"run_id"`
	Label        string                 `json:"label"`
	Summary      engine.Summary         `json:"summary"`
	Days         int                    `json:"days"`
	StartDate    time.Time              `json:"start_date"`
	EndDate      time.Time              `json:"end_date"`
	Liquidated   bool                   `json:"liquidated"`
	LiquidatedAt time.Time              `json:"liquidated_at,omitempty"`
	Outcomes     map[engine.Outcome]int `json:"outcomes"`
	Duration     time.Duration          `json:"duration"`
}

// BacktestEngine replays daily closes and forecasts through the trading core.
// Every run gets a fresh portfolio.
type BacktestEngine struct {
	cfg   config.EngineConfig
	label string
	opts  []engine.Option
	log   zerolog.Logger
}

// NewBacktestEngine creates a batch driver. The configuration is forced into
// backtest mode so the drawdown rule is enforced.
func NewBacktestEngine(cfg config.EngineConfig, log zerolog.Logger, opts ...engine.Option) *BacktestEngine {
	cfg.Mode = config.ModeBacktest
	label := cfg.Risk.Name
	if label == "" {
		label = cfg.RiskProfile
	}
	return &BacktestEngine{
		cfg:   cfg,
		label: label,
		opts:  opts,
		log:   log,
	}
}

// SetLabel names the run in results and metrics
func (b *BacktestEngine) SetLabel(label string) {
	b.label = label
}

// Run simulates every trading day in ascending order. Per day it marks the
// book at the close, applies stop-loss/take-profit exits, enforces the
// drawdown limit, then processes forecasts dated on or before that day that
// were not seen before. Open positions are closed at the last close when the
// run ends. Only an invariant breach aborts the run.
func (b *BacktestEngine) Run(ctx context.Context, in Input) (*BacktestResults, error) {
	started := time.Now()
	results := &BacktestResults{
		RunID:    uuid.NewString(),
		Label:    b.label,
		Outcomes: make(map[engine.Outcome]int),
	}

	panel := data.BuildPanel(in.Bars)
	days := window(panel.Days, in.Start, in.End)

	opts := append([]engine.Option{engine.WithLabel(b.label)}, b.opts...)
	eng := engine.New(b.cfg, opts...)
	state := eng.NewPortfolio()
	book := in.Forecasts
	if book == nil {
		book = forecast.NewBook()
	}

	log := b.log.With().Str("run_id", results.RunID).Str("label", b.label).Logger()
	log.Info().Int("days", len(days)).Int("forecasts", book.Len()).Msg("backtest started")

	marks := make(map[string]float64)
	var seenUpto time.Time
	if len(days) > 0 {
		seenUpto = days[0].Add(-time.Nanosecond)
		results.StartDate = days[0]
		results.EndDate = days[len(days)-1]
	}

	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return b.finish(eng, state, results, started), err
		}

		closes := panel.Closes(day)
		for sym, p := range closes {
			marks[sym] = p
		}

		eng.Mark(state, marks, day)

		if _, err := eng.CheckExits(state, closes, day); err != nil {
			return b.abort(eng, state, results, started, day, err)
		}

		liquidated, _, err := eng.EnforceDrawdown(state, marks, day)
		if err != nil && engerrors.IsFatal(err) {
			return b.abort(eng, state, results, started, day, err)
		}
		if liquidated && !results.Liquidated {
			results.Liquidated, results.LiquidatedAt = true, day
			log.Warn().Time("day", day).Msg("drawdown limit reached, book liquidated")
		}

		endOfDay := day.Add(24*time.Hour - time.Nanosecond)
		for _, f := range book.Between(seenUpto, endOfDay) {
			res, err := eng.ProcessForecast(state, f, closes[f.Symbol], day)
			results.Outcomes[res.Outcome]++
			if err != nil && engerrors.IsFatal(err) {
				return b.abort(eng, state, results, started, day, err)
			}
		}
		seenUpto = endOfDay

		state.Snapshot(day)
	}

	if len(days) > 0 {
		last := days[len(days)-1]
		closed, err := eng.CloseAll(state, marks, types.ReasonSessionEnd, last)
		if err != nil && engerrors.IsFatal(err) {
			return b.abort(eng, state, results, started, last, err)
		}
		if len(closed) > 0 && len(state.Equity) > 0 {
			state.Equity = state.Equity[:len(state.Equity)-1]
			state.Snapshot(last)
		}
	}

	res := b.finish(eng, state, results, started)
	log.Info().
		Float64("final_capital", res.Summary.FinalCapital).
		Float64("total_return", res.Summary.TotalReturn).
		Int("trades", len(res.Summary.Trades)).
		Int("violations", len(res.Summary.Violations)).
		Dur("elapsed", res.Duration).
		Msg("backtest finished")
	return res, nil
}

func (b *BacktestEngine) finish(eng *engine.Engine, state *portfolio.State, results *BacktestResults, started time.Time) *BacktestResults {
	results.Summary = eng.Summarize(state)
	results.Summary.RunID = results.RunID
	results.Days = len(state.Equity)
	results.Duration = time.Since(started)
	return results
}

func (b *BacktestEngine) abort(eng *engine.Engine, state *portfolio.State, results *BacktestResults, started, day time.Time, err error) (*BacktestResults, error) {
	b.log.Error().Err(err).Str("run_id", results.RunID).Time("day", day).Msg("backtest aborted")
	return b.finish(eng, state, results, started), fmt.Errorf("backtest %s aborted on %s: %w", results.RunID, day.Format("2006-01-02"), err)
}

func window(days []time.Time, start, end time.Time) []time.Time {
	var out []time.Time
	for _, d := range days {
		if !start.IsZero() && d.Before(types.DayKey(start)) {
			continue
		}
		if !end.IsZero() && d.After(types.DayKey(end)) {
			continue
		}
		out = append(out, d)
	}
	return out
}
