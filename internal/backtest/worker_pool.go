package backtest

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ducminhle1904/quantile-risk-engine/internal/engine"
	engerrors "github.com/ducminhle1904/quantile-risk-engine/internal/errors"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/config"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/data"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/validation"
)

// BacktestJob represents a single backtest task
type BacktestJob struct {
	ID     string
	Label  string
	Config config.EngineConfig
	Input  Input
}

// BacktestResult represents the result of a backtest job
type BacktestResult struct {
	ID       string
	Label    string
	Results  *BacktestResults
	Config   config.EngineConfig
	Duration time.Duration
	Error    error
}

// WorkerPool runs independent backtests in parallel. Each job owns its
// portfolio; nothing is shared between runs except read-only input.
type WorkerPool struct {
	workerCount int
	log         zerolog.Logger
	opts        []engine.Option

	progressMu sync.Mutex
	progress   func(done, total int)
}

// NewWorkerPool creates a pool; workerCount <= 0 uses one worker per CPU
func NewWorkerPool(workerCount int, log zerolog.Logger, opts ...engine.Option) *WorkerPool {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	return &WorkerPool{workerCount: workerCount, log: log, opts: opts}
}

// OnProgress registers a callback invoked after every finished job. Calls are
// serialized and done increases by one per call.
func (wp *WorkerPool) OnProgress(fn func(done, total int)) {
	wp.progress = fn
}

// Run executes jobs and returns their results in job order. A failing job
// records its error in its result; an invariant breach cancels the remaining
// jobs and is returned.
func (wp *WorkerPool) Run(ctx context.Context, jobs []BacktestJob) ([]BacktestResult, error) {
	results := make([]BacktestResult, len(jobs))
	tracker := NewProgressTracker(len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(wp.workerCount)

	for i, job := range jobs {
		g.Go(func() error {
			res := wp.processJob(gctx, job)
			results[i] = res

			wp.progressMu.Lock()
			tracker.Increment()
			if wp.progress != nil {
				done, total, _, _ := tracker.GetProgress()
				wp.progress(done, total)
			}
			wp.progressMu.Unlock()
			if res.Error != nil && engerrors.IsFatal(res.Error) {
				return res.Error
			}
			return nil
		})
	}

	err := g.Wait()
	return results, err
}

// processJob processes a single backtest job
func (wp *WorkerPool) processJob(ctx context.Context, job BacktestJob) BacktestResult {
	startTime := time.Now()
	result := BacktestResult{ID: job.ID, Label: job.Label, Config: job.Config}

	runner := NewBacktestEngine(job.Config, wp.log, wp.opts...)
	if job.Label != "" {
		runner.SetLabel(job.Label)
	}
	result.Results, result.Error = runner.Run(ctx, job.Input)
	result.Duration = time.Since(startTime)
	return result
}

// CompareProfiles runs the same input once per risk profile. Overrides in
// base are applied on top of every preset.
func CompareProfiles(ctx context.Context, pool *WorkerPool, base config.EngineConfig, profiles []string, in Input) ([]BacktestResult, error) {
	jobs := make([]BacktestJob, 0, len(profiles))
	for _, name := range profiles {
		cfg := base
		cfg.RiskProfile = name
		if err := cfg.Resolve(); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("profile %s: %w", name, err)
		}
		jobs = append(jobs, BacktestJob{ID: "profile_" + name, Label: name, Config: cfg, Input: in})
	}
	return pool.Run(ctx, jobs)
}

// WalkForward runs every fold's in-sample and out-of-sample windows as
// independent backtests and summarizes the degradation between them
func WalkForward(ctx context.Context, pool *WorkerPool, cfg config.EngineConfig, in Input, wf validation.WalkForwardConfig) (*validation.WalkForwardSummary, []BacktestResult, error) {
	days := window(data.BuildPanel(in.Bars).Days, in.Start, in.End)
	folds := validation.Folds(days, wf)
	if len(folds) == 0 {
		return nil, nil, fmt.Errorf("not enough trading days (%d) for walk-forward validation", len(days))
	}

	jobs := make([]BacktestJob, 0, 2*len(folds))
	for _, fold := range folds {
		train, test := in, in
		train.Start, train.End = fold.TrainStart, fold.TrainEnd
		test.Start, test.End = fold.TestStart, fold.TestEnd
		jobs = append(jobs,
			BacktestJob{ID: fmt.Sprintf("fold%d_train", fold.Index), Label: fmt.Sprintf("fold%d_train", fold.Index), Config: cfg, Input: train},
			BacktestJob{ID: fmt.Sprintf("fold%d_test", fold.Index), Label: fmt.Sprintf("fold%d_test", fold.Index), Config: cfg, Input: test},
		)
	}

	results, err := pool.Run(ctx, jobs)
	if err != nil {
		return nil, results, err
	}

	foldResults := make([]validation.FoldResult, 0, len(folds))
	for i, fold := range folds {
		train, test := results[2*i], results[2*i+1]
		if train.Error != nil {
			return nil, results, train.Error
		}
		if test.Error != nil {
			return nil, results, test.Error
		}
		foldResults = append(foldResults, validation.FoldResult{
			Fold:          fold.Index,
			TrainReturn:   train.Results.Summary.TotalReturn,
			TestReturn:    test.Results.Summary.TotalReturn,
			TrainDrawdown: train.Results.Summary.Metrics.MaxDrawdown,
			TestDrawdown:  test.Results.Summary.Metrics.MaxDrawdown,
			TrainSharpe:   train.Results.Summary.Metrics.SharpeRatio,
			TestSharpe:    test.Results.Summary.Metrics.SharpeRatio,
			TrainTrades:   len(train.Results.Summary.Trades),
			TestTrades:    len(test.Results.Summary.Trades),
		})
	}
	return validation.Summarize(foldResults), results, nil
}

// ProgressTracker tracks the progress of batch processing
type ProgressTracker struct {
	total     int
	completed int
	startTime time.Time
	mutex     sync.RWMutex
}

// NewProgressTracker creates a new progress tracker
func NewProgressTracker(total int) *ProgressTracker {
	return &ProgressTracker{
		total:     total,
		startTime: time.Now(),
	}
}

// Increment increments the completion count
func (pt *ProgressTracker) Increment() {
	pt.mutex.Lock()
	defer pt.mutex.Unlock()
	pt.completed++
}

// GetProgress returns the current progress
func (pt *ProgressTracker) GetProgress() (int, int, float64, time.Duration) {
	pt.mutex.RLock()
	defer pt.mutex.RUnlock()

	elapsed := time.Since(pt.startTime)
	progress := 0.0
	if pt.total > 0 {
		progress = float64(pt.completed) / float64(pt.total) * 100
	}
	return pt.completed, pt.total, progress, elapsed
}

// EstimateTimeRemaining estimates the remaining time based on current progress
func (pt *ProgressTracker) EstimateTimeRemaining() time.Duration {
	pt.mutex.RLock()
	defer pt.mutex.RUnlock()

	if pt.completed == 0 {
		return 0
	}
	elapsed := time.Since(pt.startTime)
	avgTimePerItem := elapsed / time.Duration(pt.completed)
	return avgTimePerItem * time.Duration(pt.total-pt.completed)
}
