package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ducminhle1904/quantile-risk-engine/internal/engine"
	"github.com/ducminhle1904/quantile-risk-engine/internal/performance"
	"github.com/ducminhle1904/quantile-risk-engine/internal/portfolio"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/types"
)

// Run kinds
const (
	KindBacktest = "backtest"
	KindSession  = "session"
)

// ErrRunNotFound is returned when a run id is unknown
var ErrRunNotFound = errors.New("run not found")

// RunRecord is a summary to persist together with its run metadata
type RunRecord struct {
	ID        string
	Kind      string
	Label     string
	StartedAt time.Time
	Summary   engine.Summary
}

// GormStore persists run summaries, ledgers and violation logs in SQLite
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens (creating when needed) the database at path
func NewGormStore(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: database path is empty")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("gorm store: create dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&RunModel{}, &TradeModel{}, &ViolationModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return &GormStore{db: db}, nil
}

// Close closes the underlying database connection
func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveRun writes a run with its trades and violations in one transaction.
// Saving the same run id again replaces the previous rows.
func (s *GormStore) SaveRun(ctx context.Context, rec RunRecord) error {
	if rec.ID == "" {
		rec.ID = rec.Summary.RunID
	}
	if rec.ID == "" {
		return fmt.Errorf("gorm store: run id is empty")
	}
	metrics, err := json.Marshal(rec.Summary.Metrics)
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}

	run := RunModel{
		ID:             rec.ID,
		Kind:           rec.Kind,
		Label:          rec.Label,
		Profile:        rec.Summary.Profile,
		InitialCapital: rec.Summary.InitialCapital,
		FinalCapital:   rec.Summary.FinalCapital,
		TotalReturn:    rec.Summary.TotalReturn,
		MaxDrawdown:    rec.Summary.Metrics.MaxDrawdown,
		SharpeRatio:    rec.Summary.Metrics.SharpeRatio,
		TradeCount:     len(rec.Summary.Trades),
		ViolationCount: len(rec.Summary.Violations),
		MetricsJSON:    string(metrics),
		StartedAt:      rec.StartedAt,
		FinishedAt:     time.Now().UTC(),
	}

	trades := make([]TradeModel, 0, len(rec.Summary.Trades))
	for i, t := range rec.Summary.Trades {
		trades = append(trades, TradeModel{
			ID:           t.ID,
			RunID:        rec.ID,
			Seq:          i,
			Symbol:       t.Symbol,
			Side:         string(t.Side),
			PositionSide: string(t.PositionSide),
			Quantity:     t.Quantity,
			EntryPrice:   t.EntryPrice,
			ExitPrice:    t.ExitPrice,
			RealizedPnL:  t.RealizedPnL,
			Commission:   t.Commission,
			Slippage:     t.Slippage,
			Reason:       string(t.Reason),
			Timestamp:    t.Timestamp,
		})
	}
	violations := make([]ViolationModel, 0, len(rec.Summary.Violations))
	for _, v := range rec.Summary.Violations {
		vm := ViolationModel{RunID: rec.ID, Rule: string(v.Rule), Detail: v.Detail, Timestamp: v.Timestamp}
		if v.Order != nil {
			vm.Symbol = v.Order.Symbol
		}
		violations = append(violations, vm)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&TradeModel{}, &ViolationModel{}} {
			if err := tx.Where("run_id = ?", rec.ID).Delete(model).Error; err != nil {
				return err
			}
		}
		if err := tx.Save(&run).Error; err != nil {
			return err
		}
		if len(trades) > 0 {
			if err := tx.CreateInBatches(trades, 200).Error; err != nil {
				return err
			}
		}
		if len(violations) > 0 {
			if err := tx.CreateInBatches(violations, 200).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ListRuns returns the most recent runs first; kind filters when set
func (s *GormStore) ListRuns(ctx context.Context, kind string, limit int) ([]RunModel, error) {
	q := s.db.WithContext(ctx).Order("finished_at DESC")
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var runs []RunModel
	if err := q.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// LoadSummary rebuilds the stored summary of a run. The equity curve is not
// persisted and comes back empty.
func (s *GormStore) LoadSummary(ctx context.Context, id string) (engine.Summary, error) {
	var run RunModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return engine.Summary{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return engine.Summary{}, err
	}

	summary := engine.Summary{
		RunID:          run.ID,
		Profile:        run.Profile,
		InitialCapital: run.InitialCapital,
		FinalCapital:   run.FinalCapital,
		TotalReturn:    run.TotalReturn,
	}
	var metrics performance.Metrics
	if err := json.Unmarshal([]byte(run.MetricsJSON), &metrics); err != nil {
		return engine.Summary{}, fmt.Errorf("decode metrics: %w", err)
	}
	summary.Metrics = metrics

	var trades []TradeModel
	if err := s.db.WithContext(ctx).Where("run_id = ?", id).Order("seq").Find(&trades).Error; err != nil {
		return engine.Summary{}, err
	}
	for _, t := range trades {
		summary.Trades = append(summary.Trades, portfolio.Trade{
			ID:           t.ID,
			Symbol:       t.Symbol,
			Side:         types.OrderSide(t.Side),
			PositionSide: types.Side(t.PositionSide),
			Quantity:     t.Quantity,
			EntryPrice:   t.EntryPrice,
			ExitPrice:    t.ExitPrice,
			RealizedPnL:  t.RealizedPnL,
			Commission:   t.Commission,
			Slippage:     t.Slippage,
			Timestamp:    t.Timestamp,
			Reason:       types.Reason(t.Reason),
		})
	}

	var violations []ViolationModel
	if err := s.db.WithContext(ctx).Where("run_id = ?", id).Order("id").Find(&violations).Error; err != nil {
		return engine.Summary{}, err
	}
	for _, v := range violations {
		summary.Violations = append(summary.Violations, types.Violation{
			Timestamp: v.Timestamp,
			Rule:      types.Rule(v.Rule),
			Detail:    v.Detail,
		})
	}
	return summary, nil
}

// ViolationCounts aggregates violations per rule across all runs
func (s *GormStore) ViolationCounts(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Rule  string
		Count int64
	}
	err := s.db.WithContext(ctx).Model(&ViolationModel{}).
		Select("rule, count(*) as count").
		Group("rule").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Rule] = r.Count
	}
	return out, nil
}
