package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/quantile-risk-engine/internal/engine"
	"github.com/ducminhle1904/quantile-risk-engine/internal/performance"
	"github.com/ducminhle1904/quantile-risk-engine/internal/portfolio"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/types"
)

func newStore(t *testing.T) *GormStore {
	t.Helper()
	s, err := NewGormStore(filepath.Join(t.TempDir(), "db", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleSummary(id string) engine.Summary {
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	exit := 110.0
	return engine.Summary{
		RunID:          id,
		Profile:        "moderate",
		InitialCapital: 100000,
		FinalCapital:   101000,
		TotalReturn:    0.01,
		Trades: []portfolio.Trade{
			{ID: id + "-t1", Symbol: "AAPL", Side: types.OrderBuy, PositionSide: types.SideLong, Quantity: 100, EntryPrice: 100, Timestamp: at, Reason: types.ReasonEntry},
			{ID: id + "-t2", Symbol: "AAPL", Side: types.OrderSell, PositionSide: types.SideLong, Quantity: 100, EntryPrice: 100, ExitPrice: &exit, RealizedPnL: 1000, Timestamp: at.AddDate(0, 0, 1), Reason: types.ReasonTakeProfit},
		},
		Metrics: performance.Metrics{TotalReturn: 0.01, MaxDrawdown: 0.02, SharpeRatio: 1.5, ClosedTrades: 1},
		Violations: []types.Violation{
			{Timestamp: at, Rule: types.RuleMaxTradesPerDay, Detail: "limit", Order: &types.Order{Symbol: "MSFT"}},
		},
	}
}

func TestSaveAndLoadRun(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRun(ctx, RunRecord{Kind: KindBacktest, Label: "moderate", Summary: sampleSummary("run-1")}))

	got, err := s.LoadSummary(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 101000.0, got.FinalCapital)
	assert.Equal(t, "moderate", got.Profile)
	require.Len(t, got.Trades, 2)
	assert.Equal(t, types.ReasonTakeProfit, got.Trades[1].Reason)
	require.NotNil(t, got.Trades[1].ExitPrice)
	assert.Equal(t, 110.0, *got.Trades[1].ExitPrice)
	assert.Nil(t, got.Trades[0].ExitPrice)
	assert.Equal(t, 1.5, got.Metrics.SharpeRatio)
	require.Len(t, got.Violations, 1)
	assert.Equal(t, types.RuleMaxTradesPerDay, got.Violations[0].Rule)

	// saving again replaces rows instead of duplicating them
	require.NoError(t, s.SaveRun(ctx, RunRecord{Kind: KindBacktest, Summary: sampleSummary("run-1")}))
	got, err = s.LoadSummary(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, got.Trades, 2)
	assert.Len(t, got.Violations, 1)
}

func TestListRunsAndCounts(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveRun(ctx, RunRecord{Kind: KindBacktest, Summary: sampleSummary("bt")}))
	require.NoError(t, s.SaveRun(ctx, RunRecord{ID: "sess", Kind: KindSession, Summary: sampleSummary("sess")}))

	all, err := s.ListRuns(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	sessions, err := s.ListRuns(ctx, KindSession, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "sess", sessions[0].ID)
	assert.Equal(t, 2, sessions[0].TradeCount)

	counts, err := s.ViolationCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[string(types.RuleMaxTradesPerDay)])
}

func TestLoadSummary_NotFound(t *testing.T) {
	_, err := newStore(t).LoadSummary(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestSaveRun_RequiresID(t *testing.T) {
	assert.Error(t, newStore(t).SaveRun(context.Background(), RunRecord{}))
}

func TestNewGormStore_EmptyPath(t *testing.T) {
	_, err := NewGormStore("  ")
	assert.Error(t, err)
}
