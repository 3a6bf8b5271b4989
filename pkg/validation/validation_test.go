package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func calendar(n int) []time.Time {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	days := make([]time.Time, n)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}
	return days
}

func TestSplitByRatio(t *testing.T) {
	days := calendar(10)
	train, test := SplitByRatio(days, 0.7)
	assert.Len(t, train, 7)
	assert.Len(t, test, 3)

	train, test = SplitByRatio(days, 1.2)
	assert.Len(t, train, 10)
	assert.Nil(t, test)
}

func TestCreateRollingFolds(t *testing.T) {
	cfg := WalkForwardConfig{Rolling: true, TrainDays: 20, TestDays: 5, RollDays: 5, MinTrainDays: 20, MinTestDays: 5}
	folds := CreateRollingFolds(calendar(40), cfg)
	require.Len(t, folds, 4)
	for i, f := range folds {
		assert.Equal(t, i+1, f.Index)
		assert.Len(t, f.Train, 20)
		assert.Len(t, f.Test, 5)
		assert.True(t, f.TrainEnd.Before(f.TestStart))
	}
	assert.Equal(t, folds[0].TrainStart.AddDate(0, 0, 5), folds[1].TrainStart)

	assert.Empty(t, CreateRollingFolds(calendar(22), cfg))
}

func TestFolds_Holdout(t *testing.T) {
	folds := Folds(calendar(100), DefaultWalkForwardConfig())
	require.Len(t, folds, 1)
	assert.Len(t, folds[0].Train, 70)
	assert.Len(t, folds[0].Test, 30)
	assert.Nil(t, Folds(calendar(1), DefaultWalkForwardConfig()))
}

func TestSummarize(t *testing.T) {
	s := Summarize([]FoldResult{
		{Fold: 2, TrainReturn: 0.10, TestReturn: 0.02, TrainDrawdown: 0.05, TestDrawdown: 0.07},
		{Fold: 1, TrainReturn: 0.10, TestReturn: 0.04, TrainDrawdown: 0.03, TestDrawdown: 0.05},
	})
	assert.Equal(t, 1, s.Results[0].Fold)
	assert.InDelta(t, 0.10, s.AverageTrainReturn, 1e-12)
	assert.InDelta(t, 0.03, s.AverageTestReturn, 1e-12)
	assert.InDelta(t, 0.7, s.ReturnDegradation, 1e-9)
	assert.Equal(t, RiskHigh, s.OverfittingRisk)
	assert.False(t, s.IsRobust)
	assert.InDelta(t, 0.06, s.AverageTestDrawdown, 1e-12)

	assert.Equal(t, &WalkForwardSummary{}, Summarize(nil))
}
