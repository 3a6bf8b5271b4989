package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEngineError_IsMatchesSentinel checks errors.Is works through wrapping
func TestEngineError_IsMatchesSentinel(t *testing.T) {
	err := Newf(ErrInsufficientCash, "executor", "execute", "need %.2f", 10.0)
	wrapped := fmt.Errorf("order rejected: %w", err)

	assert.True(t, stderrors.Is(wrapped, ErrInsufficientCash))
	assert.False(t, stderrors.Is(wrapped, ErrConflictingPosition))
	assert.Equal(t, KindExecution, KindOf(wrapped))
}

// TestEngineError_OnlyInvariantIsFatal checks fatality by kind
func TestEngineError_OnlyInvariantIsFatal(t *testing.T) {
	tests := []struct {
		sentinel *EngineError
		fatal    bool
	}{
		{ErrInvalidForecast, false},
		{ErrConstraintViolated, false},
		{ErrInsufficientCash, false},
		{ErrPriceUnavailable, false},
		{ErrSourceUnavailable, false},
		{ErrInvariantBreach, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.sentinel.Code), func(t *testing.T) {
			err := New(tt.sentinel, "c", "op", "msg")
			assert.Equal(t, tt.fatal, IsFatal(err))
		})
	}
}

// TestWrap_KeepsUnderlying checks the cause is reachable
func TestWrap_KeepsUnderlying(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(cause, ErrSourceUnavailable, "prices", "fetch")

	require.NotNil(t, err)
	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, err.IsRetryable())
	assert.Equal(t, RecoveryActionRetry, err.GetRecoveryAction())
	assert.Contains(t, err.Error(), "connection refused")
	assert.Nil(t, Wrap(nil, ErrSourceUnavailable, "prices", "fetch"))
}

// TestErrorStats_RecordError checks counters and the recent window
func TestErrorStats_RecordError(t *testing.T) {
	stats := NewErrorStats(2)
	stats.RecordError(New(ErrInsufficientCash, "a", "b", "c"))
	stats.RecordError(New(ErrConstraintViolated, "a", "b", "c"))
	stats.RecordError(New(ErrConstraintViolated, "a", "b", "c"))
	stats.RecordError(stderrors.New("plain"))

	assert.Equal(t, 3, stats.TotalErrors)
	assert.Equal(t, 2, stats.ErrorsByCode[CodeConstraintViolated])
	assert.Len(t, stats.RecentErrors, 2)
	assert.InDelta(t, 2.0/3.0, stats.GetErrorRate(KindConstraint), 1e-9)
}
