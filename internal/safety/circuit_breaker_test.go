package safety

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engerrors "github.com/ducminhle1904/quantile-risk-engine/internal/errors"
)

func TestCircuitBreaker(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	cb := NewCircuitBreaker("quotes", CircuitBreakerConfig{FailureThreshold: 3, SuccessThreshold: 2, Timeout: 10 * time.Second})
	cb.SetClock(func() time.Time { return now })

	var transitions []string
	cb.SetStateChangeCallback(func(name string, from, to CircuitBreakerState) {
		transitions = append(transitions, name+":"+from.String()+"->"+to.String())
	})

	boom := errors.New("boom")
	fail := func() error { return boom }
	ok := func() error { return nil }

	assert.ErrorIs(t, cb.Call(fail), boom)
	assert.NoError(t, cb.Call(ok), "success resets the failure streak")
	for range 3 {
		assert.ErrorIs(t, cb.Call(fail), boom)
	}
	require.Equal(t, StateOpen, cb.State())

	calls := 0
	err := cb.Call(func() error { calls++; return nil })
	assert.ErrorIs(t, err, engerrors.ErrSourceUnavailable)
	assert.Zero(t, calls)

	now = now.Add(10 * time.Second)
	require.NoError(t, cb.Call(ok))
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Call(ok))
	assert.Equal(t, StateClosed, cb.State())

	assert.Equal(t, []string{
		"quotes:CLOSED->OPEN",
		"quotes:OPEN->HALF_OPEN",
		"quotes:HALF_OPEN->CLOSED",
	}, transitions)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	cb := NewCircuitBreaker("quotes", CircuitBreakerConfig{FailureThreshold: 1, Timeout: time.Second})
	cb.SetClock(func() time.Time { return now })

	boom := errors.New("boom")
	_ = cb.Call(func() error { return boom })
	require.Equal(t, StateOpen, cb.State())

	now = now.Add(time.Second)
	_ = cb.Call(func() error { return boom })
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, now.Add(time.Second), cb.Stats().NextAttempt)

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.Zero(t, cb.Stats().Failures)
}

func TestDefaultCircuitBreakerConfig(t *testing.T) {
	cb := NewCircuitBreaker("x", CircuitBreakerConfig{})
	assert.Equal(t, DefaultCircuitBreakerConfig(), cb.config)
}
