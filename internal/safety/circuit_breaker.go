package safety

import (
	"sync"
	"time"

	engerrors "github.com/ducminhle1904/quantile-risk-engine/internal/errors"
)

// CircuitBreakerState represents the state of a circuit breaker
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	StateHalfOpen
)

// String returns the string representation of the circuit breaker state
func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreakerConfig holds configuration for a circuit breaker
type CircuitBreakerConfig struct {
	FailureThreshold uint32        `mapstructure:"failure_threshold" json:"failure_threshold"` // consecutive failures before opening
	SuccessThreshold uint32        `mapstructure:"success_threshold" json:"success_threshold"` // successes to close from half-open
	Timeout          time.Duration `mapstructure:"timeout" json:"timeout"`                     // open period before a trial call
}

// DefaultCircuitBreakerConfig opens after five straight failures and probes
// again after thirty seconds
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{FailureThreshold: 5, SuccessThreshold: 1, Timeout: 30 * time.Second}
}

// CircuitBreakerStats is a snapshot of a breaker
type CircuitBreakerStats struct {
	Name        string              `json:"name"`
	State       CircuitBreakerState `json:"state"`
	Failures    uint32              `json:"failures"`
	LastFailure time.Time           `json:"last_failure"`
	NextAttempt time.Time           `json:"next_attempt"`
}

// CircuitBreaker stops calling a failing dependency until a timeout passes.
// While open, calls fail fast with ErrSourceUnavailable.
type CircuitBreaker struct {
	name   string
	config CircuitBreakerConfig
	now    func() time.Time

	mu            sync.Mutex
	state         CircuitBreakerState
	failures      uint32
	successes     uint32
	lastFailure   time.Time
	nextAttempt   time.Time
	onStateChange func(name string, from, to CircuitBreakerState)
}

// NewCircuitBreaker creates a closed circuit breaker. Zero config fields
// take their defaults.
func NewCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCircuitBreakerConfig()
	if config.FailureThreshold == 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = def.SuccessThreshold
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	return &CircuitBreaker{name: name, config: config, now: time.Now}
}

// SetClock replaces the time source
func (cb *CircuitBreaker) SetClock(now func() time.Time) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.now = now
}

// SetStateChangeCallback registers fn for state transitions. fn runs on the
// calling goroutine after the breaker lock is released.
func (cb *CircuitBreaker) SetStateChangeCallback(fn func(name string, from, to CircuitBreakerState)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

// Call runs fn unless the circuit is open
func (cb *CircuitBreaker) Call(fn func() error) error {
	from, to, ok := cb.admit()
	if !ok {
		return engerrors.Newf(engerrors.ErrSourceUnavailable, "circuit_breaker", "call",
			"circuit %s is open", cb.name).WithContext("next_attempt", cb.Stats().NextAttempt)
	}
	cb.notify(from, to)

	err := fn()
	cb.notify(cb.record(err))
	return err
}

func (cb *CircuitBreaker) admit() (from, to CircuitBreakerState, ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	from = cb.state
	if cb.state == StateOpen {
		if cb.now().Before(cb.nextAttempt) {
			return from, from, false
		}
		cb.state = StateHalfOpen
		cb.successes = 0
	}
	return from, cb.state, true
}

func (cb *CircuitBreaker) record(err error) (from, to CircuitBreakerState) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	from = cb.state

	if err == nil {
		cb.failures = 0
		if cb.state == StateHalfOpen {
			cb.successes++
			if cb.successes >= cb.config.SuccessThreshold {
				cb.state = StateClosed
			}
		}
		return from, cb.state
	}

	cb.failures++
	cb.lastFailure = cb.now()
	if cb.state == StateHalfOpen || cb.failures >= cb.config.FailureThreshold {
		cb.state = StateOpen
		cb.nextAttempt = cb.lastFailure.Add(cb.config.Timeout)
		cb.successes = 0
	}
	return from, cb.state
}

func (cb *CircuitBreaker) notify(from, to CircuitBreakerState) {
	if from == to {
		return
	}
	cb.mu.Lock()
	fn := cb.onStateChange
	cb.mu.Unlock()
	if fn != nil {
		fn(cb.name, from, to)
	}
}

// State returns the current state
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns a snapshot of the breaker
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return CircuitBreakerStats{
		Name:        cb.name,
		State:       cb.state,
		Failures:    cb.failures,
		LastFailure: cb.lastFailure,
		NextAttempt: cb.nextAttempt,
	}
}

// Reset closes the circuit and clears counters
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	cb.state = StateClosed
	cb.failures = 0
	cb.successes = 0
	cb.mu.Unlock()
	cb.notify(from, StateClosed)
}
