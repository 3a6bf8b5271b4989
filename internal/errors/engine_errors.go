package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorKind is the top-level classification of an engine error
type ErrorKind string

const (
	// Fatal: the owning session or run must abort
	KindInvariantBreach ErrorKind = "INVARIANT_BREACH"

	// Recoverable: the single offending operation is rejected
	KindValidation ErrorKind = "VALIDATION"
	KindConstraint ErrorKind = "CONSTRAINT"
	KindExecution  ErrorKind = "EXECUTION"

	// Transient: an external collaborator failed and may succeed on retry
	KindSource ErrorKind = "SOURCE"
)

// ErrorCode identifies a specific failure within a kind
type ErrorCode string

const (
	CodeInvalidForecast     ErrorCode = "INVALID_FORECAST"
	CodeInvalidOrder        ErrorCode = "INVALID_ORDER"
	CodeInvalidConfig       ErrorCode = "INVALID_CONFIG"
	CodeSessionStopped      ErrorCode = "SESSION_STOPPED"
	CodeSessionNotFound     ErrorCode = "SESSION_NOT_FOUND"
	CodeConstraintViolated  ErrorCode = "CONSTRAINT_VIOLATED"
	CodeInsufficientCash    ErrorCode = "INSUFFICIENT_CASH"
	CodeConflictingPosition ErrorCode = "CONFLICTING_POSITION"
	CodePriceUnavailable    ErrorCode = "PRICE_UNAVAILABLE"
	CodeInvariantBreach     ErrorCode = "INVARIANT_BREACH"
	CodeSourceUnavailable   ErrorCode = "SOURCE_UNAVAILABLE"
)

// Sentinels for errors.Is matching. Only Kind and Code are compared.
var (
	ErrInvalidForecast     = &EngineError{Kind: KindValidation, Code: CodeInvalidForecast}
	ErrInvalidOrder        = &EngineError{Kind: KindValidation, Code: CodeInvalidOrder}
	ErrInvalidConfig       = &EngineError{Kind: KindValidation, Code: CodeInvalidConfig}
	ErrSessionStopped      = &EngineError{Kind: KindValidation, Code: CodeSessionStopped}
	ErrSessionNotFound     = &EngineError{Kind: KindValidation, Code: CodeSessionNotFound}
	ErrConstraintViolated  = &EngineError{Kind: KindConstraint, Code: CodeConstraintViolated}
	ErrInsufficientCash    = &EngineError{Kind: KindExecution, Code: CodeInsufficientCash}
	ErrConflictingPosition = &EngineError{Kind: KindExecution, Code: CodeConflictingPosition}
	ErrPriceUnavailable    = &EngineError{Kind: KindExecution, Code: CodePriceUnavailable}
	ErrInvariantBreach     = &EngineError{Kind: KindInvariantBreach, Code: CodeInvariantBreach}
	ErrSourceUnavailable   = &EngineError{Kind: KindSource, Code: CodeSourceUnavailable}
)

// EngineError represents a categorized error with context
type EngineError struct {
	Kind       ErrorKind
	Code       ErrorCode
	Component  string
	Operation  string
	Message    string
	Underlying error
	Context    map[string]interface{}
	Retryable  bool
}

// Error implements the error interface
func (e *EngineError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Component == "" && e.Operation == "" {
		if e.Underlying != nil {
			return fmt.Sprintf("[%s] %s: %v", e.Kind, msg, e.Underlying)
		}
		return fmt.Sprintf("[%s] %s", e.Kind, msg)
	}
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Kind, e.Component, e.Operation, msg, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Kind, e.Component, e.Operation, msg)
}

// Unwrap returns the underlying error for error unwrapping
func (e *EngineError) Unwrap() error {
	return e.Underlying
}

// Is matches another EngineError by kind and code
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	if t.Code != "" && t.Code != e.Code {
		return false
	}
	return t.Kind == "" || t.Kind == e.Kind
}

// IsRetryable returns whether this error can be retried
func (e *EngineError) IsRetryable() bool {
	return e.Retryable
}

// IsFatal returns whether this error should abort the session
func (e *EngineError) IsFatal() bool {
	return e.Kind == KindInvariantBreach
}

// WithContext adds context information to the error
func (e *EngineError) WithContext(key string, value interface{}) *EngineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new categorized engine error from a sentinel
func New(sentinel *EngineError, component, operation, message string) *EngineError {
	return &EngineError{
		Kind:      sentinel.Kind,
		Code:      sentinel.Code,
		Component: component,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
		Retryable: sentinel.Kind == KindSource,
	}
}

// Newf is New with a formatted message
func Newf(sentinel *EngineError, component, operation, format string, args ...interface{}) *EngineError {
	return New(sentinel, component, operation, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with engine error context
func Wrap(err error, sentinel *EngineError, component, operation string) *EngineError {
	if err == nil {
		return nil
	}
	e := New(sentinel, component, operation, "operation failed")
	e.Underlying = err
	return e
}

// NewForecastError reports a malformed forecast
func NewForecastError(component, message string) *EngineError {
	return New(ErrInvalidForecast, component, "validate_forecast", message)
}

// NewInvariantError reports a broken portfolio invariant
func NewInvariantError(component, operation, message string) *EngineError {
	return New(ErrInvariantBreach, component, operation, message)
}

// As extracts an *EngineError from err's chain
func As(err error) (*EngineError, bool) {
	var e *EngineError
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is forwards to the standard library so callers need a single import
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// KindOf returns the kind of err, or "" when it is not an engine error
func KindOf(err error) ErrorKind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

// IsFatal reports whether err must abort the owning session or run
func IsFatal(err error) bool {
	if e, ok := As(err); ok {
		return e.IsFatal()
	}
	return false
}

// RecoveryAction is the suggested reaction to an error
type RecoveryAction string

const (
	RecoveryActionRetry RecoveryAction = "RETRY"
	RecoveryActionSkip  RecoveryAction = "SKIP"
	RecoveryActionStop  RecoveryAction = "STOP"
)

// GetRecoveryAction suggests a recovery action based on error kind
func (e *EngineError) GetRecoveryAction() RecoveryAction {
	switch e.Kind {
	case KindInvariantBreach:
		return RecoveryActionStop
	case KindSource:
		return RecoveryActionRetry
	default:
		return RecoveryActionSkip
	}
}

// ErrorStats tracks error statistics
type ErrorStats struct {
	TotalErrors     int
	ErrorsByKind    map[ErrorKind]int
	ErrorsByCode    map[ErrorCode]int
	RecentErrors    []*EngineError
	MaxRecentErrors int
}

// NewErrorStats creates a new error statistics tracker
func NewErrorStats(maxRecentErrors int) *ErrorStats {
	return &ErrorStats{
		ErrorsByKind:    make(map[ErrorKind]int),
		ErrorsByCode:    make(map[ErrorCode]int),
		RecentErrors:    make([]*EngineError, 0, maxRecentErrors),
		MaxRecentErrors: maxRecentErrors,
	}
}

// RecordError records an error in the statistics. Non-engine errors are ignored.
func (es *ErrorStats) RecordError(err error) {
	e, ok := As(err)
	if !ok {
		return
	}
	es.TotalErrors++
	es.ErrorsByKind[e.Kind]++
	es.ErrorsByCode[e.Code]++

	es.RecentErrors = append(es.RecentErrors, e)
	if len(es.RecentErrors) > es.MaxRecentErrors {
		es.RecentErrors = es.RecentErrors[1:]
	}
}

// GetErrorRate returns the share of recorded errors with the given kind
func (es *ErrorStats) GetErrorRate(kind ErrorKind) float64 {
	if es.TotalErrors == 0 {
		return 0.0
	}
	return float64(es.ErrorsByKind[kind]) / float64(es.TotalErrors)
}
