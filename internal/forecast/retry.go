package forecast

import (
	"context"
	"math"
	"math/rand"
	"time"

	engerrors "github.com/ducminhle1904/quantile-risk-engine/internal/errors"
)

// RetryConfig holds configuration for retrying a flaky price source
type RetryConfig struct {
	MaxRetries    int           `mapstructure:"max_retries" json:"max_retries"`
	InitialDelay  time.Duration `mapstructure:"initial_delay" json:"initial_delay"`
	MaxDelay      time.Duration `mapstructure:"max_delay" json:"max_delay"`
	BackoffFactor float64       `mapstructure:"backoff_factor" json:"backoff_factor"`
	JitterEnabled bool          `mapstructure:"jitter_enabled" json:"jitter_enabled"`
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
}

// RetryingPriceSource retries transient failures of another source with
// exponential backoff. A missing price is not an error and is not retried.
type RetryingPriceSource struct {
	source PriceSource
	config RetryConfig
}

// NewRetryingPriceSource wraps source
func NewRetryingPriceSource(source PriceSource, config RetryConfig) *RetryingPriceSource {
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	return &RetryingPriceSource{source: source, config: config}
}

// CurrentPrice implements PriceSource
func (r *RetryingPriceSource) CurrentPrice(ctx context.Context, symbol string) (float64, bool, error) {
	var lastErr error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return 0, false, ctx.Err()
		default:
		}

		price, ok, err := r.source.CurrentPrice(ctx, symbol)
		if err == nil {
			return price, ok, nil
		}
		lastErr = err

		if attempt == r.config.MaxRetries || !retryable(err) {
			break
		}

		select {
		case <-ctx.Done():
			return 0, false, ctx.Err()
		case <-time.After(r.delay(attempt)):
		}
	}
	return 0, false, engerrors.Wrap(lastErr, engerrors.ErrSourceUnavailable, "price_source", "current_price").
		WithContext("symbol", symbol)
}

// retryable treats plain errors as transient; categorised errors decide for
// themselves
func retryable(err error) bool {
	if ee, ok := engerrors.As(err); ok {
		return ee.IsRetryable()
	}
	return true
}

func (r *RetryingPriceSource) delay(attempt int) time.Duration {
	delay := time.Duration(float64(r.config.InitialDelay) * math.Pow(r.config.BackoffFactor, float64(attempt)))
	if r.config.MaxDelay > 0 && delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}
	if r.config.JitterEnabled {
		delay += time.Duration(float64(delay) * 0.1 * (2*rand.Float64() - 1))
	}
	return delay
}
