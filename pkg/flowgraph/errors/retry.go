package errors

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	MaxAttempts int
	// InitialBackoff is the starting backoff duration.
	InitialBackoff time.Duration
	// MaxBackoff caps the backoff, including server Retry-After hints.
	MaxBackoff time.Duration
	// BackoffFactor is the multiplier applied to backoff after each attempt.
	BackoffFactor float64
	// Jitter is the random jitter factor (0.0-1.0).
	Jitter float64
	// RetryableFunc optionally overrides IsRetryable.
	RetryableFunc func(error) bool
	// OnRetry is called before sleeping between attempts.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultRetry is the standard retry configuration for upstream APIs.
var DefaultRetry = RetryConfig{
	MaxAttempts:    3,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     10 * time.Second,
	BackoffFactor:  2.0,
	Jitter:         0.1,
}

// NoRetry disables retries.
var NoRetry = RetryConfig{
	MaxAttempts: 1,
}

// Do calls fn until it succeeds, fails permanently, the attempts run out
// or ctx ends. Failures are returned as *CategorizedError wrapping the last
// error, with the number of attempts made.
func Do[T any](ctx context.Context, cfg RetryConfig, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	maxAttempts := max(cfg.MaxAttempts, 1)
	backoff := cfg.InitialBackoff

	isRetryable := cfg.RetryableFunc
	if isRetryable == nil {
		isRetryable = IsRetryable
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, &CategorizedError{Err: err, Category: CategoryPermanent, Attempts: attempt - 1, Context: "context cancelled"}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return zero, &CategorizedError{Err: err, Category: CategoryPermanent, Attempts: attempt}
		}
		if attempt == maxAttempts {
			break
		}

		wait := nextWait(err, backoff, cfg)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, wait)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, &CategorizedError{Err: ctx.Err(), Category: CategoryPermanent, Attempts: attempt, Context: "context cancelled during backoff"}
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * cfg.BackoffFactor)
		if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	return zero, &CategorizedError{
		Err:      lastErr,
		Category: CategoryTransient,
		Attempts: maxAttempts,
		Context:  "max retries exceeded",
	}
}

// nextWait prefers the server's Retry-After over the computed backoff.
func nextWait(err error, backoff time.Duration, cfg RetryConfig) time.Duration {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		if cfg.MaxBackoff > 0 && httpErr.RetryAfter > cfg.MaxBackoff {
			return cfg.MaxBackoff
		}
		return httpErr.RetryAfter
	}
	return calculateBackoff(backoff, cfg.Jitter)
}

// calculateBackoff returns base +/- base*jitter.
func calculateBackoff(base time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return base
	}
	jitterAmount := float64(base) * jitter * (rand.Float64()*2 - 1)
	return time.Duration(float64(base) + jitterAmount)
}

// RetryOption configures retry behavior.
type RetryOption func(*RetryConfig)

// WithMaxAttempts sets the maximum number of attempts.
func WithMaxAttempts(n int) RetryOption {
	return func(cfg *RetryConfig) { cfg.MaxAttempts = n }
}

// WithInitialBackoff sets the initial backoff duration.
func WithInitialBackoff(d time.Duration) RetryOption {
	return func(cfg *RetryConfig) { cfg.InitialBackoff = d }
}

// WithMaxBackoff sets the maximum backoff duration.
func WithMaxBackoff(d time.Duration) RetryOption {
	return func(cfg *RetryConfig) { cfg.MaxBackoff = d }
}

// WithJitter sets the jitter factor.
func WithJitter(j float64) RetryOption {
	return func(cfg *RetryConfig) { cfg.Jitter = j }
}

// WithOnRetry sets a hook called before each backoff sleep.
func WithOnRetry(fn func(attempt int, err error, wait time.Duration)) RetryOption {
	return func(cfg *RetryConfig) { cfg.OnRetry = fn }
}

// NewRetryConfig creates a retry configuration from DefaultRetry.
func NewRetryConfig(opts ...RetryOption) RetryConfig {
	cfg := DefaultRetry
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
