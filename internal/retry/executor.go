package retry

import (
	"context"
	"time"
)

const defaultMaxAttempts = 5

// Config controls a single retry loop.
type Config struct {
	// MaxAttempts is the total attempt budget, including the first call.
	// Values below 1 fall back to the default of 5.
	MaxAttempts int

	// Backoff computes the delay between attempts.
	Backoff Backoff

	// ShouldRetry overrides the default classifier when non-nil.
	ShouldRetry func(error) bool
}

// DefaultConfig returns the standard retry profile: 5 attempts with the
// default backoff.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: defaultMaxAttempts,
		Backoff:     DefaultBackoff(),
	}
}

// Observer receives a notification before each retry. Implementations must
// not block; they run inline between attempts.
type Observer interface {
	OnRetry(err error, attempt int, nextDelay time.Duration)
}

// NopObserver is an Observer that ignores all notifications. It is the
// default when no observer is supplied.
type NopObserver struct{}

// OnRetry implements [Observer].
func (NopObserver) OnRetry(error, int, time.Duration) {}

// Result is the outcome of a retry loop: either a value or an error,
// together with the number of attempts actually made.
type Result[T any] struct {
	// Value is the operation's result when Err is nil.
	Value T

	// Err is the final error after all attempts, or nil on success.
	Err error

	// Attempts is the number of calls made, at least 1.
	Attempts int
}

// Unwrap returns the value and error, discarding the attempt count.
func (r Result[T]) Unwrap() (T, error) {
	return r.Value, r.Err
}

// Execute runs op up to cfg.MaxAttempts times, sleeping between attempts
// per cfg.Backoff. Attempts are strictly sequential.
//
// The loop stops early when the error is classified as not retryable
// (via cfg.ShouldRetry when set, otherwise [IsRetryable]) or when the
// context is cancelled during the inter-attempt delay. Execute never
// panics on op errors; the failure is carried in the Result.
//
// obs, when non-nil, is invoked before each delay with the failed attempt
// number and the computed delay.
func Execute[T any](ctx context.Context, cfg Config, op func(context.Context) (T, error), obs Observer) Result[T] {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = defaultMaxAttempts
	}
	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsRetryable
	}
	if obs == nil {
		obs = NopObserver{}
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		value, err := op(ctx)
		if err == nil {
			return Result[T]{Value: value, Attempts: attempt}
		}
		lastErr = err

		if attempt == maxAttempts || !shouldRetry(err) {
			return Result[T]{Err: err, Attempts: attempt}
		}

		delay := cfg.Backoff.Delay(attempt)
		obs.OnRetry(err, attempt, delay)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return Result[T]{Err: ctx.Err(), Attempts: attempt}
		}
	}

	// unreachable: the loop always returns from inside
	return Result[T]{Err: lastErr, Attempts: maxAttempts}
}
