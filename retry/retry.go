// Package retry provides bounded exponential backoff for reads against the
// payments API: retrying transient retrieval failures and polling an intent
// until it leaves a transitional status. Confirm calls are never retried.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotSettled is returned by Poll when attempts run out before done reported true.
var ErrNotSettled = errors.New("retry: value did not settle")

// Config holds backoff configuration.
type Config struct {
	MaxAttempts  int           // Maximum number of attempts (including initial attempt)
	InitialDelay time.Duration // Initial delay between attempts
	MaxDelay     time.Duration // Maximum delay between attempts
	Multiplier   float64       // Multiplier for exponential backoff
}

// DefaultConfig is used for retrieval retries.
var DefaultConfig = Config{
	MaxAttempts:  3,
	InitialDelay: 100 * time.Millisecond,
	MaxDelay:     5 * time.Second,
	Multiplier:   2.0,
}

// DefaultPollConfig is used to re-verify intent status after a next action.
var DefaultPollConfig = Config{
	MaxAttempts:  8,
	InitialDelay: 250 * time.Millisecond,
	MaxDelay:     3 * time.Second,
	Multiplier:   1.6,
}

// IsRetryable determines if an error should trigger a retry.
type IsRetryable func(error) bool

// WithRetry executes fn until it succeeds, returns a non-retryable error or
// runs out of attempts. It respects context cancellation between attempts.
func WithRetry[T any](
	ctx context.Context,
	config Config,
	isRetryable IsRetryable,
	fn func() (T, error),
) (T, error) {
	var zero T
	var lastErr error
	b := newBackoff(config)

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("context cancelled: %w", err)
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err
		if !isRetryable(err) {
			return zero, err
		}

		// Don't sleep after last attempt
		if attempt < config.MaxAttempts-1 {
			if err := b.wait(ctx); err != nil {
				return zero, err
			}
		}
	}

	return zero, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// WithSimpleRetry uses DefaultConfig.
func WithSimpleRetry[T any](
	ctx context.Context,
	fn func() (T, error),
	isRetryable IsRetryable,
) (T, error) {
	return WithRetry(ctx, DefaultConfig, isRetryable, fn)
}

// Poll calls fn until done reports true for its value, backing off between
// calls. Errors from fn end polling immediately. When attempts run out the
// last value is returned together with ErrNotSettled so callers can still
// inspect it.
func Poll[T any](
	ctx context.Context,
	config Config,
	done func(T) bool,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	var last T
	b := newBackoff(config)

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return last, fmt.Errorf("context cancelled: %w", err)
		}

		value, err := fn(ctx)
		if err != nil {
			return last, err
		}
		last = value
		if done(value) {
			return value, nil
		}

		if attempt < config.MaxAttempts-1 {
			if err := b.wait(ctx); err != nil {
				return last, err
			}
		}
	}

	return last, ErrNotSettled
}

type backoff struct {
	delay time.Duration
	max   time.Duration
	mult  float64
}

func newBackoff(config Config) *backoff {
	return &backoff{delay: config.InitialDelay, max: config.MaxDelay, mult: config.Multiplier}
}

func (b *backoff) wait(ctx context.Context) error {
	timer := time.NewTimer(b.delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		b.delay = time.Duration(float64(b.delay) * b.mult)
		if b.delay > b.max {
			b.delay = b.max
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
