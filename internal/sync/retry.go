package sync

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// Defaults for transient-failure retry: three attempts with a linearly
// growing pause between them (delay, 2×delay, ...).
const (
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = time.Second
)

// linearBackoff grows the wait by delay on every consecutive attempt.
func linearBackoff(delay time.Duration) retry.Backoff {
	attempt := 0

	return retry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		return delay * time.Duration(attempt), false
	})
}

// WithRetry runs fn up to maxAttempts times, pausing delay×attempt
// between tries. Every error from fn is treated as transient; the last
// error is returned when attempts run out. Zero or negative arguments
// fall back to the defaults.
func WithRetry(ctx context.Context, maxAttempts int, delay time.Duration, fn func(ctx context.Context) error) error {
	if maxAttempts <= 0 {
		maxAttempts = DefaultRetryAttempts
	}

	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	backoff := retry.WithMaxRetries(uint64(maxAttempts-1), linearBackoff(delay))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return retry.RetryableError(err)
		}

		return nil
	})
}
