// Package retry provides a small retry-with-backoff combinator shared
// by the outbound delivery path and the provider adapters.
package retry

import (
	"context"
	"time"
)

// Sleep is the function used to wait between attempts. Overridable in
// tests to avoid real delays.
var Sleep = sleepCtx

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs fn up to attempts times. After every failed retryable
// attempt it waits baseDelay, doubling each time (baseDelay,
// 2*baseDelay, 4*baseDelay, ...); the wait happens even after the
// final attempt, so attempts=3 with a 1s base waits 1s, 2s, and 4s
// before giving up. A non-retryable error, a nil error, or context
// cancellation stops the loop immediately. Returns the last error seen.
func Do(ctx context.Context, attempts int, baseDelay time.Duration, isRetryable func(error) bool, fn func(ctx context.Context) error) error {
	var lastErr error
	delay := baseDelay

	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if isRetryable != nil && !isRetryable(lastErr) {
			return lastErr
		}

		if err := Sleep(ctx, delay); err != nil {
			return err
		}
		delay *= 2
	}
	return lastErr
}
