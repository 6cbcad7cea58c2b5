// Package resilience provides the retry, timeout, and circuit-breaker
// primitives used around every directory and delivery call.
package resilience

import (
	"context"
	"math/rand"
	"time"

	"github.com/huddle-live/huddle-go-utils/faults"
)

// Operation is a single attempt against an external collaborator.
type Operation func(ctx context.Context) error

// WithRetry invokes op, retrying transient failures up to maxAttempts with
// exponential backoff and jitter (baseDelay * 2^attempt * rand(0.5,1.5)).
// Validation-class errors are re-raised immediately without a retry. The
// last error is returned after exhaustion.
func WithRetry(ctx context.Context, maxAttempts int, baseDelay time.Duration, op Operation) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, backoff(baseDelay, attempt-1)); err != nil {
				return err
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if faults.IsValidation(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func backoff(baseDelay time.Duration, attempt int) time.Duration {
	jitter := 0.5 + rand.Float64()
	return time.Duration(float64(baseDelay) * float64(uint64(1)<<uint(attempt)) * jitter)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
