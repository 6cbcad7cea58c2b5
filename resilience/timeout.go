package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/huddle-live/huddle-go-utils/faults"
)

// WithTimeout races op against a timer. If the timer fires first, a Timeout
// fault is returned; the underlying operation keeps the cancelled context
// but is not otherwise interrupted (best effort).
func WithTimeout(ctx context.Context, name string, budget time.Duration, op Operation) error {
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(ctx)
	}()

	select {
	case err := <-done:
		// an op that honors ctx surfaces the deadline itself; map it the same way
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == context.DeadlineExceeded {
			return faults.Timeout(name, budget)
		}
		return err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return faults.Timeout(name, budget)
		}
		return ctx.Err()
	}
}
