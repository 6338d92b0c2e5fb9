package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// WithTimeout runs fn synchronously under a context that expires after
// timeout. fn must honour its context; when the deadline is what stopped it
// the returned error wraps context.DeadlineExceeded and names the limit.
// A non-positive timeout runs fn with ctx unchanged.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(timeoutCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%s: exceeded %v: %w", name, timeout, err)
		}
		return fmt.Errorf("%s: exceeded %v: %w", name, timeout, errors.Join(context.DeadlineExceeded, err))
	}
	return err
}
