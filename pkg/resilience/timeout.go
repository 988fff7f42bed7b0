package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Bounded runs fn with a context that expires after timeout. fn must honour
// its context; a deadline hit is reported as context.DeadlineExceeded
// wrapped with name. A non-positive timeout runs fn unbounded.
func Bounded[T any](ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	v, err := fn(ctx)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return v, fmt.Errorf("%s: %w (limit: %v)", name, context.DeadlineExceeded, timeout)
	}
	return v, err
}
