package util

import (
	"context"
	"errors"
)

// RetryErrWithContext retries fn while the context is alive, at most maxTries
// times. The error of the final attempt is returned when every try fails.
// Context errors are returned immediately and never retried, so cancellation
// propagates instead of burning the remaining attempts. maxTries below 1
// means one attempt.
func RetryErrWithContext(ctx context.Context, maxTries int, fn func(context.Context) error) error {
	if maxTries < 1 {
		maxTries = 1
	}
	var lastErr error
	for attempt := 0; attempt < maxTries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
	}
	return lastErr
}

// RetryWithContext is RetryErrWithContext for functions that produce a value.
func RetryWithContext[T any](ctx context.Context, maxTries int, fn func(context.Context) (T, error)) (T, error) {
	var result T
	err := RetryErrWithContext(ctx, maxTries, func(ctx context.Context) error {
		var fnErr error
		result, fnErr = fn(ctx)
		return fnErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
