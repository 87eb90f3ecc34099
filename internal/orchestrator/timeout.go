package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/YodHeVauHe/CallCenterX/internal/backend"
)

type callResult[T any] struct {
	value T
	err   error
}

// call bounds one external call by the given timeout, converting expiry into
// a TransientError so the uniform fallback policy applies. The call itself is
// not interrupted: if it outlives the bound it runs to completion in its
// goroutine and its result is discarded.
func call[T any](ctx context.Context, timeout time.Duration, op string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan callResult[T], 1)
	go func() {
		value, err := fn(ctx)
		done <- callResult[T]{value: value, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && errors.Is(res.err, context.DeadlineExceeded) {
			var zero T
			return zero, &backend.TransientError{Op: op, Err: context.DeadlineExceeded}
		}
		return res.value, res.err
	case <-ctx.Done():
		var zero T
		return zero, &backend.TransientError{Op: op, Err: ctx.Err()}
	}
}
