package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrExternalTimeout matches any external call that hit its deadline.
	ErrExternalTimeout = errors.New("external call timed out")
	// ErrExternalCall matches any other external call failure.
	ErrExternalCall = errors.New("external call failed")
	// ErrMalformedResponse is returned when generator output cannot be parsed.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrEmptyQuery is returned for blank queries.
	ErrEmptyQuery = errors.New("query is empty")
)

// ExternalCallError records which external operation failed.
type ExternalCallError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *ExternalCallError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: timed out: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ExternalCallError) Unwrap() error { return e.Err }

func (e *ExternalCallError) Is(target error) bool {
	switch target {
	case ErrExternalTimeout:
		return e.Timeout
	case ErrExternalCall:
		return !e.Timeout
	}
	return false
}

type timeoutError interface {
	Timeout() bool
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var te timeoutError
	return errors.As(err, &te) && te.Timeout()
}

// callExternal runs fn under its own deadline and classifies its failure.
// A canceled parent context is returned as is.
func callExternal[T any](ctx context.Context, op string, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	v, err := fn(callCtx)
	if err == nil {
		return v, nil
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return v, ctx.Err()
	}
	return v, &ExternalCallError{Op: op, Timeout: isTimeout(callCtx, err), Err: err}
}
