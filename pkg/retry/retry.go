// Package retry provides context-aware backoff and a blocking retry loop.
package retry

import (
	"context"
	"errors"
	"time"
)

// ErrRetry marks an error as retryable. Wrap it with Retryable.
var ErrRetry = errors.New("retry")

// ErrExhausted is returned by a Backoff that allows no more attempts.
var ErrExhausted = errors.New("retries exhausted")

// Backoff blocks until the next attempt may start.
//
// It returns nil to allow another attempt, ctx.Err() if ctx is done, or
// ErrExhausted when no attempts are left.
type Backoff func(context.Context) error

// StaticBackoff waits for a fixed interval before every retry.
func StaticBackoff(interval time.Duration) Backoff {
	return ExponentialBackoff(interval, 1)
}

// ExponentialBackoff waits initialInterval * r^N before the N-th retry.
func ExponentialBackoff(initialInterval time.Duration, r float64) Backoff {
	interval := initialInterval
	return func(ctx context.Context) error {
		timer := time.NewTimer(interval)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			interval = time.Duration(float64(interval) * r)
			return nil
		}
	}
}

// Limited allows at most n retries through b.
func Limited(n int, b Backoff) Backoff {
	left := n
	return func(ctx context.Context) error {
		if left <= 0 {
			return ErrExhausted
		}
		left--
		return b(ctx)
	}
}

type retryable struct {
	err error
}

func (r retryable) Error() string        { return r.err.Error() }
func (r retryable) Unwrap() error        { return r.err }
func (r retryable) Is(target error) bool { return target == ErrRetry }

// Retryable marks err so that Blocking tries again.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return retryable{err: err}
}

// Blocking calls f until it succeeds or returns an error not marked with
// Retryable. Between attempts it waits on b.
//
// When b refuses another attempt, Blocking returns the last value of f
// together with the underlying (unmarked) error of the last attempt.
func Blocking[T any](ctx context.Context, b Backoff, f func() (T, error)) (T, error) {
	for {
		last, err := f()
		if err == nil {
			return last, nil
		}

		var r retryable
		if !errors.As(err, &r) {
			return last, err
		}

		if berr := b(ctx); berr != nil {
			if errors.Is(berr, ErrExhausted) {
				return last, r.err
			}
			return last, berr
		}
	}
}
