// Package polling implements a busy-wait loop that repeatedly fetches a value
// until a predicate accepts it or a time budget runs out.
package polling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	// DefaultInterval is the pause between two fetches.
	DefaultInterval = 30 * time.Second

	// DefaultTimeout is the overall budget of a poll.
	DefaultTimeout = 4 * time.Hour
)

// ErrTimeout is matched by every *TimeoutError.
var ErrTimeout = errors.New("polling timeout")

// TimeoutError reports that the predicate never accepted a fetched value
// within the configured budget. The polled resource may still finish later.
type TimeoutError struct {
	Timeout time.Duration
	// Last is the most recently fetched value.
	Last any
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("polling did not finish before timeout (%s)", e.Timeout)
}

// Is makes errors.Is(err, ErrTimeout) work for wrapped timeouts.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// Config controls a Poller. Zero values fall back to the package defaults.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
	Clock    Clock
	Logger   *slog.Logger
}

// Poller calls a fetch function until a success predicate returns true.
type Poller[T any] struct {
	interval time.Duration
	timeout  time.Duration
	clock    Clock
	logger   *slog.Logger
	observer func(T)
}

// New creates a Poller for values of type T.
func New[T any](cfg Config) *Poller[T] {
	p := &Poller[T]{
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
	}
	if p.interval <= 0 {
		p.interval = DefaultInterval
	}
	if p.timeout <= 0 {
		p.timeout = DefaultTimeout
	}
	if p.clock == nil {
		p.clock = SystemClock()
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// WithObserver registers fn to be called with every fetched value before the
// success predicate sees it.
func (p *Poller[T]) WithObserver(fn func(T)) *Poller[T] {
	p.observer = fn
	return p
}

// Interval returns the configured pause between fetches.
func (p *Poller[T]) Interval() time.Duration { return p.interval }

// Timeout returns the configured budget.
func (p *Poller[T]) Timeout() time.Duration { return p.timeout }

// PollUntilSuccess calls fetch until isSuccess reports true and returns the
// accepted value.
//
// The first fetch happens immediately, so a value that is already final
// returns without sleeping. Each pause is the smaller of the interval and
// the remaining budget; once the budget is spent a *TimeoutError is
// returned. Errors from fetch, isSuccess or a cancelled ctx are returned
// unchanged.
func (p *Poller[T]) PollUntilSuccess(
	ctx context.Context,
	fetch func(context.Context) (T, error),
	isSuccess func(T) (bool, error),
) (T, error) {
	var zero T

	start := p.clock.Now()
	value, err := fetch(ctx)
	if err != nil {
		return zero, err
	}

	for {
		if p.observer != nil {
			p.observer(value)
		}

		done, err := isSuccess(value)
		if err != nil {
			return zero, err
		}
		if done {
			break
		}

		remaining := p.timeout - p.clock.Now().Sub(start)
		if remaining <= 0 {
			p.logger.Info("polling did not finish before timeout", "timeout", p.timeout, "last", value)
			return zero, &TimeoutError{Timeout: p.timeout, Last: value}
		}

		pause := min(remaining, p.interval)
		p.logger.Debug("success check returned false, sleeping", "duration", pause)
		if err := p.clock.Sleep(ctx, pause); err != nil {
			return zero, err
		}

		value, err = fetch(ctx)
		if err != nil {
			return zero, err
		}
	}

	p.logger.Debug("polling finished")
	return value, nil
}
