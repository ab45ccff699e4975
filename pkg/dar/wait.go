package dar

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aibus/dar-go/pkg/polling"
)

// WaitConfig is the polling budget for one kind of resource.
type WaitConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

// DefaultWaitConfig returns the polling budget used for kind when no
// override is configured.
func DefaultWaitConfig(kind ResourceKind) WaitConfig {
	switch kind {
	case KindJob:
		return WaitConfig{Interval: 60 * time.Second, Timeout: 24 * time.Hour}
	case KindDeployment:
		return WaitConfig{Interval: 45 * time.Second, Timeout: 30 * time.Minute}
	}
	return WaitConfig{Interval: 30 * time.Second, Timeout: 4 * time.Hour}
}

type waitSettings struct {
	WaitConfig
	observers []func(any)
}

// WaitOption adjusts a single Wait* call.
type WaitOption func(*waitSettings)

// WithTimeout overrides the overall budget of one wait.
func WithTimeout(d time.Duration) WaitOption {
	return func(w *waitSettings) { w.Timeout = d }
}

// WithInterval overrides the pause between two polls of one wait.
func WithInterval(d time.Duration) WaitOption {
	return func(w *waitSettings) { w.Interval = d }
}

// OnUpdate registers fn to receive every fetched resource state.
// T must be the resource type of the wait (*Dataset, *Job or *Deployment);
// updates of other types are ignored.
func OnUpdate[T any](fn func(T)) WaitOption {
	return func(w *waitSettings) {
		w.observers = append(w.observers, func(v any) {
			if t, ok := v.(T); ok {
				fn(t)
			}
		})
	}
}

// ClientOption configures a service client.
type ClientOption func(*clientCore)

// WithClock replaces the clock used for polling.
func WithClock(c polling.Clock) ClientOption {
	return func(cc *clientCore) { cc.clock = c }
}

// WithWaitConfig overrides the default polling budget for kind.
func WithWaitConfig(kind ResourceKind, cfg WaitConfig) ClientOption {
	return func(cc *clientCore) { cc.waits[kind] = cfg }
}

// clientCore is shared by all service clients.
type clientCore struct {
	session *Session
	logger  *slog.Logger
	clock   polling.Clock
	waits   map[ResourceKind]WaitConfig
}

func newClientCore(session *Session, opts []ClientOption) clientCore {
	cc := clientCore{
		session: session,
		logger:  session.Logger(),
		clock:   polling.SystemClock(),
		waits: map[ResourceKind]WaitConfig{
			KindDataset:    DefaultWaitConfig(KindDataset),
			KindJob:        DefaultWaitConfig(KindJob),
			KindDeployment: DefaultWaitConfig(KindDeployment),
		},
	}
	for _, opt := range opts {
		opt(&cc)
	}
	return cc
}

func (c *clientCore) getJSON(ctx context.Context, endpoint string, v any) error {
	resp, err := c.session.Get(ctx, endpoint)
	if err != nil {
		return err
	}
	return resp.JSON(v)
}

func (c *clientCore) postJSON(ctx context.Context, endpoint string, payload, v any) error {
	resp, err := c.session.Post(ctx, endpoint, payload, false)
	if err != nil {
		return err
	}
	return resp.JSON(v)
}

// lifecycle describes how to poll one resource.
type lifecycle[T any] struct {
	kind ResourceKind
	id   string
	op   string

	fetch      func(context.Context) (T, error)
	isFinished func(T) (bool, error)
	isFailed   func(T) bool
	status     func(T) (status, message string)
}

// waitFor polls until lc reports the resource finished, then maps failed
// terminal states and timeouts onto typed errors.
func waitFor[T any](ctx context.Context, c *clientCore, lc lifecycle[T], opts []WaitOption) (T, error) {
	var zero T

	settings := waitSettings{WaitConfig: c.waits[lc.kind]}
	for _, opt := range opts {
		opt(&settings)
	}

	p := polling.New[T](polling.Config{
		Interval: settings.Interval,
		Timeout:  settings.Timeout,
		Clock:    c.clock,
		Logger:   c.logger,
	})
	if len(settings.observers) > 0 {
		p.WithObserver(func(v T) {
			for _, observe := range settings.observers {
				observe(v)
			}
		})
	}

	c.logger.Info("waiting for resource", "kind", lc.kind, "id", lc.id,
		"interval", p.Interval(), "timeout", p.Timeout())

	start := c.clock.Now()
	value, err := p.PollUntilSuccess(ctx, lc.fetch, lc.isFinished)
	c.session.record(lc.op, c.clock.Now().Sub(start))
	if err != nil {
		if errors.Is(err, polling.ErrTimeout) {
			terr := &TimeoutError{Kind: lc.kind, ID: lc.id, Timeout: p.Timeout(), Cause: err}
			c.logger.Error("wait timed out", "kind", lc.kind, "id", lc.id, "error", terr)
			return zero, terr
		}
		return zero, err
	}

	status, message := lc.status(value)
	if lc.isFailed(value) {
		ferr := &FailedError{Kind: lc.kind, ID: lc.id, Status: status, Message: message}
		c.logger.Error("resource failed", "kind", lc.kind, "id", lc.id, "status", status, "message", message)
		return zero, ferr
	}
	c.logger.Info("resource finished", "kind", lc.kind, "id", lc.id, "status", status)
	return value, nil
}
