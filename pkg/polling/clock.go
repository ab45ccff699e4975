package polling

import (
	"context"
	"time"
)

// Clock supplies monotonic time readings and blocking sleeps to a Poller.
//
// Only differences between two Now values are meaningful. The system clock
// relies on the monotonic reading carried by time.Now, so wall-clock
// adjustments do not affect timeouts.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock returns the Clock backed by the runtime timer.
func SystemClock() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
