package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aibus/dar-go/pkg/retry"
	"github.com/stretchr/testify/assert"
)

var noWait retry.Backoff = func(context.Context) error { return nil }

func TestBlocking_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	got, err := retry.Blocking(context.Background(), noWait, func() (int, error) {
		calls++
		if calls < 3 {
			return calls, retry.Retryable(errors.New("transient"))
		}
		return calls, nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, got)
	assert.Equal(t, 3, calls)
}

func TestBlocking_StopsOnPermanentError(t *testing.T) {
	errPermanent := errors.New("bad request")
	calls := 0
	_, err := retry.Blocking(context.Background(), noWait, func() (int, error) {
		calls++
		return 0, errPermanent
	})

	assert.ErrorIs(t, err, errPermanent)
	assert.Equal(t, 1, calls)
}

func TestBlocking_ExhaustedReturnsLastAttempt(t *testing.T) {
	errTransient := errors.New("503")
	calls := 0
	got, err := retry.Blocking(context.Background(), retry.Limited(2, noWait), func() (int, error) {
		calls++
		return calls, retry.Retryable(errTransient)
	})

	assert.Equal(t, 3, calls, "one attempt plus two retries")
	assert.Equal(t, 3, got)
	assert.ErrorIs(t, err, errTransient)
	assert.NotErrorIs(t, err, retry.ErrRetry)
}

func TestBlocking_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := retry.Blocking(ctx, retry.StaticBackoff(time.Hour), func() (int, error) {
		return 0, retry.Retryable(errors.New("transient"))
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExponentialBackoff_Grows(t *testing.T) {
	b := retry.ExponentialBackoff(time.Millisecond, 2)
	start := time.Now()
	for range 3 {
		assert.NoError(t, b(context.Background()))
	}
	// 1ms + 2ms + 4ms
	assert.GreaterOrEqual(t, time.Since(start), 7*time.Millisecond)
}

func TestRetryable_Nil(t *testing.T) {
	assert.NoError(t, retry.Retryable(nil))
}
