package batch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunOrdered_KeepsSubmissionOrder(t *testing.T) {
	inputs := []int{5, 4, 3, 2, 1, 0}

	// Earlier inputs sleep longer so they finish last.
	results := RunOrdered(context.Background(), inputs, 3, func(_ context.Context, n int) (int, error) {
		time.Sleep(time.Duration(n) * time.Millisecond)
		return n * 10, nil
	})

	require.Len(t, results, len(inputs))
	for i, n := range inputs {
		assert.NoError(t, results[i].Err)
		assert.Equal(t, n*10, results[i].Value)
	}
}

func TestRunOrdered_IsolatesFailures(t *testing.T) {
	errBoom := errors.New("boom")
	inputs := []string{"ok", "fail", "ok", "panic"}

	results := RunOrdered(context.Background(), inputs, 2, func(_ context.Context, s string) (string, error) {
		switch s {
		case "fail":
			return "", errBoom
		case "panic":
			panic("unexpected")
		}
		return s + "!", nil
	})

	require.Len(t, results, 4)
	assert.Equal(t, "ok!", results[0].Value)
	assert.ErrorIs(t, results[1].Err, errBoom)
	assert.Equal(t, "ok!", results[2].Value)
	assert.ErrorContains(t, results[3].Err, "panic: unexpected")
}

func TestRunOrdered_BoundsConcurrency(t *testing.T) {
	for _, workers := range []int{1, 2, 4} {
		var running, peak atomic.Int32
		inputs := make([]int, 20)

		RunOrdered(context.Background(), inputs, workers, func(context.Context, int) (struct{}, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			running.Add(-1)
			return struct{}{}, nil
		})

		assert.LessOrEqual(t, peak.Load(), int32(workers), "workers=%d", workers)
	}
}

func TestRunOrdered_Empty(t *testing.T) {
	results := RunOrdered(context.Background(), []int{}, 4, func(context.Context, int) (int, error) {
		t.Fatal("fn must not be called")
		return 0, nil
	})
	assert.Empty(t, results)
}

func TestRunOrdered_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	results := RunOrdered(ctx, []int{1, 2, 3}, 2, func(context.Context, int) (int, error) {
		calls.Add(1)
		return 0, nil
	})

	assert.Zero(t, calls.Load())
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}
