package dar_test

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aibus/dar-go/internal/darfake"
	"github.com/aibus/dar-go/pkg/dar"
	"github.com/aibus/dar-go/pkg/polling/pollingtest"
)

const testToken = "test-token"

// newFakeSession starts a fake service and returns a session talking to it.
// Retries back off for a millisecond so failure tests stay fast.
func newFakeSession(t *testing.T, opts ...dar.SessionOption) (*darfake.Fake, *dar.Session) {
	t.Helper()

	fake := darfake.New()
	srv := fake.StartTLS()
	t.Cleanup(srv.Close)

	opts = append([]dar.SessionOption{
		dar.WithHTTPClient(srv.Client()),
		dar.WithLogger(slog.New(slog.DiscardHandler)),
		dar.WithRetryPolicy(dar.DefaultMaxRetries, time.Millisecond),
	}, opts...)

	session, err := dar.NewSession(srv.URL, dar.StaticToken(testToken), opts...)
	require.NoError(t, err)
	return fake, session
}

type timingRecorder struct {
	mu  sync.Mutex
	ops map[string]int
}

func (r *timingRecorder) RecordTiming(op string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ops == nil {
		r.ops = make(map[string]int)
	}
	r.ops[op]++
}

func (r *timingRecorder) count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ops[op]
}

func fakeClock() (*pollingtest.Clock, dar.ClientOption) {
	clock := pollingtest.NewClock()
	return clock, dar.WithClock(clock)
}
