package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aibus/dar-go/pkg/dar"
)

var _ dar.MetricsRecorder = (*Collector)(nil)

func TestCollector_RecordTiming(t *testing.T) {
	c := NewCollector()

	c.RecordTiming(dar.OpHTTPGet, 10*time.Millisecond)
	c.RecordTiming(dar.OpHTTPGet, 30*time.Millisecond)
	c.RecordTiming(dar.OpInferenceChunk, 200*time.Millisecond)

	snap := c.Snapshot()
	require.Len(t, snap.Operations, 2)
	assert.Equal(t, dar.OpHTTPGet, snap.Operations[0].Name)
	assert.Equal(t, dar.OpInferenceChunk, snap.Operations[1].Name)

	get := snap.Get(dar.OpHTTPGet)
	require.NotNil(t, get)
	assert.Equal(t, int64(2), get.Count)
	assert.Equal(t, int64(40), get.TotalTimeMs)
	assert.Equal(t, 20.0, get.AvgTimeMs)
	assert.Equal(t, int64(10), get.MinTimeMs)
	assert.Equal(t, int64(30), get.MaxTimeMs)

	assert.Nil(t, snap.Get(dar.OpWaitJob))
	assert.GreaterOrEqual(t, snap.UptimeSeconds, 0.0)
}

func TestCollector_Empty(t *testing.T) {
	assert.Empty(t, NewCollector().Snapshot().Operations)
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.RecordTiming(dar.OpHTTPPost, time.Millisecond)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(800), c.Snapshot().Get(dar.OpHTTPPost).Count)
}
