package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCountersAccumulate(t *testing.T) {
	m := NewMetrics()

	m.IncrCounter(WebhookReceived)
	m.IncrCounter(WebhookReceived)
	m.AddCounter(BackfillCommentsSaved, 100)

	counters, _, _ := m.Snapshot()
	require.Equal(t, int64(2), counters[WebhookReceived])
	require.Equal(t, int64(100), counters[BackfillCommentsSaved])
	require.Zero(t, counters[WebhookRejected])
}

func TestTimerTracksMinMaxAverage(t *testing.T) {
	m := NewMetrics()

	m.RecordTime("webhook.duration", 10*time.Millisecond)
	m.RecordTime("webhook.duration", 30*time.Millisecond)

	_, timers, _ := m.Snapshot()
	timer := timers["webhook.duration"]
	require.Equal(t, int64(2), timer.Count)
	require.Equal(t, int64(10), timer.MinTimeMs)
	require.Equal(t, int64(30), timer.MaxTimeMs)
	require.Equal(t, 20.0, timer.AverageTimeMs)
}

func TestConcurrentCounterWrites(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncrCounter(MirrorWrites)
		}()
	}
	wg.Wait()

	counters, _, _ := m.Snapshot()
	require.Equal(t, int64(50), counters[MirrorWrites])
}

func TestSnapshotIsACopy(t *testing.T) {
	m := NewMetrics()
	m.IncrCounter(AlertsSent)

	counters, _, _ := m.Snapshot()
	counters[AlertsSent] = 999

	fresh, _, _ := m.Snapshot()
	require.Equal(t, int64(1), fresh[AlertsSent])
}
