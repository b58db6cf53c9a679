package fabric

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_TryPutFailsWhenFull(t *testing.T) {
	q := NewQueue[int](1)
	assert.True(t, q.TryPut(1))
	assert.False(t, q.TryPut(2))
}

func TestQueue_GetReturnsInOrder(t *testing.T) {
	q := NewQueue[int](4)
	q.TryPut(1)
	q.TryPut(2)
	q.TryPut(3)

	ctx := context.Background()
	v1, ok := q.Get(ctx)
	require.True(t, ok)
	v2, ok := q.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, 1, v1)
	assert.Equal(t, 2, v2)
}

func TestQueue_PutWithTimeoutTimesOut(t *testing.T) {
	q := NewQueue[int](1)
	q.TryPut(1)

	ok := q.PutWithTimeout(context.Background(), 2, 20*time.Millisecond)
	assert.False(t, ok)
}

func TestQueue_ClearDrainsBuffered(t *testing.T) {
	q := NewQueue[int](4)
	q.TryPut(1)
	q.TryPut(2)
	q.Clear()
	assert.Equal(t, 0, q.Len())
}

func TestTracker_InvariantHoldsAfterEmitDropError(t *testing.T) {
	tr := NewTracker()
	tr.NewSegment(1, "seg-1")
	tr.NewSegment(2, "seg-2")
	tr.NewSegment(3, "seg-3")

	tr.Advance("seg-1", StageASRComplete)
	tr.Emit("seg-1")

	tr.Drop("seg-2", "vad_queue full")

	tr.Error("seg-3", "backend timeout")

	summary := tr.Summarize()
	assert.Equal(t, uint64(3), summary.Created)
	assert.Equal(t, uint64(1), summary.Emitted)
	assert.Equal(t, uint64(1), summary.Dropped)
	assert.Equal(t, uint64(1), summary.Errored)
	assert.Equal(t, uint64(0), summary.InFlight)
	assert.False(t, summary.Partial())
}

func TestTracker_InFlightSegmentIsNotTerminal(t *testing.T) {
	tr := NewTracker()
	tr.NewSegment(1, "seg-1")
	tr.Advance("seg-1", StageASRProcessing)

	summary := tr.Summarize()
	assert.Equal(t, uint64(1), summary.InFlight)
	assert.True(t, summary.Partial())
	assert.Contains(t, summary.Incomplete, "seg-1")
}

func TestTracker_DropCallbackFires(t *testing.T) {
	tr := NewTracker()
	var mu sync.Mutex
	var gotReason string
	tr.OnDrop(func(segmentUUID, reason string) {
		mu.Lock()
		defer mu.Unlock()
		gotReason = reason
	})

	tr.NewSegment(1, "seg-1")
	tr.Drop("seg-1", "asr_queue full")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "asr_queue full", gotReason)
}

func TestMonitor_FiresCriticalAboveNinetyPercent(t *testing.T) {
	q := NewQueue[int](10)
	for i := 0; i < 9; i++ {
		q.TryPut(i)
	}

	m := NewMonitor(10*time.Millisecond, time.Millisecond)
	m.Register("asr_queue", q)

	var mu sync.Mutex
	var alerts []Alert
	m.OnAlert(func(a Alert) {
		mu.Lock()
		defer mu.Unlock()
		alerts = append(alerts, a)
	})

	m.sampleOnce()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertCritical, alerts[0].Level)
}

func TestMonitor_CooldownSuppressesRepeatedAlerts(t *testing.T) {
	q := NewQueue[int](10)
	for i := 0; i < 9; i++ {
		q.TryPut(i)
	}

	m := NewMonitor(time.Millisecond, time.Hour)
	m.Register("asr_queue", q)

	var count int
	var mu sync.Mutex
	m.OnAlert(func(a Alert) {
		mu.Lock()
		defer mu.Unlock()
		count++
	})

	m.sampleOnce()
	m.sampleOnce()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestMonitor_ReportPutFailureFiresImmediately(t *testing.T) {
	m := NewMonitor(time.Second, time.Millisecond)

	var mu sync.Mutex
	var level AlertLevel
	m.OnAlert(func(a Alert) {
		mu.Lock()
		defer mu.Unlock()
		level = a.Level
	})

	m.ReportPutFailure("vad_queue", 10, 10)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, AlertPutFail, level)
}
