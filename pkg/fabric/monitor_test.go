package fabric

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_PutFailureAlertRespectsCooldown(t *testing.T) {
	m := NewMonitor(time.Hour, time.Hour) // sampling loop never runs in-test

	var alerts []Alert
	m.OnAlert(func(a Alert) { alerts = append(alerts, a) })

	m.ReportPutFailure("vad_to_asr", 10, 10)
	m.ReportPutFailure("vad_to_asr", 10, 10)
	m.ReportPutFailure("asr_to_translation", 5, 5)

	require.Len(t, alerts, 2, "same-queue repeat within cooldown is suppressed")
	assert.Equal(t, AlertPutFail, alerts[0].Level)
	assert.Equal(t, "vad_to_asr", alerts[0].QueueName)
	assert.Equal(t, "asr_to_translation", alerts[1].QueueName)
}

func TestMonitor_DepthThresholds(t *testing.T) {
	m := NewMonitor(time.Hour, time.Millisecond)

	var alerts []Alert
	m.OnAlert(func(a Alert) { alerts = append(alerts, a) })

	warn := NewQueue[int](10)
	for i := 0; i < 7; i++ {
		warn.TryPut(i)
	}
	m.Register("warning_queue", warn)
	m.sampleOnce()
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertWarning, alerts[0].Level)

	time.Sleep(5 * time.Millisecond)
	for i := 0; i < 2; i++ {
		warn.TryPut(i)
	}
	m.sampleOnce()
	require.Len(t, alerts, 2)
	assert.Equal(t, AlertCritical, alerts[1].Level)
}

func TestTracker_CurrentStageByID(t *testing.T) {
	tr := NewTracker()
	tr.NewSegment(7, "seg-7")
	tr.Drop("seg-7", "asr queue full")

	stage, ok := tr.CurrentStageByID(7)
	require.True(t, ok)
	assert.Equal(t, StageDropped, stage)

	_, ok = tr.CurrentStageByID(99)
	assert.False(t, ok)
}
