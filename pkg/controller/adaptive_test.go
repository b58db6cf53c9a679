package controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func speaking(pauseMs float64) VADState {
	return VADState{IsSpeaking: true, RecentPauseMs: pauseMs}
}

func TestAdaptive_FirstDraftFiresOnceAudioAccumulates(t *testing.T) {
	c := NewAdaptiveDraftController(DefaultAdaptiveConfig())
	now := time.Now()
	c.StartSegment(now)

	assert.False(t, c.ShouldTriggerDraft(now, 100, speaking(0), 0), "below minimum audio")
	assert.True(t, c.ShouldTriggerDraft(now, 500, speaking(0), 0))

	stats := c.Stats()
	assert.EqualValues(t, 1, stats.DraftsTriggered)
	assert.EqualValues(t, 1, stats.DraftsSkippedAudio)
}

func TestAdaptive_IntervalGate(t *testing.T) {
	c := NewAdaptiveDraftController(DefaultAdaptiveConfig())
	now := time.Now()
	c.StartSegment(now)

	assert.True(t, c.ShouldTriggerDraft(now, 500, speaking(0), 0))
	assert.False(t, c.ShouldTriggerDraft(now.Add(500*time.Millisecond), 1000, speaking(0), 0),
		"within draft interval")
	assert.True(t, c.ShouldTriggerDraft(now.Add(2100*time.Millisecond), 2500, speaking(0), 0))

	assert.EqualValues(t, 1, c.Stats().DraftsSkippedTime)
}

func TestAdaptive_PauseGateDefersToFinal(t *testing.T) {
	c := NewAdaptiveDraftController(DefaultAdaptiveConfig())
	now := time.Now()
	c.StartSegment(now)

	assert.False(t, c.ShouldTriggerDraft(now, 1000, speaking(600), 0),
		"speaker paused; the final path will handle it")
	assert.EqualValues(t, 1, c.Stats().DraftsSkippedPause)
}

func TestAdaptive_BackpressureGate(t *testing.T) {
	c := NewAdaptiveDraftController(DefaultAdaptiveConfig())
	now := time.Now()
	c.StartSegment(now)

	assert.False(t, c.ShouldTriggerDraft(now, 1000, speaking(0), 3), "queue too deep")
	assert.True(t, c.ShouldTriggerDraft(now, 1000, speaking(0), 2), "at the limit is allowed")
	assert.EqualValues(t, 1, c.Stats().DraftsSkippedQueue)
}

func TestAdaptive_StartSegmentResetsInterval(t *testing.T) {
	c := NewAdaptiveDraftController(DefaultAdaptiveConfig())
	now := time.Now()
	c.StartSegment(now)
	assert.True(t, c.ShouldTriggerDraft(now, 1000, speaking(0), 0))

	// New segment: last-draft time is unset again, so the next draft does
	// not wait out the previous segment's interval.
	c.StartSegment(now.Add(100 * time.Millisecond))
	assert.True(t, c.ShouldTriggerDraft(now.Add(200*time.Millisecond), 1000, speaking(0), 0))
}

func TestSimple_TimeOnlyTriggering(t *testing.T) {
	c := NewSimpleDraftController(1000)
	now := time.Now()
	c.StartSegment(now)

	assert.True(t, c.ShouldTriggerDraft(now, 0, VADState{}, 99), "only gate 1 applies")
	assert.False(t, c.ShouldTriggerDraft(now.Add(500*time.Millisecond), 0, VADState{}, 0))
	assert.True(t, c.ShouldTriggerDraft(now.Add(1100*time.Millisecond), 0, VADState{}, 0))
	assert.EqualValues(t, 2, c.Stats().DraftsTriggered)
}

func TestStats_TriggerRate(t *testing.T) {
	s := Stats{DraftsTriggered: 3, DraftsSkippedTime: 7}
	assert.InDelta(t, 30.0, s.TriggerRate(), 0.001)
	assert.EqualValues(t, 10, s.TotalDecisions())

	assert.Zero(t, Stats{}.TriggerRate())
}
