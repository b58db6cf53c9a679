package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCollector_TTFTFromFirstDraftOnly(t *testing.T) {
	c := NewCollector()
	start := time.Now()

	c.SegmentCreated()
	c.DraftEmitted("seg-1", start, start.Add(1500*time.Millisecond), 0, false)
	c.DraftEmitted("seg-1", start, start.Add(3500*time.Millisecond), 0.9, false)

	snap := c.Snapshot()
	assert.InDelta(t, 1500, snap.AvgTTFTMs, 1, "only the first draft sets TTFT")
	assert.EqualValues(t, 2, snap.TotalDrafts)
}

func TestCollector_StabilityExcludesFirstDraft(t *testing.T) {
	c := NewCollector()
	start := time.Now()

	c.DraftEmitted("seg-1", start, start, 0, true)
	c.DraftEmitted("seg-1", start, start, 0.8, true)
	c.DraftEmitted("seg-1", start, start, 0.6, true)

	snap := c.Snapshot()
	assert.InDelta(t, 0.7, snap.AvgDraftStability, 0.001,
		"the first draft's definitional 0.0 must not bias the mean")
}

func TestCollector_MeaningLatencyFromFirstTranslation(t *testing.T) {
	c := NewCollector()
	start := time.Now()

	// First draft was gated (no translation); second crossed the gate.
	c.DraftEmitted("seg-1", start, start.Add(1*time.Second), 0, false)
	c.DraftEmitted("seg-1", start, start.Add(2*time.Second), 1.0, true)
	c.DraftEmitted("seg-1", start, start.Add(3*time.Second), 1.0, true)

	snap := c.Snapshot()
	assert.InDelta(t, 2000, snap.AvgMeaningMs, 1)
}

func TestCollector_EarToVoiceLag(t *testing.T) {
	c := NewCollector()
	start := time.Now()
	end := start.Add(3 * time.Second)

	c.SegmentCreated()
	c.FinalEmitted("seg-1", start, end, end.Add(400*time.Millisecond), true)

	snap := c.Snapshot()
	assert.InDelta(t, 400, snap.AvgEarToVoiceMs, 1)
	assert.EqualValues(t, 1, snap.TotalFinals)
}

func TestCollector_LossRate(t *testing.T) {
	c := NewCollector()
	for i := 0; i < 10; i++ {
		c.SegmentCreated()
	}
	c.SegmentDropped("asr queue full")
	c.SegmentDropped("translation queue full")
	c.SegmentErrored()

	snap := c.Snapshot()
	assert.InDelta(t, 0.3, snap.LossRate, 0.001)
	assert.EqualValues(t, 2, snap.Dropped)
	assert.EqualValues(t, 1, snap.Errored)
}

func TestSnapshot_MeetsTargets(t *testing.T) {
	targets := DefaultTargets()

	good := Snapshot{
		TotalSegments: 5, TotalDrafts: 10,
		AvgTTFTMs: 1200, AvgMeaningMs: 1500, AvgEarToVoiceMs: 300,
		AvgDraftStability: 0.85, LossRate: 0,
	}
	assert.True(t, good.MeetsTargets(targets))

	slow := good
	slow.AvgEarToVoiceMs = 900
	assert.False(t, slow.MeetsTargets(targets))

	lossy := good
	lossy.LossRate = 0.1
	assert.False(t, lossy.MeetsTargets(targets))

	assert.True(t, Snapshot{}.MeetsTargets(targets), "an empty session trivially passes")
}
