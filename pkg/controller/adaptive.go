// Package controller decides when the pipeline should spend compute on a new
// draft ASR/translation pass during an in-progress speech segment.
package controller

import (
	"sync"
	"time"
)

// VADState is the subset of VAD state the controller needs to make a
// trigger decision: whether the speaker paused, and how much speech has
// accumulated since the segment began.
type VADState struct {
	IsSpeaking        bool
	RecentPauseMs     float64
	SpeechDurationMs  float64
	SilenceDurationMs float64
}

// DraftController decides whether to fire a draft job at the current tick.
type DraftController interface {
	StartSegment(now time.Time)
	ShouldTriggerDraft(now time.Time, bufferDurationMs float64, vadState VADState, computeQueueDepth int) bool
	Stats() Stats
}

// Stats holds the per-reason skip counters, exposed for metrics.
type Stats struct {
	DraftsTriggered    int64
	DraftsSkippedTime  int64
	DraftsSkippedPause int64
	DraftsSkippedQueue int64
	DraftsSkippedAudio int64
}

func (s Stats) TotalDecisions() int64 {
	return s.DraftsTriggered + s.DraftsSkippedTime + s.DraftsSkippedPause + s.DraftsSkippedQueue + s.DraftsSkippedAudio
}

func (s Stats) TriggerRate() float64 {
	total := s.TotalDecisions()
	if total == 0 {
		return 0
	}
	return float64(s.DraftsTriggered) / float64(total) * 100
}

// AdaptiveConfig holds the four gate thresholds.
type AdaptiveConfig struct {
	DraftIntervalMs     float64 // gate 1: minimum time between drafts
	PauseThresholdMs    float64 // gate 2: skip if speaker has paused longer than this
	MaxQueueDepth       int     // gate 3: skip if the ASR queue is deeper than this
	MinSpeechDurationMs float64 // gate 4: need at least this much buffered audio
}

func DefaultAdaptiveConfig() AdaptiveConfig {
	return AdaptiveConfig{
		DraftIntervalMs:     2000,
		PauseThresholdMs:    500,
		MaxQueueDepth:       2,
		MinSpeechDurationMs: 200,
	}
}

// AdaptiveDraftController implements the four-gate decision rule: interval,
// pause, backpressure, minimum audio, each a short-circuit on first failure.
type AdaptiveDraftController struct {
	cfg AdaptiveConfig

	mu             sync.Mutex
	lastDraftTime  *time.Time
	segmentStartAt *time.Time
	stats          Stats
}

func NewAdaptiveDraftController(cfg AdaptiveConfig) *AdaptiveDraftController {
	return &AdaptiveDraftController{cfg: cfg}
}

func (c *AdaptiveDraftController) StartSegment(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.segmentStartAt = &now
	c.lastDraftTime = nil
}

func (c *AdaptiveDraftController) ShouldTriggerDraft(now time.Time, bufferDurationMs float64, vadState VADState, computeQueueDepth int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastDraftTime != nil {
		sinceLast := now.Sub(*c.lastDraftTime).Seconds() * 1000
		if sinceLast < c.cfg.DraftIntervalMs {
			c.stats.DraftsSkippedTime++
			return false
		}
	}

	if vadState.RecentPauseMs > c.cfg.PauseThresholdMs {
		c.stats.DraftsSkippedPause++
		return false
	}

	if computeQueueDepth > c.cfg.MaxQueueDepth {
		c.stats.DraftsSkippedQueue++
		return false
	}

	if bufferDurationMs < c.cfg.MinSpeechDurationMs {
		c.stats.DraftsSkippedAudio++
		return false
	}

	c.lastDraftTime = &now
	c.stats.DraftsTriggered++
	return true
}

func (c *AdaptiveDraftController) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// SimpleDraftController only applies gate 1 (time-only triggering). Used for
// testing or when adaptive skip behavior is unwanted.
type SimpleDraftController struct {
	intervalMs float64

	mu            sync.Mutex
	lastDraftTime *time.Time
	draftCount    int64
}

func NewSimpleDraftController(intervalMs float64) *SimpleDraftController {
	return &SimpleDraftController{intervalMs: intervalMs}
}

func (c *SimpleDraftController) StartSegment(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastDraftTime = nil
}

func (c *SimpleDraftController) ShouldTriggerDraft(now time.Time, bufferDurationMs float64, vadState VADState, computeQueueDepth int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastDraftTime == nil {
		c.lastDraftTime = &now
		c.draftCount++
		return true
	}

	sinceLast := now.Sub(*c.lastDraftTime).Seconds() * 1000
	if sinceLast >= c.intervalMs {
		c.lastDraftTime = &now
		c.draftCount++
		return true
	}
	return false
}

func (c *SimpleDraftController) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{DraftsTriggered: c.draftCount}
}
