// Package metrics measures the latency and quality surface of the
// streaming pipeline: TTFT, meaning latency, ear-to-voice lag, draft
// stability, and the session counters. The polled Snapshot API and the
// OpenTelemetry instruments are fed by the same recording calls, and each
// keeps its own aggregates.
package metrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Targets are the latency/quality goals the snapshot is evaluated against.
type Targets struct {
	TTFTMs          float64
	MeaningMs       float64
	EarToVoiceMs    float64
	MinStability    float64
	MaxLossRate     float64
}

func DefaultTargets() Targets {
	return Targets{
		TTFTMs:       2000,
		MeaningMs:    2000,
		EarToVoiceMs: 500,
		MinStability: 0.7,
		MaxLossRate:  0,
	}
}

// Snapshot is the polled metrics surface.
type Snapshot struct {
	AvgTTFTMs         float64
	AvgMeaningMs      float64
	AvgEarToVoiceMs   float64
	AvgDraftStability float64

	TotalSegments int64
	TotalDrafts   int64
	TotalFinals   int64
	CacheHits     int64
	Dropped       int64
	Errored       int64

	ASRCallsPerSecond float64
	LossRate          float64

	SessionDuration time.Duration
}

// MeetsTargets evaluates the snapshot against the given goals. A session
// with no finished segments trivially passes the latency goals.
func (s Snapshot) MeetsTargets(t Targets) bool {
	if s.TotalSegments == 0 {
		return s.LossRate <= t.MaxLossRate
	}
	if s.AvgTTFTMs > t.TTFTMs || s.AvgMeaningMs > t.MeaningMs || s.AvgEarToVoiceMs > t.EarToVoiceMs {
		return false
	}
	if s.TotalDrafts > 1 && s.AvgDraftStability < t.MinStability {
		return false
	}
	return s.LossRate <= t.MaxLossRate
}

type rollingMean struct {
	sum   float64
	count int64
}

func (m *rollingMean) add(v float64) {
	m.sum += v
	m.count++
}

func (m rollingMean) mean() float64 {
	if m.count == 0 {
		return 0
	}
	return m.sum / float64(m.count)
}

// Collector accumulates the per-segment timing events the pipeline reports.
// One mutex covers all state; at segment rates below 10 Hz contention is
// negligible. The collector owns the "first draft / first translation per
// segment" bookkeeping so callers only report raw emissions.
type Collector struct {
	mu        sync.Mutex
	startedAt time.Time

	ttft       rollingMean
	meaning    rollingMean
	earToVoice rollingMean
	stability  rollingMean

	segments int64
	drafts   int64
	finals   int64
	cacheHit int64
	dropped  int64
	errored  int64
	asrCalls int64

	firstDraftSeen       map[string]struct{}
	firstTranslationSeen map[string]struct{}

	inst *instruments
}

func NewCollector() *Collector {
	return &Collector{
		startedAt:            time.Now(),
		firstDraftSeen:       make(map[string]struct{}),
		firstTranslationSeen: make(map[string]struct{}),
	}
}

// WithMeter attaches OpenTelemetry instruments so every recorded event also
// feeds the exported histograms/counters. Returns the collector for chained
// construction.
func (c *Collector) WithMeter(meter metric.Meter) (*Collector, error) {
	inst, err := newInstruments(meter)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.inst = inst
	c.mu.Unlock()
	return c, nil
}

// SegmentCreated records a VAD emission.
func (c *Collector) SegmentCreated() {
	c.mu.Lock()
	c.segments++
	inst := c.inst
	c.mu.Unlock()
	if inst != nil {
		inst.segments.Add(context.Background(), 1)
	}
}

// SegmentDropped records a terminal drop, attributed by reason.
func (c *Collector) SegmentDropped(reason string) {
	c.mu.Lock()
	c.dropped++
	inst := c.inst
	c.mu.Unlock()
	if inst != nil {
		inst.dropped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
}

// SegmentErrored records a terminal error.
func (c *Collector) SegmentErrored() {
	c.mu.Lock()
	c.errored++
	inst := c.inst
	c.mu.Unlock()
	if inst != nil {
		inst.errored.Add(context.Background(), 1)
	}
}

// ASRCall records one recognition call, draft or final.
func (c *Collector) ASRCall() {
	c.mu.Lock()
	c.asrCalls++
	c.mu.Unlock()
}

// CacheHit records a translation-cache hit.
func (c *Collector) CacheHit() {
	c.mu.Lock()
	c.cacheHit++
	c.mu.Unlock()
}

// DraftEmitted records one draft reaching Output. segmentStart is the
// wall-clock time speech began; hasTranslation reports whether the draft
// crossed the semantic gate. The first draft per segment contributes to
// TTFT; the first translated emission contributes to meaning latency.
func (c *Collector) DraftEmitted(segmentUUID string, segmentStart, emittedAt time.Time, stabilityScore float64, hasTranslation bool) {
	c.mu.Lock()
	c.drafts++
	firstDraft := false
	if _, seen := c.firstDraftSeen[segmentUUID]; !seen {
		firstDraft = true
		c.firstDraftSeen[segmentUUID] = struct{}{}
		c.ttft.add(emittedAt.Sub(segmentStart).Seconds() * 1000)
	} else {
		// Only drafts after the first have a meaningful stability baseline;
		// the first draft's score is 0.0 by definition and would bias the mean.
		c.stability.add(stabilityScore)
	}
	if hasTranslation {
		if _, seen := c.firstTranslationSeen[segmentUUID]; !seen {
			c.firstTranslationSeen[segmentUUID] = struct{}{}
			c.meaning.add(emittedAt.Sub(segmentStart).Seconds() * 1000)
		}
	}
	inst := c.inst
	ttftMs := emittedAt.Sub(segmentStart).Seconds() * 1000
	c.mu.Unlock()

	if inst != nil {
		inst.drafts.Add(context.Background(), 1)
		if firstDraft {
			inst.ttft.Record(context.Background(), ttftMs)
		}
	}
}

// FinalEmitted records a segment's final reaching Output. segmentEnd is the
// wall-clock time silence was detected; the gap to emittedAt is the
// ear-to-voice lag. A final that carries a translation also satisfies
// meaning latency if no draft did first.
func (c *Collector) FinalEmitted(segmentUUID string, segmentStart, segmentEnd, emittedAt time.Time, hasTranslation bool) {
	c.mu.Lock()
	c.finals++
	lagMs := emittedAt.Sub(segmentEnd).Seconds() * 1000
	c.earToVoice.add(lagMs)
	if hasTranslation {
		if _, seen := c.firstTranslationSeen[segmentUUID]; !seen {
			c.firstTranslationSeen[segmentUUID] = struct{}{}
			c.meaning.add(emittedAt.Sub(segmentStart).Seconds() * 1000)
		}
	}
	delete(c.firstDraftSeen, segmentUUID)
	delete(c.firstTranslationSeen, segmentUUID)
	inst := c.inst
	c.mu.Unlock()

	if inst != nil {
		inst.finals.Add(context.Background(), 1)
		inst.earToVoice.Record(context.Background(), lagMs)
	}
}

// ForgetSegment releases first-draft bookkeeping for a segment that will
// never emit (dropped or errored), so the maps don't grow unbounded.
func (c *Collector) ForgetSegment(segmentUUID string) {
	c.mu.Lock()
	delete(c.firstDraftSeen, segmentUUID)
	delete(c.firstTranslationSeen, segmentUUID)
	c.mu.Unlock()
}

// Snapshot returns the current polled view.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := time.Since(c.startedAt)
	var callRate float64
	if elapsed > 0 {
		callRate = float64(c.asrCalls) / elapsed.Seconds()
	}

	var lossRate float64
	if c.segments > 0 {
		lossRate = float64(c.dropped+c.errored) / float64(c.segments)
	}

	return Snapshot{
		AvgTTFTMs:         c.ttft.mean(),
		AvgMeaningMs:      c.meaning.mean(),
		AvgEarToVoiceMs:   c.earToVoice.mean(),
		AvgDraftStability: c.stability.mean(),
		TotalSegments:     c.segments,
		TotalDrafts:       c.drafts,
		TotalFinals:       c.finals,
		CacheHits:         c.cacheHit,
		Dropped:           c.dropped,
		Errored:           c.errored,
		ASRCallsPerSecond: callRate,
		LossRate:          lossRate,
		SessionDuration:   elapsed,
	}
}
