package fabric

import (
	"sync"
	"time"
)

// Stage names a segment's current position in the pipeline.
type Stage string

const (
	StageVADQueued         Stage = "VAD_QUEUED"
	StageVADProcessed      Stage = "VAD_PROCESSED"
	StageASRQueued         Stage = "ASR_QUEUED"
	StageASRProcessing     Stage = "ASR_PROCESSING"
	StageASRComplete       Stage = "ASR_COMPLETE"
	StageTranslationQueued Stage = "TRANSLATION_QUEUED"
	StageTranslationActive Stage = "TRANSLATION_PROCESSING"
	StageTranslationDone   Stage = "TRANSLATION_COMPLETE"
	StageOutputQueued      Stage = "OUTPUT_QUEUED"
	StageOutputEmitted     Stage = "OUTPUT_EMITTED"
	StageDropped           Stage = "DROPPED"
	StageError             Stage = "ERROR"
)

// terminal reports whether a stage ends a segment's lifetime for the
// created == emitted + dropped + errors + in_flight invariant.
func (s Stage) terminal() bool {
	return s == StageOutputEmitted || s == StageDropped || s == StageError
}

// StageEvent is one recorded transition for a segment.
type StageEvent struct {
	Stage  Stage
	At     time.Time
	Reason string // populated for DROPPED/ERROR
}

// SegmentTrace is the full recorded history for one segment.
type SegmentTrace struct {
	SegmentID   uint64
	SegmentUUID string
	Events      []StageEvent
}

// Current returns the most recent stage recorded, or "" if the segment has
// no events (should not happen once created via NewSegment).
func (t SegmentTrace) Current() Stage {
	if len(t.Events) == 0 {
		return ""
	}
	return t.Events[len(t.Events)-1].Stage
}

// Tracker records every segment's progress through the pipeline stages and
// maintains the counters the shutdown path uses to confirm no segment was
// silently lost. It is an explicit object, constructed once by the
// pipeline and passed by reference into each worker, never a package-level
// singleton, and is guarded by a single coarse mutex over its map and
// counters; contention is negligible at segment rates below 10 Hz.
type Tracker struct {
	mu sync.RWMutex

	traces map[string]*SegmentTrace
	byID   map[uint64]*SegmentTrace

	created uint64
	emitted uint64
	dropped uint64
	errored uint64

	onDrop  func(segmentUUID, reason string)
	onError func(segmentUUID, reason string)
}

func NewTracker() *Tracker {
	return &Tracker{
		traces: make(map[string]*SegmentTrace),
		byID:   make(map[uint64]*SegmentTrace),
	}
}

// OnDrop registers a callback invoked whenever a segment is recorded as
// dropped.
func (t *Tracker) OnDrop(fn func(segmentUUID, reason string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDrop = fn
}

// OnError registers a callback invoked whenever a segment is recorded as
// errored.
func (t *Tracker) OnError(fn func(segmentUUID, reason string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onError = fn
}

// NewSegment registers a freshly created segment at VAD_QUEUED.
func (t *Tracker) NewSegment(segmentID uint64, segmentUUID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.created++
	trace := &SegmentTrace{
		SegmentID:   segmentID,
		SegmentUUID: segmentUUID,
		Events:      []StageEvent{{Stage: StageVADQueued, At: time.Now()}},
	}
	t.traces[segmentUUID] = trace
	t.byID[segmentID] = trace
}

// CurrentStageByID looks a segment up by its monotonic id, for the Output
// worker's final-ordering pass: a held final may release once every lower
// id is terminal, and ids are what emissions are ordered by.
func (t *Tracker) CurrentStageByID(segmentID uint64) (Stage, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	trace, ok := t.byID[segmentID]
	if !ok {
		return "", false
	}
	return trace.Current(), true
}

// Advance records a non-terminal stage transition.
func (t *Tracker) Advance(segmentUUID string, stage Stage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	trace, ok := t.traces[segmentUUID]
	if !ok {
		return
	}
	trace.Events = append(trace.Events, StageEvent{Stage: stage, At: time.Now()})
}

// Drop records a terminal DROPPED transition with a reason (e.g. "vad_queue
// full") and fires the drop callback, if registered.
func (t *Tracker) Drop(segmentUUID, reason string) {
	t.mu.Lock()
	trace, ok := t.traces[segmentUUID]
	if ok {
		trace.Events = append(trace.Events, StageEvent{Stage: StageDropped, At: time.Now(), Reason: reason})
	}
	t.dropped++
	cb := t.onDrop
	t.mu.Unlock()

	if cb != nil {
		cb(segmentUUID, reason)
	}
}

// Error records a terminal ERROR transition and fires the error callback, if
// registered.
func (t *Tracker) Error(segmentUUID, reason string) {
	t.mu.Lock()
	trace, ok := t.traces[segmentUUID]
	if ok {
		trace.Events = append(trace.Events, StageEvent{Stage: StageError, At: time.Now(), Reason: reason})
	}
	t.errored++
	cb := t.onError
	t.mu.Unlock()

	if cb != nil {
		cb(segmentUUID, reason)
	}
}

// Emit records the terminal OUTPUT_EMITTED transition.
func (t *Tracker) Emit(segmentUUID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	trace, ok := t.traces[segmentUUID]
	if ok {
		trace.Events = append(trace.Events, StageEvent{Stage: StageOutputEmitted, At: time.Now()})
	}
	t.emitted++
}

// Trace returns a copy of a segment's recorded history.
func (t *Tracker) Trace(segmentUUID string) (SegmentTrace, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	trace, ok := t.traces[segmentUUID]
	if !ok {
		return SegmentTrace{}, false
	}
	return *trace, true
}

// Summary is the post-mortem the shutdown path reports.
type Summary struct {
	Created  uint64
	Emitted  uint64
	Dropped  uint64
	Errored  uint64
	InFlight uint64
	// Incomplete lists the UUIDs of every segment whose most recent stage is
	// not terminal, i.e. segments still in flight; it is empty after a
	// complete shutdown.
	Incomplete []string
}

// Partial reports whether shutdown left any segment in flight, meaning the
// created == emitted+dropped+errored+in_flight invariant still holds but
// in_flight is non-zero.
func (s Summary) Partial() bool { return s.InFlight > 0 }

// Summarize computes the current counts and the in-flight invariant check.
func (t *Tracker) Summarize() Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	accounted := t.emitted + t.dropped + t.errored
	var inFlight uint64
	if t.created > accounted {
		inFlight = t.created - accounted
	}

	var incomplete []string
	for uuid, trace := range t.traces {
		if !trace.Current().terminal() {
			incomplete = append(incomplete, uuid)
		}
	}

	return Summary{
		Created:    t.created,
		Emitted:    t.emitted,
		Dropped:    t.dropped,
		Errored:    t.errored,
		InFlight:   inFlight,
		Incomplete: incomplete,
	}
}
