package vad

import (
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/realtime-ai/speech-translate/pkg/audio"
)

// State is the VAD's two-state machine: SILENCE or SPEECH.
type State int

const (
	StateSilence State = iota
	StateSpeech
)

func (s State) String() string {
	if s == StateSpeech {
		return "SPEECH"
	}
	return "SILENCE"
}

// Segment is the engine's output: a contiguous span of speech, with its
// owned audio buffer and the metadata the rest of the pipeline needs to
// track and translate it. Segment ids are assigned in strictly increasing
// order within one Engine's lifetime.
type Segment struct {
	ID         uint64
	UUID       string
	StartSec   float64
	EndSec     float64
	Audio      []float32
	Confidence float32
	IsPartial  bool
}

func (s Segment) DurationMs() float64 {
	return (s.EndSec - s.StartSec) * 1000
}

// EngineConfig holds the segmentation state machine's configurable
// parameters. All *_ms values are rounded up to whole chunks by the engine
// at construction time.
type EngineConfig struct {
	SampleRate           int
	ChunkDurationMs      int
	Threshold            float32
	MinSpeechDurationMs  int
	MinSilenceDurationMs int
	SpeechPadMs          int
	MaxSegmentDurationMs int
	PauseThresholdMs     int
	ForcedSplitOverlapMs int
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		SampleRate:           16000,
		ChunkDurationMs:      30,
		Threshold:            0.5,
		MinSpeechDurationMs:  250,
		MinSilenceDurationMs: 350,
		SpeechPadMs:          450,
		MaxSegmentDurationMs: 6000,
		PauseThresholdMs:     800,
		ForcedSplitOverlapMs: 300,
	}
}

func (c EngineConfig) chunksFor(ms int) int {
	n := ms / c.ChunkDurationMs
	if ms%c.ChunkDurationMs != 0 {
		n++
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Engine runs the SILENCE/SPEECH segmentation state machine over a neural
// speech-probability estimator. Its methods lock an internal mutex; one
// Engine is owned by exactly one VAD worker goroutine.
type Engine struct {
	detector DetectorInterface
	cfg      EngineConfig

	threshold thresholdSource

	state             State
	consecutiveSpeech int
	consecutiveSilent int
	chunkIndex        int64

	padRing      *audio.RingBuffer
	segAudio     []float32
	segStartSec  float64
	segUUID      string
	segConfidSum float64
	segConfidN   int
	probHistory  []float32 // recent per-chunk probabilities, for forced-split pause search

	recentPauseMs float64

	nextSegmentID uint64

	mu sync.Mutex
}

// thresholdSource abstracts over a fixed threshold, the adaptive
// environment-aware estimator, and the calibration-based variant, all of
// which the state machine consults identically: "what's the current
// threshold, and has silence-RMS been observed this chunk".
type thresholdSource interface {
	Threshold() float32
	ObserveSilenceChunk(rms float64)
}

type fixedThreshold struct{ v float32 }

func (f fixedThreshold) Threshold() float32          { return f.v }
func (f fixedThreshold) ObserveSilenceChunk(float64) {}

// NewEngine constructs a VAD engine with a fixed threshold. Use
// NewAdaptiveEngine or NewCalibratingEngine for the environment-aware and
// calibration-based variants.
func NewEngine(detector DetectorInterface, cfg EngineConfig) *Engine {
	return newEngineWithThreshold(detector, cfg, fixedThreshold{v: cfg.Threshold})
}

func newEngineWithThreshold(detector DetectorInterface, cfg EngineConfig, ts thresholdSource) *Engine {
	if cfg.ChunkDurationMs <= 0 {
		cfg.ChunkDurationMs = 30
	}
	probHistCap := cfg.chunksFor(cfg.MaxSegmentDurationMs) + cfg.chunksFor(cfg.PauseThresholdMs) + 8
	return &Engine{
		detector:    detector,
		cfg:         cfg,
		threshold:   ts,
		padRing:     audio.NewRingBuffer(cfg.SampleRate, cfg.SpeechPadMs),
		probHistory: make([]float32, 0, probHistCap),
	}
}

// ProcessFrame feeds one fixed-size audio frame to the state machine and
// returns zero or more newly completed Speech Segments. Frames shorter than
// the VAD minimum (max(512, sample_rate*0.03) samples) are zero-padded
// rather than rejected.
func (e *Engine) ProcessFrame(frame []float32) ([]Segment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	minSamples := e.cfg.SampleRate * 30 / 1000
	if minSamples < 512 {
		minSamples = 512
	}
	if len(frame) < minSamples {
		padded := make([]float32, minSamples)
		copy(padded, frame)
		frame = padded
	}

	prob, err := e.detector.Infer(frame)
	if err != nil {
		return nil, fmt.Errorf("vad inference failed: %w", err)
	}

	rms := rmsOf(frame)
	now := float64(e.chunkIndex) * float64(e.cfg.ChunkDurationMs) / 1000
	e.chunkIndex++

	e.pushProbHistory(prob)
	e.padRing.Write(frame)

	if ct, ok := e.threshold.(*CalibratingThreshold); ok && !ct.IsDone() {
		ct.ObserveSilenceChunk(rms)
		return nil, nil
	}

	isSpeechChunk := prob >= e.threshold.Threshold()

	var emitted []Segment

	switch e.state {
	case StateSilence:
		e.threshold.ObserveSilenceChunk(rms)
		if isSpeechChunk {
			e.consecutiveSpeech++
			if e.consecutiveSpeech >= e.cfg.chunksFor(e.cfg.MinSpeechDurationMs) {
				e.enterSpeech(now)
			}
		} else {
			e.consecutiveSpeech = 0
		}

	case StateSpeech:
		e.segAudio = append(e.segAudio, frame...)
		if isSpeechChunk {
			e.consecutiveSilent = 0
			e.segConfidSum += float64(prob)
			e.segConfidN++
			e.recentPauseMs = 0
		} else {
			e.consecutiveSilent++
			e.recentPauseMs = float64(e.consecutiveSilent) * float64(e.cfg.ChunkDurationMs)
			if e.consecutiveSilent >= e.cfg.chunksFor(e.cfg.MinSilenceDurationMs) {
				if seg, ok := e.emitSegment(now, false); ok {
					emitted = append(emitted, seg)
				}
				e.resetToSilence()
				break
			}
		}

		durationMs := float64(len(e.segAudio)) / float64(e.cfg.SampleRate) * 1000
		if durationMs >= float64(e.cfg.MaxSegmentDurationMs) {
			split := e.forcedSplit(now)
			emitted = append(emitted, split...)
		}
	}

	return emitted, nil
}

func (e *Engine) enterSpeech(now float64) {
	e.state = StateSpeech
	e.consecutiveSilent = 0
	e.segConfidSum = 0
	e.segConfidN = 0
	e.recentPauseMs = 0
	e.segUUID = uuid.NewString()

	padFrames := e.padRing.ReadAll()
	e.segAudio = append([]float32{}, padFrames...)

	padChunks := e.cfg.chunksFor(e.cfg.SpeechPadMs)
	e.segStartSec = now - float64(padChunks)*float64(e.cfg.ChunkDurationMs)/1000
	if e.segStartSec < 0 {
		e.segStartSec = 0
	}
}

func (e *Engine) resetToSilence() {
	e.state = StateSilence
	e.consecutiveSpeech = 0
	e.consecutiveSilent = 0
	e.segAudio = nil
}

func (e *Engine) emitSegment(endSec float64, isPartial bool) (Segment, bool) {
	if len(e.segAudio) == 0 {
		return Segment{}, false
	}
	confidence := float32(0)
	if e.segConfidN > 0 {
		confidence = float32(e.segConfidSum / float64(e.segConfidN))
	}
	if endSec > float64(e.chunkIndex)*float64(e.cfg.ChunkDurationMs)/1000 {
		endSec = float64(e.chunkIndex) * float64(e.cfg.ChunkDurationMs) / 1000
	}
	if endSec <= e.segStartSec {
		endSec = e.segStartSec + float64(len(e.segAudio))/float64(e.cfg.SampleRate)
	}

	seg := Segment{
		ID:         e.nextSegmentID,
		UUID:       e.segUUID,
		StartSec:   e.segStartSec,
		EndSec:     endSec,
		Audio:      append([]float32{}, e.segAudio...),
		Confidence: confidence,
		IsPartial:  isPartial,
	}
	e.nextSegmentID++
	return seg, true
}

// forcedSplit handles the max_segment_duration_ms ceiling: search recent
// probability history for a natural pause of at least pause_threshold_ms; if
// found, split there; otherwise split immediately at the limit, carrying a
// short audio overlap into the next segment. The half emitted at the split
// is marked is_partial; the remainder stays the in-flight segment under a
// new UUID and is marked is_partial only if it is itself split.
func (e *Engine) forcedSplit(now float64) []Segment {
	var out []Segment

	pauseChunks := e.cfg.chunksFor(e.cfg.PauseThresholdMs)
	splitAt := e.findNaturalPause(pauseChunks)

	if splitAt >= 0 {
		samplesPerChunk := e.cfg.SampleRate * e.cfg.ChunkDurationMs / 1000
		splitSample := splitAt * samplesPerChunk
		if splitSample > len(e.segAudio) {
			splitSample = len(e.segAudio)
		}

		firstHalf := e.segAudio[:splitSample]
		endSec := e.segStartSec + float64(splitSample)/float64(e.cfg.SampleRate)

		if seg, ok := e.finalizeHalf(firstHalf, endSec, true); ok {
			out = append(out, seg)
		}

		remainder := append([]float32{}, e.segAudio[splitSample:]...)
		e.segAudio = remainder
		e.segStartSec = endSec
		e.segUUID = uuid.NewString()
		e.segConfidSum = 0
		e.segConfidN = 0
		e.consecutiveSilent = 0
		return out
	}

	overlapSamples := e.cfg.SampleRate * e.cfg.ForcedSplitOverlapMs / 1000
	splitSample := len(e.segAudio)
	endSec := e.segStartSec + float64(splitSample)/float64(e.cfg.SampleRate)

	if seg, ok := e.finalizeHalf(e.segAudio, endSec, true); ok {
		out = append(out, seg)
	}

	overlapStart := splitSample - overlapSamples
	if overlapStart < 0 {
		overlapStart = 0
	}
	overlapAudio := append([]float32{}, e.segAudio[overlapStart:]...)
	e.segAudio = overlapAudio
	e.segStartSec = endSec - float64(len(overlapAudio))/float64(e.cfg.SampleRate)
	e.segUUID = uuid.NewString()
	e.segConfidSum = 0
	e.segConfidN = 0
	e.consecutiveSilent = 0
	return out
}

func (e *Engine) finalizeHalf(audio []float32, endSec float64, isPartial bool) (Segment, bool) {
	if len(audio) == 0 {
		return Segment{}, false
	}
	confidence := float32(0)
	if e.segConfidN > 0 {
		confidence = float32(e.segConfidSum / float64(e.segConfidN))
	}
	seg := Segment{
		ID:         e.nextSegmentID,
		UUID:       e.segUUID,
		StartSec:   e.segStartSec,
		EndSec:     endSec,
		Audio:      append([]float32{}, audio...),
		Confidence: confidence,
		IsPartial:  isPartial,
	}
	e.nextSegmentID++
	return seg, true
}

// findNaturalPause scans recent probability history for a contiguous run of
// low-probability chunks at least minRunChunks long, returning the chunk
// offset (relative to the current segment's start) of the run's start, or -1
// if no such run exists within the current segment.
func (e *Engine) findNaturalPause(minRunChunks int) int {
	segChunks := len(e.segAudio) / (e.cfg.SampleRate * e.cfg.ChunkDurationMs / 1000)
	if segChunks <= 0 || len(e.probHistory) < segChunks {
		return -1
	}
	window := e.probHistory[len(e.probHistory)-segChunks:]

	run := 0
	for i, p := range window {
		if p < e.threshold.Threshold() {
			run++
			if run >= minRunChunks {
				return i - run + 1
			}
		} else {
			run = 0
		}
	}
	return -1
}

func (e *Engine) pushProbHistory(p float32) {
	e.probHistory = append(e.probHistory, p)
	maxLen := e.cfg.chunksFor(e.cfg.MaxSegmentDurationMs) + e.cfg.chunksFor(e.cfg.PauseThresholdMs) + 8
	if len(e.probHistory) > maxLen {
		e.probHistory = e.probHistory[len(e.probHistory)-maxLen:]
	}
}

// ForceFinalize emits any in-flight SPEECH segment, used on shutdown so a
// speaker caught mid-sentence is not lost.
func (e *Engine) ForceFinalize() (Segment, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateSpeech || len(e.segAudio) == 0 {
		return Segment{}, false
	}
	now := float64(e.chunkIndex) * float64(e.cfg.ChunkDurationMs) / 1000
	seg, ok := e.emitSegment(now, false)
	e.resetToSilence()
	return seg, ok
}

// RecentPauseMs reports how long the speaker has been silent within the
// current in-flight segment, for the Adaptive Draft Controller's pause gate.
func (e *Engine) RecentPauseMs() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recentPauseMs
}

// PeekAudio returns a copy of the in-flight segment's audio so far, without
// disturbing engine state, for a draft ASR job issued mid-segment.
func (e *Engine) PeekAudio() ([]float32, float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateSpeech || len(e.segAudio) == 0 {
		return nil, 0, false
	}
	return append([]float32{}, e.segAudio...), e.segStartSec, true
}

// PendingUUID returns the UUID already assigned to the in-flight segment, if
// any, so a draft ASR job issued mid-segment can be tagged with the same
// UUID the eventual emitted Segment will carry.
func (e *Engine) PendingUUID() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateSpeech {
		return "", false
	}
	return e.segUUID, true
}

// PendingID returns the segment id the in-flight segment will carry when it
// is eventually emitted, so draft jobs and the emitted Segment agree.
func (e *Engine) PendingID() (uint64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateSpeech {
		return 0, false
	}
	return e.nextSegmentID, true
}

// IsSpeaking reports whether the engine is currently inside a SPEECH span.
func (e *Engine) IsSpeaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateSpeech
}

// BufferedDurationMs reports how much audio has accumulated in the in-flight
// segment, for the Adaptive Draft Controller's minimum-audio gate.
func (e *Engine) BufferedDurationMs() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return float64(len(e.segAudio)) / float64(e.cfg.SampleRate) * 1000
}

func rmsOf(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(frame)))
}
