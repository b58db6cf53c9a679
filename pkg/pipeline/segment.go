// Package pipeline wires Capture, VAD, ASR, Translation, and Output into
// one worker topology: a goroutine per stage (two for ASR), connected by
// fabric.Queue, sharing one Tracker and one Monitor.
package pipeline

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/realtime-ai/speech-translate/pkg/output"
)

// asrJob is the VAD->ASR envelope. A final job carries a completed Speech
// Segment; a draft job carries a cumulative copy of the in-flight segment's
// audio so far, tagged with the id and UUID the segment will eventually be
// emitted with. Draft jobs are not tracked segments: dropping one under
// backpressure loses a provisional result, never a segment.
type asrJob struct {
	isFinal     bool
	segmentID   uint64
	segmentUUID string
	startSec    float64
	endSec      float64 // zero for drafts; the segment hasn't closed yet
	audio       []float32
	confidence  float32
	isPartial   bool
}

// translationJob is the ASR->Translation envelope.
type translationJob struct {
	isFinal     bool
	segmentID   uint64
	segmentUUID string
	startSec    float64
	endSec      float64
	isPartial   bool

	text       string
	confidence float64
	procStart  time.Time // when ASR picked the job up; emission-time processing_ms is measured from here
}

// outputJob is the Translation->Output envelope: a ready-to-emit record
// plus the timing metadata the metrics collector needs.
type outputJob struct {
	record         output.Record
	isFinal        bool
	segmentUUID    string
	segStart       time.Time
	segEnd         time.Time
	stability      float64
	hasTranslation bool
}

// pcmF32LE encodes float32 samples as little-endian PCM bytes, the wire
// format asr.AudioConfig{Encoding: "pcm_f32le"} expects.
func pcmF32LE(samples []float32) []byte {
	buf := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}
	return buf
}
