// Package audio provides the capture sources and sample buffers the
// pipeline's audio boundary is built from.
package audio

import "sync"

// RingBuffer retains the most recent span of mono f32 samples, discarding
// the oldest as new frames arrive. Its one job in the pipeline is the
// VAD's pre-speech lookback: the engine writes every frame into a ring
// sized to speech_pad_ms, and on a SILENCE-to-SPEECH transition prepends
// ReadAll() to the new segment so sentence onsets are not clipped.
//
// Writes never allocate once constructed. Safe for concurrent use, though
// the VAD worker is its only writer in practice.
type RingBuffer struct {
	mu       sync.Mutex
	samples  []float32
	writePos int
	size     int
}

// NewRingBuffer sizes a ring to hold durationMs of audio at sampleRate;
// e.g. NewRingBuffer(16000, 450) keeps the 450ms of speech padding the
// segmentation defaults call for.
func NewRingBuffer(sampleRate, durationMs int) *RingBuffer {
	capacity := sampleRate * durationMs / 1000
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{samples: make([]float32, capacity)}
}

// Write appends one frame, overwriting the oldest samples once the ring
// is full.
func (rb *RingBuffer) Write(frame []float32) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := len(frame)
	if n == 0 {
		return
	}
	capacity := len(rb.samples)

	// A frame longer than the whole ring reduces to its tail.
	if n >= capacity {
		copy(rb.samples, frame[n-capacity:])
		rb.writePos = 0
		rb.size = capacity
		return
	}

	tail := capacity - rb.writePos
	if n <= tail {
		copy(rb.samples[rb.writePos:], frame)
		rb.writePos = (rb.writePos + n) % capacity
	} else {
		copy(rb.samples[rb.writePos:], frame[:tail])
		copy(rb.samples, frame[tail:])
		rb.writePos = n - tail
	}

	rb.size += n
	if rb.size > capacity {
		rb.size = capacity
	}
}

// ReadAll returns the buffered samples oldest-first, leaving the ring
// intact. The engine copies this into a fresh segment, so the returned
// slice is always newly allocated.
func (rb *RingBuffer) ReadAll() []float32 {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.size == 0 {
		return nil
	}

	out := make([]float32, rb.size)
	if rb.size < len(rb.samples) {
		copy(out, rb.samples[:rb.size])
		return out
	}

	// Full ring: the oldest sample sits at writePos.
	n := copy(out, rb.samples[rb.writePos:])
	copy(out[n:], rb.samples[:rb.writePos])
	return out
}

// Clear empties the ring without releasing its storage.
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.writePos = 0
	rb.size = 0
}

// Len reports the buffered sample count, at most Cap.
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.size
}

// Cap reports the ring's fixed capacity in samples.
func (rb *RingBuffer) Cap() int {
	return len(rb.samples)
}
