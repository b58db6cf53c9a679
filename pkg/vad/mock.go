package vad

import "sync"

// MockDetector is the test double behind DetectorInterface: engine tests
// script a probability envelope (rise above the threshold, hold, fall)
// and assert which Segments the state machine emits, without any model.
//
// The zero value scores every frame 0.0 (silence). Frame sizes are
// recorded so tests can verify the engine's zero-padding of short frames.
type MockDetector struct {
	mu sync.Mutex

	// Script, if set, is invoked with the 0-based frame index and the
	// frame itself and returns that frame's speech probability.
	Script func(frame int, samples []float32) (float32, error)

	frames     int
	frameSizes []int
	resets     int
	destroyed  bool
}

// NewMockDetector scores every frame as silence.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// NewMockDetectorWithProb scores every frame with one fixed probability,
// enough for "all silence" and "endless speech" scenarios like the
// forced-split tests.
func NewMockDetectorWithProb(prob float32) *MockDetector {
	return &MockDetector{
		Script: func(int, []float32) (float32, error) { return prob, nil },
	}
}

// NewMockDetectorWithSequence plays back one probability per frame in
// order: the scripted envelope of an utterance. Frames past the end of
// the script hold the last value, so trailing audio reads as a
// continuation rather than wrapping back into scripted speech.
func NewMockDetectorWithSequence(probs []float32) *MockDetector {
	return &MockDetector{
		Script: func(frame int, _ []float32) (float32, error) {
			if len(probs) == 0 {
				return 0, nil
			}
			if frame >= len(probs) {
				frame = len(probs) - 1
			}
			return probs[frame], nil
		},
	}
}

func (m *MockDetector) Infer(samples []float32) (float32, error) {
	m.mu.Lock()
	frame := m.frames
	m.frames++
	m.frameSizes = append(m.frameSizes, len(samples))
	script := m.Script
	m.mu.Unlock()

	if script == nil {
		return 0, nil
	}
	return script(frame, samples)
}

func (m *MockDetector) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
	m.frames = 0
	return nil
}

func (m *MockDetector) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destroyed = true
	return nil
}

// FrameCount reports how many frames the engine has scored since the last
// Reset.
func (m *MockDetector) FrameCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

// FrameSize reports the sample count of the i-th scored frame, for
// asserting the engine's zero-padding of short frames.
func (m *MockDetector) FrameSize(i int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.frameSizes) {
		return 0
	}
	return m.frameSizes[i]
}

// ResetCount reports how many times the engine reset the detector.
func (m *MockDetector) ResetCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}

// Destroyed reports whether Destroy was called.
func (m *MockDetector) Destroyed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.destroyed
}

var _ DetectorInterface = (*MockDetector)(nil)
