package vad

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockDetector_ZeroValueIsSilence(t *testing.T) {
	m := NewMockDetector()
	prob, err := m.Infer(frameOf(480, 0.3))
	require.NoError(t, err)
	assert.Zero(t, prob, "an unscripted mock reads every frame as silence")
}

func TestMockDetector_FixedProbability(t *testing.T) {
	m := NewMockDetectorWithProb(0.9)
	for i := 0; i < 5; i++ {
		prob, err := m.Infer(frameOf(480, 0))
		require.NoError(t, err)
		assert.Equal(t, float32(0.9), prob)
	}
	assert.Equal(t, 5, m.FrameCount())
}

func TestMockDetector_SequenceHoldsLastValue(t *testing.T) {
	// A scripted utterance envelope: silence, speech, silence. Frames past
	// the script's end must hold the final value, never wrap back into the
	// speech span; wrapping would conjure a phantom second utterance.
	m := NewMockDetectorWithSequence([]float32{0.1, 0.9, 0.2})

	want := []float32{0.1, 0.9, 0.2, 0.2, 0.2}
	for i, expected := range want {
		prob, err := m.Infer(frameOf(480, 0))
		require.NoError(t, err)
		assert.Equal(t, expected, prob, "frame %d", i)
	}
}

func TestMockDetector_EmptySequence(t *testing.T) {
	m := NewMockDetectorWithSequence(nil)
	prob, err := m.Infer(frameOf(480, 0))
	require.NoError(t, err)
	assert.Zero(t, prob)
}

func TestMockDetector_ScriptErrorsPropagate(t *testing.T) {
	boom := errors.New("model exploded")
	m := &MockDetector{Script: func(int, []float32) (float32, error) { return 0, boom }}

	_, err := m.Infer(frameOf(480, 0))
	assert.ErrorIs(t, err, boom)
}

func TestMockDetector_ResetRestartsTheScript(t *testing.T) {
	m := NewMockDetectorWithSequence([]float32{0.9, 0.1})

	first, err := m.Infer(frameOf(480, 0))
	require.NoError(t, err)
	require.Equal(t, float32(0.9), first)

	require.NoError(t, m.Reset())
	assert.Equal(t, 1, m.ResetCount())

	again, err := m.Infer(frameOf(480, 0))
	require.NoError(t, err)
	assert.Equal(t, float32(0.9), again, "a reset stream replays from the script's start")
}

func TestMockDetector_RecordsFrameSizes(t *testing.T) {
	m := NewMockDetector()
	_, err := m.Infer(frameOf(512, 0))
	require.NoError(t, err)
	_, err = m.Infer(frameOf(480, 0))
	require.NoError(t, err)

	assert.Equal(t, 512, m.FrameSize(0))
	assert.Equal(t, 480, m.FrameSize(1))
	assert.Zero(t, m.FrameSize(99), "out-of-range index reads as zero")
}

func TestMockDetector_Destroy(t *testing.T) {
	m := NewMockDetector()
	require.NoError(t, m.Destroy())
	assert.True(t, m.Destroyed())
}
