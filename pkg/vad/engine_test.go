package vad

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frameOf(samples int, amplitude float32) []float32 {
	f := make([]float32, samples)
	for i := range f {
		f[i] = amplitude
	}
	return f
}

func TestEngine_SilentInputEmitsNoSegments(t *testing.T) {
	detector := NewMockDetectorWithProb(0.0)
	cfg := DefaultEngineConfig()
	e := NewEngine(detector, cfg)

	frame := frameOf(cfg.SampleRate*cfg.ChunkDurationMs/1000, 0)
	for i := 0; i < 300; i++ { // 9s of zeros
		segs, err := e.ProcessFrame(frame)
		require.NoError(t, err)
		assert.Empty(t, segs)
	}
}

func TestEngine_SingleUtteranceEmitsOneFinal(t *testing.T) {
	cfg := DefaultEngineConfig()
	chunkSamples := cfg.SampleRate * cfg.ChunkDurationMs / 1000

	speechChunks := 2500 / cfg.ChunkDurationMs
	silenceChunks := cfg.chunksFor(cfg.MinSilenceDurationMs) + 2

	probs := make([]float32, 0, speechChunks+silenceChunks)
	for i := 0; i < speechChunks; i++ {
		probs = append(probs, 0.9)
	}
	for i := 0; i < silenceChunks; i++ {
		probs = append(probs, 0.05)
	}

	detector := NewMockDetectorWithSequence(probs)
	e := NewEngine(detector, cfg)

	var emitted []Segment
	frame := frameOf(chunkSamples, 0.2)
	for i := 0; i < len(probs); i++ {
		segs, err := e.ProcessFrame(frame)
		require.NoError(t, err)
		emitted = append(emitted, segs...)
	}

	require.Len(t, emitted, 1)
	assert.False(t, emitted[0].IsPartial)
	assert.Greater(t, emitted[0].DurationMs(), 0.0)
}

func TestEngine_ForcedSplitProducesPartials(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.MaxSegmentDurationMs = 4000
	chunkSamples := cfg.SampleRate * cfg.ChunkDurationMs / 1000

	detector := NewMockDetectorWithProb(0.9)
	e := NewEngine(detector, cfg)

	var emitted []Segment
	frame := frameOf(chunkSamples, 0.2)
	for i := 0; i < 400; i++ { // 12s of continuous speech
		segs, err := e.ProcessFrame(frame)
		require.NoError(t, err)
		emitted = append(emitted, segs...)
	}

	require.GreaterOrEqual(t, len(emitted), 2)
	for _, seg := range emitted {
		assert.True(t, seg.IsPartial)
		assert.LessOrEqual(t, seg.DurationMs(), float64(cfg.MaxSegmentDurationMs)+float64(cfg.ChunkDurationMs))
	}
}

func TestEngine_ForceFinalizeFlushesInFlightSegment(t *testing.T) {
	cfg := DefaultEngineConfig()
	chunkSamples := cfg.SampleRate * cfg.ChunkDurationMs / 1000
	detector := NewMockDetectorWithProb(0.9)
	e := NewEngine(detector, cfg)

	frame := frameOf(chunkSamples, 0.2)
	for i := 0; i < cfg.chunksFor(cfg.MinSpeechDurationMs)+5; i++ {
		_, err := e.ProcessFrame(frame)
		require.NoError(t, err)
	}
	assert.True(t, e.IsSpeaking())

	seg, ok := e.ForceFinalize()
	require.True(t, ok)
	assert.False(t, e.IsSpeaking())
	assert.Greater(t, len(seg.Audio), 0)
}

func TestEngine_ZeroPadsShortFrames(t *testing.T) {
	cfg := DefaultEngineConfig()
	detector := NewMockDetectorWithProb(0.1)
	e := NewEngine(detector, cfg)

	_, err := e.ProcessFrame([]float32{0.1, 0.2})
	require.NoError(t, err)
	require.Equal(t, 1, detector.FrameCount())
	assert.GreaterOrEqual(t, detector.FrameSize(0), 512)
}
