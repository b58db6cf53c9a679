package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ramp builds a frame of strictly increasing sample values starting at
// base, so tests can assert chronological ordering across wraps.
func ramp(base float32, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = base + float32(i)
	}
	return out
}

func TestRingBuffer_CapacityFollowsPadDuration(t *testing.T) {
	rb := NewRingBuffer(16000, 450) // the default speech_pad_ms
	assert.Equal(t, 7200, rb.Cap())
	assert.Zero(t, rb.Len())
}

func TestRingBuffer_PartialFillReadsBackInOrder(t *testing.T) {
	rb := NewRingBuffer(16000, 30) // one 480-sample chunk
	rb.Write(ramp(1, 100))

	got := rb.ReadAll()
	require.Len(t, got, 100)
	assert.Equal(t, float32(1), got[0])
	assert.Equal(t, float32(100), got[99])
	assert.Equal(t, 100, rb.Len())
}

func TestRingBuffer_OverwriteKeepsNewestPadWindow(t *testing.T) {
	rb := NewRingBuffer(1000, 10) // 10 samples
	rb.Write(ramp(1, 10))
	rb.Write(ramp(100, 5)) // evicts the 5 oldest

	got := rb.ReadAll()
	require.Len(t, got, 10)
	assert.Equal(t, float32(6), got[0], "oldest surviving sample")
	assert.Equal(t, float32(104), got[9], "newest sample")
}

func TestRingBuffer_FrameLargerThanRingKeepsItsTail(t *testing.T) {
	rb := NewRingBuffer(1000, 10)
	rb.Write(ramp(1, 25))

	got := rb.ReadAll()
	require.Len(t, got, 10)
	assert.Equal(t, float32(16), got[0])
	assert.Equal(t, float32(25), got[9])
}

func TestRingBuffer_WrapAcrossManySmallFrames(t *testing.T) {
	// Frames stream in 30ms-chunk style: many small writes that repeatedly
	// wrap the ring. The read must always be the newest window, in order.
	rb := NewRingBuffer(1000, 10)
	for i := 0; i < 7; i++ {
		rb.Write(ramp(float32(i*3), 3))
	}

	got := rb.ReadAll()
	require.Len(t, got, 10)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i], got[i-1], "samples must stay chronological across wraps")
	}
	assert.Equal(t, float32(20), got[9])
}

func TestRingBuffer_ReadAllDoesNotDrain(t *testing.T) {
	rb := NewRingBuffer(1000, 10)
	rb.Write(ramp(1, 4))

	first := rb.ReadAll()
	second := rb.ReadAll()
	assert.Equal(t, first, second, "the pad window is read, not consumed")
}

func TestRingBuffer_ClearEmptiesWithoutReallocating(t *testing.T) {
	rb := NewRingBuffer(1000, 10)
	rb.Write(ramp(1, 10))
	rb.Clear()

	assert.Zero(t, rb.Len())
	assert.Nil(t, rb.ReadAll())
	assert.Equal(t, 10, rb.Cap())

	rb.Write(ramp(50, 2))
	assert.Equal(t, []float32{50, 51}, rb.ReadAll())
}

func TestRingBuffer_EmptyWriteIsANoOp(t *testing.T) {
	rb := NewRingBuffer(1000, 10)
	rb.Write(nil)
	assert.Zero(t, rb.Len())
	assert.Nil(t, rb.ReadAll())
}
