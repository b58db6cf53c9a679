package vad

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartingThresholdPiecewise(t *testing.T) {
	cases := []struct {
		floorDB float64
		want    float32
	}{
		{-70, 0.35},
		{-55, 0.40},
		{-45, 0.45},
		{-35, 0.50},
		{-10, 0.55},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, startingThresholdFor(c.floorDB), "floor %v dB", c.floorDB)
	}
}

func TestAdaptiveThreshold_TierCapsThreshold(t *testing.T) {
	a := NewAdaptiveThreshold(0.7, -60) // QUIET
	assert.Equal(t, float32(0.6), a.Threshold(), "quiet tier caps at 0.6")

	noisy := NewAdaptiveThreshold(0.7, -25) // NOISY
	assert.Equal(t, float32(0.4), noisy.Threshold())
}

func TestAdaptiveThreshold_TierMovesOneStepAtATime(t *testing.T) {
	a := NewAdaptiveThreshold(0.5, -60)
	require.Equal(t, EnvQuiet, a.Tier())

	// Sustained loud ambient: the floor estimate climbs, but the tier walks
	// up one band per observation instead of jumping.
	loudRMS := math.Pow(10, -15.0/20)
	for i := 0; i < 200 && a.Tier() != EnvVeryNoisy; i++ {
		a.ObserveSilenceChunk(loudRMS)
	}
	assert.Equal(t, EnvVeryNoisy, a.Tier())
}

func TestCalibratingThreshold_DerivesFromNoiseFloor(t *testing.T) {
	c := NewCalibratingThreshold(30, 300) // floor of 10 chunks applies

	assert.Equal(t, float32(0.5), c.Threshold(), "conservative default while calibrating")

	quietRMS := math.Pow(10, -55.0/20)
	for i := 0; i < 10; i++ {
		require.False(t, c.IsDone())
		c.ObserveSilenceChunk(quietRMS)
	}
	require.True(t, c.IsDone())
	assert.Equal(t, float32(0.40), c.Threshold(), "-55 dB floor maps to 0.40")
}

func TestCalibratingThreshold_PhaseIsStrictlyForward(t *testing.T) {
	c := NewCalibratingThreshold(30, 300)
	assert.Equal(t, CalibrationNotStarted, c.Phase())

	c.ObserveSilenceChunk(0.001)
	assert.Equal(t, CalibrationCalibrating, c.Phase())

	for i := 0; i < 9; i++ {
		c.ObserveSilenceChunk(0.001)
	}
	assert.Equal(t, CalibrationCalibrated, c.Phase())

	c.ObserveSilenceChunk(0.001)
	assert.Equal(t, CalibrationDetecting, c.Phase())
}

func TestEnergyDetector_RampsWithLevel(t *testing.T) {
	d := NewEnergyDetector()

	silent, err := d.Infer(make([]float32, 480))
	require.NoError(t, err)
	assert.Zero(t, silent)

	loud, err := d.Infer(frameOf(480, 0.5))
	require.NoError(t, err)
	assert.Equal(t, float32(1), loud)

	mid, err := d.Infer(frameOf(480, 0.02)) // ~-34 dBFS
	require.NoError(t, err)
	assert.Greater(t, mid, float32(0))
	assert.Less(t, mid, float32(1))
}
