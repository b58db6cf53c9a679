package vad

import (
	"math"
	"sort"
)

// EnvironmentTier classifies the ambient noise floor into the bands the
// adaptive threshold caps against.
type EnvironmentTier int

const (
	EnvQuiet EnvironmentTier = iota
	EnvModerate
	EnvNoisy
	EnvVeryNoisy
)

func (t EnvironmentTier) String() string {
	switch t {
	case EnvQuiet:
		return "QUIET"
	case EnvModerate:
		return "MODERATE"
	case EnvNoisy:
		return "NOISY"
	default:
		return "VERY_NOISY"
	}
}

// tierThresholdCap is the maximum VAD threshold allowed per environment
// tier: quiet rooms can tolerate a higher bar, noisy ones must stay low to
// still catch speech near the floor.
var tierThresholdCap = map[EnvironmentTier]float32{
	EnvQuiet:     0.6,
	EnvModerate:  0.5,
	EnvNoisy:     0.4,
	EnvVeryNoisy: 0.3,
}

// AdaptiveThreshold maintains a rapidly-adapting noise-floor estimate from
// silence-span RMS and derives a speech threshold from it, re-tiering the
// environment with hysteresis so classification doesn't oscillate at tier
// boundaries.
type AdaptiveThreshold struct {
	baseThreshold float32

	noiseFloorDB   float64
	recentSilences []float64 // recent silence-RMS values, most recent last
	fastAdapt      bool

	// slowUpdateRate, set by the calibration-based variant, caps steady-state
	// floor drift to ~0.1% per 100 chunks instead of the plain adaptive
	// variant's faster baseline rate.
	slowUpdateRate bool

	tier EnvironmentTier
}

func NewAdaptiveThreshold(baseThreshold float32, initialNoiseFloorDB float64) *AdaptiveThreshold {
	a := &AdaptiveThreshold{
		baseThreshold: baseThreshold,
		noiseFloorDB:  initialNoiseFloorDB,
	}
	a.tier = a.classify(a.noiseFloorDB)
	return a
}

// ObserveSilenceChunk records one silence-span RMS sample. The noise floor is
// re-estimated from the 10th percentile of recent samples; an abrupt >=10dB
// shift over the recent window switches to fast-adaptation (converges within
// 1-2s), otherwise adaptation proceeds slowly.
func (a *AdaptiveThreshold) ObserveSilenceChunk(rms float64) {
	db := rmsToDB(rms)

	a.recentSilences = append(a.recentSilences, db)
	const window = 64
	if len(a.recentSilences) > window {
		a.recentSilences = a.recentSilences[len(a.recentSilences)-window:]
	}
	if len(a.recentSilences) < 3 {
		return
	}

	p10 := percentile(a.recentSilences, 10)

	shift := math.Abs(p10 - a.noiseFloorDB)
	a.fastAdapt = shift >= 10

	rate := 0.02
	if a.slowUpdateRate {
		rate = 0.00001
	}
	if a.fastAdapt {
		rate = 0.5
	}
	a.noiseFloorDB = a.noiseFloorDB + rate*(p10-a.noiseFloorDB)

	newTier := a.classify(a.noiseFloorDB)
	if newTier != a.tier {
		// Hysteresis: only move one tier at a time per observation so a
		// single noisy chunk can't jump QUIET straight to VERY_NOISY.
		if newTier > a.tier {
			a.tier++
		} else {
			a.tier--
		}
	}
}

// Threshold returns the current VAD threshold, capped by the environment
// tier's ceiling.
func (a *AdaptiveThreshold) Threshold() float32 {
	ceiling := tierThresholdCap[a.tier]
	if a.baseThreshold > ceiling {
		return ceiling
	}
	return a.baseThreshold
}

// Tier reports the current environment classification, for metrics/logging.
func (a *AdaptiveThreshold) Tier() EnvironmentTier { return a.tier }

// NoiseFloorDB reports the current estimated noise floor in dBFS.
func (a *AdaptiveThreshold) NoiseFloorDB() float64 { return a.noiseFloorDB }

func (a *AdaptiveThreshold) classify(db float64) EnvironmentTier {
	switch {
	case db < -50:
		return EnvQuiet
	case db < -35:
		return EnvModerate
	case db < -20:
		return EnvNoisy
	default:
		return EnvVeryNoisy
	}
}

// NewAdaptiveEngine builds an Engine whose threshold tracks ambient noise
// via AdaptiveThreshold instead of a fixed value.
func NewAdaptiveEngine(detector DetectorInterface, cfg EngineConfig, initialNoiseFloorDB float64) *Engine {
	return newEngineWithThreshold(detector, cfg, NewAdaptiveThreshold(cfg.Threshold, initialNoiseFloorDB))
}

func rmsToDB(rms float64) float64 {
	if rms <= 0 {
		return -120
	}
	return 20 * math.Log10(rms)
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64{}, values...)
	sort.Float64s(sorted)
	idx := int(float64(len(sorted)-1) * p / 100)
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
