package vad

// CalibrationPhase is the strictly-forward state machine calibration walks
// through: collect ambient RMS for a startup window, derive a noise floor
// and starting threshold from it, then behave like the adaptive variant
// with a slow floor update.
type CalibrationPhase int

const (
	CalibrationNotStarted CalibrationPhase = iota
	CalibrationCalibrating
	CalibrationCalibrated
	CalibrationDetecting
)

// CalibratingThreshold collects per-chunk RMS for a fixed startup window
// (not running the segmentation state machine during that window), derives
// a threshold from the 10th-percentile noise floor via a piecewise
// function of the floor in dB, then behaves like AdaptiveThreshold but
// with a slower steady-state update rate.
type CalibratingThreshold struct {
	minChunks int
	maxChunks int

	phase      CalibrationPhase
	rmsSamples []float64

	derived *AdaptiveThreshold
}

// NewCalibratingThreshold builds a calibration-based threshold source.
// chunkDurationMs and calibrationMs determine the minimum number of chunks
// collected before calibration can complete (at least minChunks, default 10,
// and a safety cap so a silent room can't calibrate forever).
func NewCalibratingThreshold(chunkDurationMs, calibrationMs int) *CalibratingThreshold {
	minChunks := calibrationMs / chunkDurationMs
	if minChunks < 10 {
		minChunks = 10
	}
	return &CalibratingThreshold{
		minChunks: minChunks,
		maxChunks: minChunks * 10,
		phase:     CalibrationNotStarted,
	}
}

func (c *CalibratingThreshold) Phase() CalibrationPhase { return c.phase }

// Threshold returns a conservative default while calibrating (never gates
// out real speech before the floor is known), then the calibrated value
// once complete.
func (c *CalibratingThreshold) Threshold() float32 {
	if c.derived != nil {
		return c.derived.Threshold()
	}
	return 0.5
}

// ObserveSilenceChunk is called for every chunk during calibration (the
// segmentation state machine is not run yet, so every chunk counts as an
// RMS sample) and, after calibration, for silence-span chunks only, exactly
// like AdaptiveThreshold.
func (c *CalibratingThreshold) ObserveSilenceChunk(rms float64) {
	switch c.phase {
	case CalibrationNotStarted:
		c.phase = CalibrationCalibrating
		c.rmsSamples = append(c.rmsSamples, rms)
	case CalibrationCalibrating:
		c.rmsSamples = append(c.rmsSamples, rms)
		if len(c.rmsSamples) >= c.minChunks || len(c.rmsSamples) >= c.maxChunks {
			c.complete()
		}
	case CalibrationCalibrated, CalibrationDetecting:
		c.phase = CalibrationDetecting
		c.derived.ObserveSilenceChunk(rms)
	}
}

func (c *CalibratingThreshold) complete() {
	dbSamples := make([]float64, len(c.rmsSamples))
	for i, r := range c.rmsSamples {
		dbSamples[i] = rmsToDB(r)
	}
	noiseFloorDB := percentile(dbSamples, 10)

	startThreshold := startingThresholdFor(noiseFloorDB)
	c.derived = NewAdaptiveThreshold(startThreshold, noiseFloorDB)
	c.derived.slowUpdateRate = true
	c.phase = CalibrationCalibrated
}

// startingThresholdFor maps a noise floor in dB onto a starting VAD
// threshold: the quieter the room, the lower the bar speech has to clear.
func startingThresholdFor(noiseFloorDB float64) float32 {
	switch {
	case noiseFloorDB < -60:
		return 0.35
	case noiseFloorDB < -50:
		return 0.40
	case noiseFloorDB < -40:
		return 0.45
	case noiseFloorDB < -30:
		return 0.50
	default:
		return 0.55
	}
}

// IsDone reports whether the collection window has closed (threshold has
// been derived), regardless of whether silence has been observed since.
func (c *CalibratingThreshold) IsDone() bool {
	return c.phase == CalibrationCalibrated || c.phase == CalibrationDetecting
}

// NewCalibratingEngine builds an Engine whose first calibrationMs of frames
// (the config default is 3s; at least 10 chunks) are spent calibrating a
// noise floor and starting threshold rather than running the segmentation
// state machine against caller-supplied defaults. Callers route all frames
// through ProcessFrame as usual: until calibration completes, ProcessFrame
// hands every chunk's RMS to the CalibratingThreshold and skips the state
// machine; afterwards only silence-state chunks update the floor.
func NewCalibratingEngine(detector DetectorInterface, cfg EngineConfig, calibrationMs int) *Engine {
	return newEngineWithThreshold(detector, cfg, NewCalibratingThreshold(cfg.ChunkDurationMs, calibrationMs))
}
