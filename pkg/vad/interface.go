package vad

// DetectorInterface is the speech-probability estimator the segmentation
// engine consults once per audio frame. It isolates the state machine from
// any particular backend: the Silero ONNX model (vad build tag), the
// energy-based fallback, or a scripted mock in tests.
//
// Implementations may carry state across calls (the Silero LSTM does);
// each detector therefore belongs to exactly one Engine, matching the
// engine's own single-owner contract.
type DetectorInterface interface {
	// Infer scores one frame of normalized mono samples in [-1, 1] and
	// returns the probability in [0, 1] that the frame contains speech.
	// Frames arrive pre-padded to the model minimum of max(512,
	// sample_rate x 0.03) samples.
	Infer(samples []float32) (float32, error)

	// Reset clears carried state for a fresh audio stream; called between
	// capture sessions, not between segments.
	Reset() error

	// Destroy releases backend resources. The detector is unusable after.
	Destroy() error
}
