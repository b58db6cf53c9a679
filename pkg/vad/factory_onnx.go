//go:build vad

package vad

// NewRuntimeDetector returns the Silero ONNX detector when the module is
// built with the vad tag.
func NewRuntimeDetector(modelPath string, sampleRate int) (DetectorInterface, error) {
	return NewSileroDetector(SileroConfig{ModelPath: modelPath, SampleRate: sampleRate})
}
