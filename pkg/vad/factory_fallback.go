//go:build !vad

package vad

// NewRuntimeDetector returns the energy-based fallback detector in builds
// without the vad tag, so the module compiles and runs without the ONNX
// Runtime shared library. The modelPath and sampleRate arguments are
// accepted for signature parity with the tagged build and ignored.
func NewRuntimeDetector(modelPath string, sampleRate int) (DetectorInterface, error) {
	return NewEnergyDetector(), nil
}
