//go:build !capture

package audio

import "fmt"

// NewDeviceSource fails in builds without the capture tag: the malgo
// device backend needs CGO, so headless/test builds get an explicit
// "unavailable" error instead of a guessed fallback.
func NewDeviceSource(cfg CaptureConfig) (Source, error) {
	return nil, &DeviceUnavailableError{
		Source: cfg.Source,
		Device: cfg.DeviceIndex,
		Reason: "built without the capture tag; use a file source or rebuild with -tags capture",
	}
}

// NormalizeTo16000 passes a 16 kHz source through unchanged; the
// libswresample boundary resampler is only available in capture builds.
func NormalizeTo16000(src Source, cfg CaptureConfig) (Source, error) {
	if cfg.SampleRate == 16000 {
		return src, nil
	}
	return nil, fmt.Errorf("capture at %d Hz requires the boundary resampler; rebuild with -tags capture or capture at 16000 Hz", cfg.SampleRate)
}
