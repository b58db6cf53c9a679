//go:build localasr

package asr

// NewLocalProvider returns the whisper.cpp-backed provider when the module
// is built with the localasr tag.
func NewLocalProvider(modelPath string) (Provider, error) {
	return NewWhisperCppProvider(modelPath)
}
