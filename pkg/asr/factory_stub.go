//go:build !localasr

package asr

// NewLocalProvider fails in builds without the localasr tag: the
// whisper.cpp bindings need CGO and a compiled libwhisper.
func NewLocalProvider(modelPath string) (Provider, error) {
	return nil, &Error{
		Code:    ErrCodeUnsupportedFeature,
		Message: "local whisper.cpp provider requires building with -tags localasr",
	}
}
