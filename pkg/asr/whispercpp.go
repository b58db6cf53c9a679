// Package asr's local whisper.cpp backend gives draft mode a real beam-size
// knob. It is gated behind the localasr build tag because the bindings
// require CGO and a compiled libwhisper shared library.
//
//go:build localasr

package asr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// WhisperCppProvider runs transcription against a locally loaded whisper.cpp
// model. It is the draft-mode backend: the only provider in the stack that
// exposes BeamSize directly, letting draft calls request beam=1 and final
// calls request beam=5 as the streaming ASR orchestrator requires.
type WhisperCppProvider struct {
	mu        sync.Mutex
	model     whisper.Model
	modelPath string
}

// NewWhisperCppProvider loads a ggml/gguf whisper model from modelPath.
func NewWhisperCppProvider(modelPath string) (*WhisperCppProvider, error) {
	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, &Error{Code: ErrCodeProviderError, Message: "failed to load whisper.cpp model", Err: err}
	}
	return &WhisperCppProvider{model: model, modelPath: modelPath}, nil
}

func (p *WhisperCppProvider) Name() string { return "whisper-cpp-local" }

// Recognize transcribes PCM f32 mono audio at 16kHz. The beam width comes
// from config.EffectiveBeamSize(): 1 for drafts, 5 for finals unless the
// caller overrides it.
func (p *WhisperCppProvider) Recognize(ctx context.Context, audio io.Reader, audioConfig AudioConfig, config RecognitionConfig) (*RecognitionResult, error) {
	samples, err := readPCMFloat32(audio)
	if err != nil {
		return nil, &Error{Code: ErrCodeInvalidAudio, Message: "failed to decode pcm", Err: err}
	}

	beamSize := config.EffectiveBeamSize()

	// Contexts are not thread-safe; the model is. One context per call keeps
	// the provider safe to share across the pipeline's ASR workers.
	p.mu.Lock()
	ctxWhisper, err := p.model.NewContext()
	p.mu.Unlock()
	if err != nil {
		return nil, &Error{Code: ErrCodeProviderError, Message: "failed to create whisper context", Err: err}
	}

	ctxWhisper.SetBeamSize(beamSize)
	if config.Language != "" && config.Language != "auto" {
		if err := ctxWhisper.SetLanguage(config.Language); err != nil {
			return nil, &Error{Code: ErrCodeUnsupportedLanguage, Message: "unsupported language", Err: err}
		}
	}

	if err := ctxWhisper.Process(samples, nil, nil, nil); err != nil {
		select {
		case <-ctx.Done():
			return nil, &Error{Code: ErrCodeNetworkError, Message: "recognition canceled", Err: ctx.Err()}
		default:
		}
		return nil, &Error{Code: ErrCodeProviderError, Message: "whisper.cpp processing failed", Err: err}
	}

	var parts []string
	for {
		segment, err := ctxWhisper.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &Error{Code: ErrCodeProviderError, Message: "failed to read whisper segment", Err: err}
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	return &RecognitionResult{
		Text:       strings.Join(parts, " "),
		Language:   config.Language,
		Confidence: -1,
	}, nil
}

// SupportsWordTimestamps is false: the segment iteration above collects
// text only. The bindings expose token timings, but wiring them is not
// needed while no consumer reads RecognitionResult.Words.
func (p *WhisperCppProvider) SupportsWordTimestamps() bool { return false }

func (p *WhisperCppProvider) SupportedLanguages() []string { return []string{} }

func (p *WhisperCppProvider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

func readPCMFloat32(r io.Reader) ([]float32, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("pcm float32 buffer length %d not a multiple of 4", len(raw))
	}
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		bits := uint32(raw[i*4]) | uint32(raw[i*4+1])<<8 | uint32(raw[i*4+2])<<16 | uint32(raw[i*4+3])<<24
		samples[i] = math.Float32frombits(bits)
	}
	return samples, nil
}
