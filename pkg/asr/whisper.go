package asr

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// WhisperProvider recognizes speech through OpenAI's hosted Whisper API.
// It is the final-mode backend of choice: network round-trip latency is
// acceptable once per segment, and the hosted large model beats local
// quantized models on accuracy. The API exposes no beam-width control, so
// draft calls run on the same configured model as finals, at the API's
// default temperature unless one is set; RecognitionConfig.BeamSize is
// accepted and ignored.
type WhisperProvider struct {
	client *openai.Client
	mu     sync.RWMutex
}

// NewWhisperProvider builds a provider against the given API key, honoring
// OPENAI_BASE_URL for proxied deployments.
func NewWhisperProvider(apiKey string) (*WhisperProvider, error) {
	if apiKey == "" {
		return nil, &Error{
			Code:    ErrCodeInvalidConfig,
			Message: "OpenAI API key is required",
		}
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		clientConfig.BaseURL = baseURL
		log.Printf("[whisper] using base URL %s", clientConfig.BaseURL)
	}

	return &WhisperProvider{client: openai.NewClientWithConfig(clientConfig)}, nil
}

func (w *WhisperProvider) Name() string { return "openai-whisper" }

// Recognize transcribes one segment buffer. Raw PCM input is wrapped in a
// WAV container first (the API only accepts standard file formats) with
// the format code chosen per encoding (integer PCM vs IEEE float).
func (w *WhisperProvider) Recognize(ctx context.Context, audio io.Reader, audioConfig AudioConfig, config RecognitionConfig) (*RecognitionResult, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	pcm, err := io.ReadAll(audio)
	if err != nil {
		return nil, &Error{Code: ErrCodeInvalidAudio, Message: "failed to read audio data", Err: err}
	}
	if len(pcm) == 0 {
		return nil, &Error{Code: ErrCodeInvalidAudio, Message: "audio data is empty"}
	}

	payload := pcm
	if isRawPCM(audioConfig.Encoding) {
		payload, err = wavFromPCM(pcm, audioConfig)
		if err != nil {
			return nil, &Error{Code: ErrCodeInvalidAudio, Message: "failed to wrap PCM as WAV", Err: err}
		}
	}

	req := openai.AudioRequest{
		Model:    config.Model,
		FilePath: "segment.wav", // filename hint only; data comes from Reader
		Reader:   bytes.NewReader(payload),
		Prompt:   config.Prompt,
	}
	if req.Model == "" {
		req.Model = openai.Whisper1
	}
	if config.Language != "" && config.Language != "auto" {
		req.Language = config.Language
	}
	if config.Temperature > 0 {
		req.Temperature = config.Temperature
	}

	start := time.Now()
	resp, err := w.client.CreateTranscription(ctx, req)
	if err != nil {
		return nil, &Error{Code: ErrCodeProviderError, Message: "Whisper API request failed", Err: err}
	}

	return &RecognitionResult{
		Text:       resp.Text,
		Language:   config.Language,
		Confidence: -1, // the transcription endpoint reports no confidence
		Duration:   time.Since(start),
		Timestamp:  time.Now(),
	}, nil
}

// SupportsWordTimestamps is false in basic transcription mode; word-level
// timings need the verbose_json response format, which this provider does
// not request.
func (w *WhisperProvider) SupportsWordTimestamps() bool { return false }

// SupportedLanguages is empty: Whisper handles 99+ languages and the
// pipeline passes codes through unchecked.
func (w *WhisperProvider) SupportedLanguages() []string { return []string{} }

func (w *WhisperProvider) Close() error { return nil }

func isRawPCM(encoding string) bool {
	switch encoding {
	case "", "pcm", "pcm_s16le", "pcm_f32le":
		return true
	}
	return false
}

const (
	wavFormatPCM       = 1 // integer PCM
	wavFormatIEEEFloat = 3
)

// wavFromPCM prefixes raw PCM with a canonical 44-byte WAV header. The f32
// pipeline format maps to the IEEE-float format code; 16-bit capture data
// maps to integer PCM.
func wavFromPCM(pcm []byte, cfg AudioConfig) ([]byte, error) {
	if cfg.SampleRate <= 0 || cfg.Channels <= 0 {
		return nil, fmt.Errorf("wav header needs a positive sample rate and channel count, got %d/%d", cfg.SampleRate, cfg.Channels)
	}

	bits := cfg.BitsPerSample
	if bits == 0 {
		bits = 16
	}
	format := uint16(wavFormatPCM)
	if cfg.Encoding == "pcm_f32le" || bits == 32 {
		format = wavFormatIEEEFloat
	}

	blockAlign := cfg.Channels * bits / 8
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16)) // fmt chunk size
	binary.Write(&buf, binary.LittleEndian, format)
	binary.Write(&buf, binary.LittleEndian, uint16(cfg.Channels))
	binary.Write(&buf, binary.LittleEndian, uint32(cfg.SampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(cfg.SampleRate*blockAlign)) // byte rate
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bits))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes(), nil
}
