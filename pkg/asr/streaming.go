package asr

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// StreamingConfig configures a StreamingSession.
type StreamingConfig struct {
	Audio         AudioConfig
	Language      string
	DraftBeamSize int // whisper.cpp only; ignored by providers without beam control
	FinalBeamSize int

	DedupSimilarityThreshold float64 // default 0.8, per the UI dedup contract
	PostProcess              PostProcessConfig
}

func DefaultStreamingConfig() StreamingConfig {
	return StreamingConfig{
		Audio:                    AudioConfig{SampleRate: 16000, Channels: 1, Encoding: "pcm_f32le", BitsPerSample: 32},
		Language:                 "en",
		DraftBeamSize:            1,
		FinalBeamSize:            5,
		DedupSimilarityThreshold: 0.8,
		PostProcess:              DefaultPostProcessConfig(),
	}
}

// DraftOutput is what the orchestrator returns after a draft recognition pass:
// the cleaned text plus the UI-facing delta against the previous draft.
type DraftOutput struct {
	Result      PostProcessResult
	Delta       TextDelta
	DisplayText string
	RawASRText  string
	Confidence  float32
}

// FinalOutput is returned once a segment closes.
type FinalOutput struct {
	Result     PostProcessResult
	RawASRText string
	Confidence float32
	Duration   time.Duration
}

// StreamingSession accumulates audio for a single Speech Segment and runs the
// draft/final two-mode recognition described by the streaming ASR component:
// drafts transcribe the cumulative buffer from segment start to now and are
// not additive, finals transcribe the whole segment once at close and reset
// all per-segment state.
type StreamingSession struct {
	provider Provider
	cfg      StreamingConfig
	post     *ASRPostProcessor

	mu            sync.Mutex
	buffer        bytes.Buffer
	previousDraft string
}

func NewStreamingSession(provider Provider, cfg StreamingConfig) *StreamingSession {
	return &StreamingSession{
		provider: provider,
		cfg:      cfg,
		post:     NewASRPostProcessor(cfg.PostProcess),
	}
}

// AppendAudio adds newly captured PCM bytes to the segment's cumulative buffer.
func (s *StreamingSession) AppendAudio(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer.Write(data)
}

// SetAudio replaces the cumulative buffer outright, for callers that carry
// the full audio-so-far on each job (the VAD hands draft jobs a cumulative
// copy rather than a delta).
func (s *StreamingSession) SetAudio(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer.Reset()
	s.buffer.Write(data)
}

// Draft runs a draft recognition pass over the cumulative buffer so far.
// Each call replaces the previous draft's text rather than appending to it;
// the previous-draft text is retained only to compute the UI delta.
func (s *StreamingSession) Draft(ctx context.Context) (DraftOutput, error) {
	s.mu.Lock()
	audio := bytes.NewReader(s.buffer.Bytes())
	previous := s.previousDraft
	s.mu.Unlock()

	if audio.Len() == 0 {
		return DraftOutput{}, fmt.Errorf("draft requested with empty audio buffer")
	}

	recCfg := RecognitionConfig{
		Language:    s.cfg.Language,
		Mode:        ModeDraft,
		BeamSize:    s.cfg.DraftBeamSize,
		Temperature: 0,
	}

	result, err := s.provider.Recognize(ctx, audio, s.cfg.Audio, recCfg)
	if err != nil {
		return DraftOutput{}, fmt.Errorf("draft recognition failed: %w", err)
	}

	processed := s.post.Process(result.Text, usableConfidence(result.Confidence))

	delta := DiffWords(previous, processed.CleanedText)
	display := processed.CleanedText
	// Compaction gates on how much of the previous draft the longest
	// matching block covers, not on an overall similarity score: appending
	// words to a stable prefix must compact no matter how much new text
	// arrived. An identical redraft compacts to the bare marker.
	if previous != "" && delta.StableRatio >= s.cfg.DedupSimilarityThreshold {
		display = strings.TrimSpace("..." + delta.ChangedText)
	}

	s.mu.Lock()
	s.previousDraft = processed.CleanedText
	s.mu.Unlock()

	return DraftOutput{
		Result:      processed,
		Delta:       delta,
		DisplayText: display,
		RawASRText:  result.Text,
		Confidence:  result.Confidence,
	}, nil
}

// Final runs the full-beam recognition pass over the whole segment, then
// clears the cumulative buffer and previous-draft state so the session is
// ready for reuse on the next segment (or should be discarded; callers
// typically allocate one StreamingSession per segment and drop it here).
func (s *StreamingSession) Final(ctx context.Context) (FinalOutput, error) {
	start := time.Now()

	s.mu.Lock()
	audio := bytes.NewReader(s.buffer.Bytes())
	s.mu.Unlock()

	if audio.Len() == 0 {
		return FinalOutput{}, fmt.Errorf("final requested with empty audio buffer")
	}

	recCfg := RecognitionConfig{
		Language: s.cfg.Language,
		Mode:     ModeFinal,
		BeamSize: s.cfg.FinalBeamSize,
	}

	result, err := s.provider.Recognize(ctx, audio, s.cfg.Audio, recCfg)
	if err != nil {
		return FinalOutput{}, fmt.Errorf("final recognition failed: %w", err)
	}

	processed := s.post.Process(result.Text, usableConfidence(result.Confidence))

	s.mu.Lock()
	s.buffer.Reset()
	s.previousDraft = ""
	s.mu.Unlock()

	return FinalOutput{
		Result:     processed,
		RawASRText: result.Text,
		Confidence: result.Confidence,
		Duration:   time.Since(start),
	}, nil
}

// usableConfidence maps a provider's "no confidence available" sentinel
// (-1) to full confidence so smoothing and the quality floor only act on
// providers that actually report scores.
func usableConfidence(c float32) float64 {
	if c < 0 {
		return 1.0
	}
	return float64(c)
}

// Reset clears all per-segment state without running a final pass, for the
// forced-split/shutdown path where a segment is abandoned rather than closed.
func (s *StreamingSession) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer.Reset()
	s.previousDraft = ""
	s.post.ResetContext()
}
