package translate

import (
	"context"
	"fmt"
	"time"
)

// Config holds the tunable knobs for a StreamingTranslator.
type Config struct {
	Gate         GateConfig
	CacheEntries int
	CacheTTL     time.Duration
}

func DefaultConfig() Config {
	return Config{
		Gate:         DefaultGateConfig(),
		CacheEntries: 4096,
		CacheTTL:     30 * time.Minute,
	}
}

// StreamingTranslator implements Translator by layering semantic gating,
// per-segment stability scoring, a pivot-aware backend call, and a
// front-end cache over a single Backend. One instance is shared by the
// pipeline's single Translation worker, which serializes all calls for a
// given segment so the stability tracker never races itself.
type StreamingTranslator struct {
	cfg     Config
	backend Backend
	cache   *Cache
	stable  *stabilityTracker
}

func NewStreamingTranslator(cfg Config, backend Backend, cache *Cache) *StreamingTranslator {
	return &StreamingTranslator{
		cfg:     cfg,
		backend: backend,
		cache:   cache,
		stable:  newStabilityTracker(),
	}
}

// Draft applies the semantic gate before spending a backend call. A gated
// draft returns a skipped Result carrying the gate's reason, never an
// error.
func (t *StreamingTranslator) Draft(ctx context.Context, segmentUUID, text, sourceLang, targetLang string) (Result, error) {
	decision := Gate(t.cfg.Gate, text, sourceLang, targetLang)
	if !decision.Pass {
		return Result{
			SourceText:    text,
			SourceLang:    sourceLang,
			TargetLang:    targetLang,
			SkippedReason: decision.SkipReason,
		}, nil
	}
	return t.translate(ctx, segmentUUID, text, sourceLang, targetLang)
}

// Final always translates; the semantic gate exists only to ration draft
// calls against a not-yet-final source text.
func (t *StreamingTranslator) Final(ctx context.Context, segmentUUID, text, sourceLang, targetLang string) (Result, error) {
	return t.translate(ctx, segmentUUID, text, sourceLang, targetLang)
}

func (t *StreamingTranslator) translate(ctx context.Context, segmentUUID, text, sourceLang, targetLang string) (Result, error) {
	start := time.Now()

	if entry, ok := t.cache.Get(text, sourceLang, targetLang); ok {
		return Result{
			SourceText:     text,
			TranslatedText: entry.TranslatedText,
			SourceLang:     sourceLang,
			TargetLang:     targetLang,
			Confidence:     1.0,
			ProcessingTime: time.Since(start),
			StabilityScore: t.stable.Score(segmentUUID, entry.TranslatedText),
			CacheHit:       true,
		}, nil
	}

	translateFn := func(text, from, to string) (string, error) {
		return t.backend.Translate(ctx, text, from, to)
	}

	out, err := pivotTranslate(t.backend, translateFn, text, sourceLang, targetLang)
	if err != nil {
		return Result{
			SourceText:     text,
			SourceLang:     sourceLang,
			TargetLang:     targetLang,
			ProcessingTime: time.Since(start),
			SkippedReason:  fmt.Sprintf("error: %v", err),
		}, nil
	}

	t.cache.Put(text, out, sourceLang, targetLang)

	return Result{
		SourceText:     text,
		TranslatedText: out,
		SourceLang:     sourceLang,
		TargetLang:     targetLang,
		Confidence:     1.0,
		ProcessingTime: time.Since(start),
		StabilityScore: t.stable.Score(segmentUUID, out),
	}, nil
}

func (t *StreamingTranslator) ForgetSegment(segmentUUID string) {
	t.stable.Forget(segmentUUID)
}

var _ Translator = (*StreamingTranslator)(nil)
