package asr

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// queuedProvider returns canned transcripts in call order.
type queuedProvider struct {
	texts []string
	calls int
}

func (p *queuedProvider) Name() string { return "queued" }

func (p *queuedProvider) Recognize(ctx context.Context, audio io.Reader, audioCfg AudioConfig, cfg RecognitionConfig) (*RecognitionResult, error) {
	text := p.texts[p.calls]
	p.calls++
	return &RecognitionResult{Text: text, Confidence: -1}, nil
}

func (p *queuedProvider) SupportsWordTimestamps() bool { return false }
func (p *queuedProvider) SupportedLanguages() []string { return nil }
func (p *queuedProvider) Close() error                 { return nil }

func draftSession(texts ...string) *StreamingSession {
	s := NewStreamingSession(&queuedProvider{texts: texts}, DefaultStreamingConfig())
	s.SetAudio(make([]byte, 4096))
	return s
}

func TestStreamingSession_DraftCompactsAppendOnlyGrowth(t *testing.T) {
	s := draftSession("hello world", "hello world how are you")

	first, err := s.Draft(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello world", first.DisplayText, "the first draft has nothing to compact against")

	second, err := s.Draft(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "...how are you", second.DisplayText,
		"append-only growth shows only the new suffix behind the ellipsis marker")
	assert.Equal(t, "hello world how are you", second.Result.CleanedText,
		"compaction is display-only; the full draft still flows downstream")
	assert.Equal(t, 1.0, second.Delta.StableRatio)
}

func TestStreamingSession_DraftIdenticalRedraftShowsMarkerOnly(t *testing.T) {
	s := draftSession("hello world", "hello world")

	_, err := s.Draft(context.Background())
	require.NoError(t, err)

	second, err := s.Draft(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "...", second.DisplayText)
}

func TestStreamingSession_DraftRewriteShowsFullText(t *testing.T) {
	s := draftSession("we went to the park", "completely different sentence entirely now")

	_, err := s.Draft(context.Background())
	require.NoError(t, err)

	second, err := s.Draft(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "completely different sentence entirely now", second.DisplayText,
		"a major rewrite repaints the whole draft")
}

func TestStreamingSession_FinalResetsDraftState(t *testing.T) {
	s := draftSession("hello world", "hello world", "fresh start")

	_, err := s.Draft(context.Background())
	require.NoError(t, err)
	_, err = s.Final(context.Background())
	require.NoError(t, err)

	s.SetAudio(make([]byte, 4096))
	next, err := s.Draft(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh start", next.DisplayText,
		"the previous-draft baseline must not leak across a final")
}
