package translate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_TooShort(t *testing.T) {
	d := Gate(DefaultGateConfig(), "hi", "en", "fr")
	assert.False(t, d.Pass)
	assert.Equal(t, SkipTooShort, d.SkipReason)
}

func TestGate_SOVRequiresTerminator(t *testing.T) {
	d := Gate(DefaultGateConfig(), "I am going to the store", "en", "ja")
	assert.False(t, d.Pass)
	assert.Equal(t, SkipSOVIncomplete, d.SkipReason)

	d = Gate(DefaultGateConfig(), "I am going to the store.", "en", "ja")
	assert.True(t, d.Pass)
}

func TestGate_SVOPassesOnVerb(t *testing.T) {
	d := Gate(DefaultGateConfig(), "the dog is running", "en", "fr")
	assert.True(t, d.Pass)
}

func TestGate_SVONoVerbNoPunctuation(t *testing.T) {
	d := Gate(DefaultGateConfig(), "the big red house", "en", "fr")
	assert.False(t, d.Pass)
	assert.Equal(t, SkipNoVerbOrPunct, d.SkipReason)
}

func TestStabilityTracker_FirstCallIsZero(t *testing.T) {
	tr := newStabilityTracker()
	assert.Equal(t, 0.0, tr.Score("seg-1", "hello there"))
}

func TestStabilityTracker_ScoresAgainstPrevious(t *testing.T) {
	tr := newStabilityTracker()
	tr.Score("seg-1", "hello there")
	score := tr.Score("seg-1", "hello there friend")
	assert.Greater(t, score, 0.0)
	assert.Less(t, score, 1.0)
}

func TestStabilityTracker_Forget(t *testing.T) {
	tr := newStabilityTracker()
	tr.Score("seg-1", "hello")
	tr.Forget("seg-1")
	assert.Equal(t, 0.0, tr.Score("seg-1", "hello"))
}

func TestCache_PutThenGet(t *testing.T) {
	c, err := NewCache(64, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	c.Put("hello", "bonjour", "en", "fr")
	entry, ok := c.Get("hello", "en", "fr")
	require.True(t, ok)
	assert.Equal(t, "bonjour", entry.TranslatedText)
}

func TestCache_MissReturnsFalse(t *testing.T) {
	c, err := NewCache(64, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.Get("never put", "en", "fr")
	assert.False(t, ok)
}

func TestCache_SaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	c1, err := NewCache(64, 0)
	require.NoError(t, err)
	c1.Put("hello", "bonjour", "en", "fr")
	require.NoError(t, c1.SaveToFile(dir))
	c1.Close()

	c2, err := NewCache(64, 0)
	require.NoError(t, err)
	defer c2.Close()
	require.NoError(t, c2.LoadFromFile(dir))

	entry, ok := c2.Get("hello", "en", "fr")
	require.True(t, ok)
	assert.Equal(t, "bonjour", entry.TranslatedText)
}

type fakeBackend struct {
	direct bool
	calls  []string
	err    error
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	f.calls = append(f.calls, sourceLang+">"+targetLang+":"+text)
	if f.err != nil {
		return "", f.err
	}
	return "[" + targetLang + "]" + text, nil
}

func (f *fakeBackend) SupportsDirect(sourceLang, targetLang string) bool { return f.direct }

func TestStreamingTranslator_DraftSkipsOnGate(t *testing.T) {
	backend := &fakeBackend{direct: true}
	cache, err := NewCache(64, time.Minute)
	require.NoError(t, err)
	defer cache.Close()

	tr := NewStreamingTranslator(DefaultConfig(), backend, cache)
	result, err := tr.Draft(context.Background(), "seg-1", "hi", "en", "fr")
	require.NoError(t, err)
	assert.True(t, result.Skipped())
	assert.Equal(t, SkipTooShort, result.SkippedReason)
	assert.Empty(t, backend.calls)
}

func TestStreamingTranslator_FinalAlwaysTranslates(t *testing.T) {
	backend := &fakeBackend{direct: true}
	cache, err := NewCache(64, time.Minute)
	require.NoError(t, err)
	defer cache.Close()

	tr := NewStreamingTranslator(DefaultConfig(), backend, cache)
	result, err := tr.Final(context.Background(), "seg-1", "hi", "en", "fr")
	require.NoError(t, err)
	assert.False(t, result.Skipped())
	assert.Equal(t, "[fr]hi", result.TranslatedText)
}

func TestStreamingTranslator_CachesSecondCall(t *testing.T) {
	backend := &fakeBackend{direct: true}
	cache, err := NewCache(64, time.Minute)
	require.NoError(t, err)
	defer cache.Close()

	tr := NewStreamingTranslator(DefaultConfig(), backend, cache)
	ctx := context.Background()

	_, err = tr.Final(ctx, "seg-1", "hello world", "en", "fr")
	require.NoError(t, err)
	_, err = tr.Final(ctx, "seg-1", "hello world", "en", "fr")
	require.NoError(t, err)

	assert.Len(t, backend.calls, 1)
}

func TestStreamingTranslator_PivotsThroughEnglish(t *testing.T) {
	backend := &fakeBackend{direct: false}
	cache, err := NewCache(64, time.Minute)
	require.NoError(t, err)
	defer cache.Close()

	tr := NewStreamingTranslator(DefaultConfig(), backend, cache)
	result, err := tr.Final(context.Background(), "seg-1", "bonjour", "fr", "ja")
	require.NoError(t, err)
	require.False(t, result.Skipped())

	require.Len(t, backend.calls, 2)
	assert.Equal(t, "fr>en:bonjour", backend.calls[0])
	assert.Contains(t, backend.calls[1], "en>ja:")
}

func TestStreamingTranslator_BackendErrorBecomesSkipReason(t *testing.T) {
	backend := &fakeBackend{direct: true, err: errors.New("rate limited")}
	cache, err := NewCache(64, time.Minute)
	require.NoError(t, err)
	defer cache.Close()

	tr := NewStreamingTranslator(DefaultConfig(), backend, cache)
	result, err := tr.Final(context.Background(), "seg-1", "hello world", "en", "fr")
	require.NoError(t, err)
	assert.True(t, result.Skipped())
	assert.Contains(t, result.SkippedReason, "error:")
}

func TestStreamingTranslator_StabilityScoreAcrossFinals(t *testing.T) {
	backend := &fakeBackend{direct: true}
	cache, err := NewCache(64, time.Minute)
	require.NoError(t, err)
	defer cache.Close()

	tr := NewStreamingTranslator(DefaultConfig(), backend, cache)
	ctx := context.Background()

	first, err := tr.Final(ctx, "seg-1", "the dog runs", "en", "fr")
	require.NoError(t, err)
	assert.Equal(t, 0.0, first.StabilityScore)

	second, err := tr.Final(ctx, "seg-1", "the dog runs fast", "en", "fr")
	require.NoError(t, err)
	assert.Greater(t, second.StabilityScore, 0.0)
}
