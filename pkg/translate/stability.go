package translate

import (
	"strings"
	"sync"

	"github.com/pmezard/go-difflib/difflib"
)

// stabilityTracker holds, per segment, the most recently emitted
// translation text so each new draft/final can be scored against it. The
// Translation worker serializes drafts within a segment, so the baseline
// advances in emission order.
type stabilityTracker struct {
	mu   sync.Mutex
	prev map[string]string // segmentUUID -> previous translated text
}

func newStabilityTracker() *stabilityTracker {
	return &stabilityTracker{prev: make(map[string]string)}
}

// Score returns the word-level SequenceMatcher ratio between text and the
// previous translation recorded for segmentUUID, then records text as the
// new baseline. The first call for a segment has no baseline and scores
// 0.0 by definition.
func (t *stabilityTracker) Score(segmentUUID, text string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	previous, ok := t.prev[segmentUUID]
	t.prev[segmentUUID] = text
	if !ok || previous == "" {
		return 0.0
	}

	matcher := difflib.NewMatcher(strings.Fields(previous), strings.Fields(text))
	return matcher.Ratio()
}

// Forget drops the baseline for a segment once its pipeline envelope is
// destroyed, so the map doesn't grow unbounded across a long session.
func (t *stabilityTracker) Forget(segmentUUID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.prev, segmentUUID)
}
