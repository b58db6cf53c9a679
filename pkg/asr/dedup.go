package asr

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// TextDelta describes how a new draft transcript relates to the previous one:
// the longest run of words both agree on, and the portion that changed.
type TextDelta struct {
	StableWords  []string
	ChangedWords []string
	StableText   string
	ChangedText  string
	// StableRatio is the longest matching block's word count relative to
	// the previous draft's word count. 1.0 means the whole previous draft
	// survives inside the current one (the usual append-only case); the
	// dedup gate compares this against its similarity threshold to decide
	// whether the UI gets the full draft or just the new suffix.
	StableRatio float64
}

// DiffWords computes the word-level delta between a previous and current
// transcript using the longest matching block from SequenceMatcher, so a
// streaming UI can keep the stable prefix on screen and only repaint the
// trailing, still-moving words.
func DiffWords(previous, current string) TextDelta {
	prevWords := strings.Fields(previous)
	currWords := strings.Fields(current)

	if len(prevWords) == 0 {
		return TextDelta{
			ChangedWords: currWords,
			ChangedText:  current,
		}
	}

	matcher := difflib.NewMatcher(prevWords, currWords)
	var match difflib.Match
	for _, block := range matcher.GetMatchingBlocks() {
		if block.Size > match.Size {
			match = block
		}
	}

	var stable, changed []string
	if match.Size > 0 {
		stable = currWords[match.B : match.B+match.Size]
		changed = append(append([]string{}, currWords[:match.B]...), currWords[match.B+match.Size:]...)
	} else {
		changed = currWords
	}

	return TextDelta{
		StableWords:  stable,
		ChangedWords: changed,
		StableText:   strings.Join(stable, " "),
		ChangedText:  strings.Join(changed, " "),
		StableRatio:  float64(match.Size) / float64(len(prevWords)),
	}
}

// DisplayDelta renders the stable prefix and the newly changed suffix as
// a single string suitable for an incremental-render UI, e.g. terminal
// output that overwrites only the tail of the previous line.
func DisplayDelta(previous, current string) string {
	delta := DiffWords(previous, current)
	if delta.StableText == "" {
		return delta.ChangedText
	}
	if delta.ChangedText == "" {
		return delta.StableText
	}
	return delta.StableText + " " + delta.ChangedText
}

// StabilityRatio reports how similar two consecutive draft transcripts are,
// as a word-level SequenceMatcher ratio in [0,1]; 0 when either is empty.
func StabilityRatio(previous, current string) float64 {
	if previous == "" || current == "" {
		return 0
	}
	matcher := difflib.NewMatcher(strings.Fields(previous), strings.Fields(current))
	return matcher.Ratio()
}
