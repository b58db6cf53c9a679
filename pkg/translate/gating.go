package translate

import "strings"

// WordOrder classifies a target language's dominant word order, which
// determines how aggressively a partial draft can be gated for
// translation: SOV targets need the sentence to actually close before a
// grammatical translation is possible.
type WordOrder int

const (
	OrderSVO WordOrder = iota
	OrderSOV
)

var sovLanguages = map[string]struct{}{
	"ja": {}, "ko": {}, "de": {}, "tr": {}, "hi": {}, "fa": {},
}

var svoLanguages = map[string]struct{}{
	"en": {}, "zh": {}, "fr": {}, "es": {}, "it": {}, "pt": {}, "ru": {},
}

// ClassifyWordOrder returns the target language's word order. Unrecognized
// languages default to SVO, the larger and less restrictive set, rather
// than guessing a linguistic family.
func ClassifyWordOrder(targetLang string) WordOrder {
	if _, ok := sovLanguages[targetLang]; ok {
		return OrderSOV
	}
	return OrderSVO
}

// sentenceTerminators is the punctuation set gating treats as "the
// sentence is closed," across Latin, CJK, and Devanagari scripts.
var sentenceTerminators = []rune{'.', '!', '?', '。', '！', '？', '।'}

func endsWithTerminator(text string) bool {
	trimmed := strings.TrimRightFunc(text, func(r rune) bool {
		return r == ' ' || r == '\n' || r == '\t'
	})
	if trimmed == "" {
		return false
	}
	last := []rune(trimmed)
	lastRune := last[len(last)-1]
	for _, t := range sentenceTerminators {
		if lastRune == t {
			return true
		}
	}
	return false
}

// verbTables is a small per-source-language verb lexicon used to decide
// whether an SVO-target draft's source text already contains a verb, so a
// verb-bearing fragment can be translated before the sentence actually
// closes. These are deliberately small, common-verb tables, not a full
// morphological analyzer.
var verbTables = map[string]map[string]struct{}{
	"en": setOf("is", "are", "was", "were", "am", "be", "been", "being",
		"have", "has", "had", "do", "does", "did", "will", "would", "can",
		"could", "should", "may", "might", "must", "go", "goes", "went",
		"get", "gets", "got", "make", "makes", "made", "say", "says", "said",
		"think", "thinks", "thought", "know", "knows", "knew", "want",
		"wants", "wanted", "need", "needs", "needed", "see", "sees", "saw",
		"come", "comes", "came", "take", "takes", "took", "looks", "looking"),
	"zh": setOf("是", "在", "有", "会", "要", "能", "可以", "去", "来",
		"做", "说", "想", "知道", "看", "听", "走", "给", "让", "觉得"),
	"fr": setOf("est", "sont", "était", "étaient", "suis", "être", "avoir",
		"ai", "as", "a", "avons", "avez", "ont", "fait", "faire", "va",
		"vais", "vas", "vont", "peut", "peux", "veut", "veux", "dit"),
	"es": setOf("es", "son", "era", "eran", "soy", "ser", "estar", "estoy",
		"tiene", "tengo", "tienen", "hace", "hago", "hacen", "va", "voy",
		"van", "puede", "puedo", "pueden", "quiere", "quiero", "dice"),
}

func setOf(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

func containsVerb(text, sourceLang string) bool {
	table, ok := verbTables[sourceLang]
	if !ok {
		table = verbTables["en"]
	}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:。、，")
		if _, ok := table[w]; ok {
			return true
		}
	}
	return false
}

// GateConfig holds the tunable semantic-gating thresholds.
type GateConfig struct {
	MinWords int
}

func DefaultGateConfig() GateConfig {
	return GateConfig{MinWords: 2}
}

// GateDecision is the discriminated result of the semantic gate: either it
// passes (Pass == true) or it carries one of the three documented skip
// reasons, never an error or panic.
type GateDecision struct {
	Pass       bool
	SkipReason string
}

const (
	SkipTooShort      = "too_short"
	SkipNoVerbOrPunct = "no_verb_or_punct"
	SkipSOVIncomplete = "sov_incomplete"
)

// Gate applies the draft-only semantic gate: word-count floor, then
// a target-language-dependent rule about whether the source fragment is
// safe to translate yet. Finals never call this; they always translate.
func Gate(cfg GateConfig, sourceText, sourceLang, targetLang string) GateDecision {
	words := strings.Fields(sourceText)
	if len(words) < cfg.MinWords {
		return GateDecision{Pass: false, SkipReason: SkipTooShort}
	}

	switch ClassifyWordOrder(targetLang) {
	case OrderSOV:
		if !endsWithTerminator(sourceText) {
			return GateDecision{Pass: false, SkipReason: SkipSOVIncomplete}
		}
	default:
		if !containsVerb(sourceText, sourceLang) && !endsWithTerminator(sourceText) {
			return GateDecision{Pass: false, SkipReason: SkipNoVerbOrPunct}
		}
	}

	return GateDecision{Pass: true}
}
