package translate

import "regexp"

// pivotArtifactPatterns mirrors the artifact-removal regexes the ASR
// post-processor runs over recognizer output: a pivot hop through English
// is itself a model call and can reintroduce the same parenthetical
// sound-effect artifacts ("(Laughter)", "(Music)") on the intermediate or
// final leg.
var pivotArtifactPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\(\s*Laughter\s*\)`),
	regexp.MustCompile(`(?i)\(\s*Applause\s*\)`),
	regexp.MustCompile(`(?i)\(\s*Music\s*\)`),
	regexp.MustCompile(`(?i)\(\s*Singing\s*\)`),
	regexp.MustCompile(`(?i)\(\s*Pause\s*\)`),
}

var pivotWhitespaceRun = regexp.MustCompile(`\s+`)

func cleanPivotArtifacts(text string) string {
	for _, re := range pivotArtifactPatterns {
		text = re.ReplaceAllString(text, "")
	}
	return pivotWhitespaceRun.ReplaceAllString(text, " ")
}

// pivotTranslate routes source->target through English when backend has no
// direct model for the pair. A source or target language of "en" never
// needs the extra hop. translateFn is expected to close over the caller's
// context.
func pivotTranslate(backend Backend, translateFn func(text, from, to string) (string, error), text, sourceLang, targetLang string) (string, error) {
	if backend.SupportsDirect(sourceLang, targetLang) || sourceLang == "en" || targetLang == "en" {
		out, err := translateFn(text, sourceLang, targetLang)
		if err != nil {
			return "", err
		}
		return cleanPivotArtifacts(out), nil
	}

	english, err := translateFn(text, sourceLang, "en")
	if err != nil {
		return "", err
	}
	english = cleanPivotArtifacts(english)

	out, err := translateFn(english, "en", targetLang)
	if err != nil {
		return "", err
	}
	return cleanPivotArtifacts(out), nil
}
