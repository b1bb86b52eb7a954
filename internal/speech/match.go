package speech

import (
	"strings"
	"unicode"
)

// Rule names the classifier rule that accepted a piece of text.
type Rule string

const (
	RuleNone      Rule = "none"
	RuleExact     Rule = "exact"
	RuleSubstring Rule = "substring"
	RuleCompound  Rule = "compound"
	RulePrefix    Rule = "prefix"
)

// MatchResult is the outcome of classifying one piece of text.
type MatchResult struct {
	Matched bool
	Exact   bool
	Rule    Rule
}

// prefixLen is how much of the target word the fuzzy rule compares.
const prefixLen = 3

// compounds lists, per letter, alternative fragment sets for targets whose
// spoken form loses its space or hyphen. An alternative matches when every
// fragment occurs in the recognized text.
var compounds = map[string][][]string{
	"I": {{"ice", "cream"}},
	"X": {{"xray"}, {"x ray"}},
	"Y": {{"yoyo"}, {"yo yo"}},
}

// Normalize lower-cases text and drops everything that is not a letter or a
// digit, including all whitespace.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Classify decides whether recognized counts as saying target. Rules are
// tried in order and the first one that accepts wins. Empty text never
// matches.
func Classify(recognized string, target Target) MatchResult {
	raw := strings.ToLower(strings.TrimSpace(recognized))
	norm := Normalize(recognized)
	if raw == "" || norm == "" {
		return MatchResult{Rule: RuleNone}
	}

	letterRaw := strings.ToLower(target.Letter)
	wordRaw := strings.ToLower(target.Word)
	letterNorm := Normalize(letterRaw)
	wordNorm := Normalize(wordRaw)

	switch {
	case raw == letterRaw || raw == wordRaw || norm == letterNorm || norm == wordNorm:
		return MatchResult{Matched: true, Exact: true, Rule: RuleExact}

	case strings.Contains(raw, letterRaw) || strings.Contains(norm, letterNorm),
		wordRaw != "" && (strings.Contains(raw, wordRaw) || strings.Contains(norm, wordNorm)),
		wordNorm != "" && strings.Contains(wordNorm, norm):
		return MatchResult{Matched: true, Rule: RuleSubstring}

	case matchesCompound(raw, norm, target.Letter):
		return MatchResult{Matched: true, Rule: RuleCompound}

	case matchesPrefix(raw, norm, wordRaw):
		return MatchResult{Matched: true, Rule: RulePrefix}
	}
	return MatchResult{Rule: RuleNone}
}

func matchesCompound(raw, norm, letter string) bool {
	for _, alt := range compounds[letter] {
		if containsAll(raw, alt) || containsAll(norm, alt) {
			return true
		}
	}
	return false
}

func containsAll(s string, fragments []string) bool {
	for _, f := range fragments {
		if !strings.Contains(s, f) {
			return false
		}
	}
	return true
}

// matchesPrefix accepts text containing the first three characters of the
// word, or just its first two in the raw text.
func matchesPrefix(raw, norm, word string) bool {
	if len(word) < prefixLen {
		return false
	}
	p := word[:prefixLen]
	return strings.Contains(raw, p) ||
		strings.Contains(norm, p) ||
		strings.Contains(raw, p[:2])
}
