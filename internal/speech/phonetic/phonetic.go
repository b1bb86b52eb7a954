// Package phonetic scores how close a recognized utterance sounds to the
// expected word, using Double Metaphone codes combined with Jaro-Winkler
// string similarity.
//
// The score is diagnostic. It is reported next to an evaluation so that
// parents and tuning tools can see "heard 'aple', 0.93 similar to Apple",
// but it never changes the star rating.
//
// Comparison works in two stages:
//
//  1. Phonetic overlap: Double Metaphone codes are computed for every token
//     of both strings. Any shared code marks the pair as sounding alike.
//
//  2. Jaro-Winkler: the highest similarity across full strings, space
//     stripped strings and token pairs is the score.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const defaultAlikeThreshold = 0.70

// Option is a functional option for configuring a [Comparer].
type Option func(*Comparer)

// WithAlikeThreshold sets the minimum Jaro-Winkler score at which a
// phonetically overlapping pair is reported as sounding alike. Default: 0.70.
func WithAlikeThreshold(threshold float64) Option {
	return func(c *Comparer) {
		c.alikeThreshold = threshold
	}
}

// Result is the outcome of one comparison.
type Result struct {
	// Score is the best Jaro-Winkler similarity in [0,1].
	Score float64
	// SoundsAlike is true when the strings share a phonetic code and Score
	// reaches the configured threshold.
	SoundsAlike bool
}

// Comparer is safe for concurrent use; it is read-only after construction.
type Comparer struct {
	alikeThreshold float64
}

// New returns a [Comparer] configured with the supplied options.
func New(opts ...Option) *Comparer {
	c := &Comparer{alikeThreshold: defaultAlikeThreshold}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Compare scores heard against target. Comparison is case-insensitive and
// ignores surrounding whitespace. Either side empty yields a zero Result.
func (c *Comparer) Compare(heard, target string) Result {
	heardLower := strings.ToLower(strings.TrimSpace(heard))
	targetLower := strings.ToLower(strings.TrimSpace(target))
	if heardLower == "" || targetLower == "" {
		return Result{}
	}
	heardTokens := strings.Fields(stripPunct(heardLower))
	targetTokens := strings.Fields(stripPunct(targetLower))
	if len(heardTokens) == 0 || len(targetTokens) == 0 {
		return Result{}
	}

	score := bestJWScore(heardTokens, targetTokens, heardLower, targetLower)
	alike := codesOverlap(codesForTokens(heardTokens), codesForTokens(targetTokens))
	return Result{
		Score:       score,
		SoundsAlike: alike && score >= c.alikeThreshold,
	}
}

// stripPunct turns hyphens into spaces and drops other punctuation so that
// "X-ray" tokenizes as "x ray".
func stripPunct(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '-':
			return ' '
		case strings.ContainsRune(".,!?;:'\"", r):
			return -1
		}
		return r
	}, s)
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens. Empty codes (produced when the word is too short or
// contains no consonants) are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore returns the highest Jaro-Winkler similarity across the full
// strings, the space-stripped strings and every token pair.
func bestJWScore(heardTokens, targetTokens []string, heardFull, targetFull string) float64 {
	score := matchr.JaroWinkler(heardFull, targetFull, false)

	if len(heardTokens) > 1 || len(targetTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(heardTokens, ""), strings.Join(targetTokens, ""), false); s > score {
			score = s
		}
	}

	for _, h := range heardTokens {
		for _, tt := range targetTokens {
			if s := matchr.JaroWinkler(h, tt, false); s > score {
				score = s
			}
		}
	}
	return score
}
