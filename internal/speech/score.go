package speech

import (
	"fmt"
	"math"
	"strings"

	"github.com/MrWong99/lettersprout/pkg/provider/stt"
)

const (
	// steepness scales the averaged log-probability before the logistic map.
	steepness = 2.0

	// twoStarConfidence is the minimum confidence for a partial match to
	// earn two stars.
	twoStarConfidence = 0.3
)

// Result is the outcome of one evaluation.
type Result struct {
	// Stars is always 1, 2 or 3.
	Stars int
	// Accuracy is round(Confidence*100, 1) when matched, else 0.
	Accuracy float64
	Feedback string
	// RecognizedText is the trimmed segments joined by single spaces.
	RecognizedText string
	// Confidence is in [0,1].
	Confidence float64
	Matched    bool
	Exact      bool
	// Rule is the classifier rule that accepted the utterance.
	Rule   Rule
	Target Target
	// Similarity is a phonetic closeness diagnostic in [0,1]. It does not
	// affect Stars.
	Similarity float64
	// AudioBytes is the size of the evaluated clip.
	AudioBytes int
}

// AverageSignal averages AvgLogProb over segments whose text is non-empty
// after trimming. ok is false when there are no such segments.
func AverageSignal(segs []stt.Segment) (avg float64, ok bool) {
	var (
		sum float64
		n   int
	)
	for _, s := range segs {
		if strings.TrimSpace(s.Text) == "" {
			continue
		}
		sum += s.AvgLogProb
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// MapConfidence maps a log-domain signal into (0,1) with a logistic curve.
// Values near 0 map to about 0.5 and very negative values saturate at 0.
func MapConfidence(avg float64) float64 {
	return 1 / (1 + math.Exp(-avg*steepness))
}

// Confidence returns the mapped confidence for segs, or 0 when no segment
// carries text.
func Confidence(segs []stt.Segment) float64 {
	avg, ok := AverageSignal(segs)
	if !ok {
		return 0
	}
	return MapConfidence(avg)
}

// JoinText trims every segment and joins the non-empty ones with a space.
func JoinText(segs []stt.Segment) string {
	parts := make([]string, 0, len(segs))
	for _, s := range segs {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// Score turns a match decision into stars, accuracy and feedback. Exactness
// is judged again on fullText; matched carries over from whichever pass
// accepted the utterance.
func Score(matched bool, fullText string, confidence float64, target Target) Result {
	r := Result{
		Stars:          1,
		RecognizedText: fullText,
		Confidence:     confidence,
		Matched:        matched,
		Target:         target,
	}
	if matched {
		r.Exact = Classify(fullText, target).Exact
		r.Accuracy = math.Round(confidence*1000) / 10
	}

	switch {
	case r.Exact:
		r.Stars = 3
		r.Feedback = fmt.Sprintf("Amazing! Your %s sounds perfect!", target.Letter)
	case matched && confidence >= twoStarConfidence:
		r.Stars = 2
		r.Feedback = fmt.Sprintf("Great job! I heard %s, keep it up!", target.Letter)
	case matched:
		r.Feedback = fmt.Sprintf("I heard part of it. Try saying %s or %s again!", target.Letter, target.Word)
	case fullText != "":
		r.Feedback = fmt.Sprintf("I heard %q, but not %s. Let's try again!", fullText, target.Letter)
	default:
		r.Feedback = fmt.Sprintf("I didn't hear anything. Say the letter %s out loud!", target.Letter)
	}
	return r
}
