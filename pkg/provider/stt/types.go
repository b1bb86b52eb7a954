package stt

import (
	"fmt"
	"math"
	"time"
)

// Segment is one contiguous span of recognized speech.
type Segment struct {
	// Text is the transcribed speech content, untrimmed as returned by the
	// provider.
	Text string

	// AvgLogProb is the average token log-probability for the segment. It is
	// typically negative; values closer to 0 mean higher confidence.
	AvgLogProb float64

	// Start and End are offsets relative to the beginning of the clip. Zero
	// when the provider does not report timing.
	Start time.Duration
	End   time.Duration
}

// Validate reports whether the segment is usable by a scorer. A NaN or
// positive-infinite confidence signal is rejected.
func (s Segment) Validate() error {
	if math.IsNaN(s.AvgLogProb) || math.IsInf(s.AvgLogProb, 1) {
		return fmt.Errorf("stt: segment %q has invalid avg log prob %v", s.Text, s.AvgLogProb)
	}
	return nil
}
