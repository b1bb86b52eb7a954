package speech

import (
	"context"
	"errors"
	"math"
	"slices"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/lettersprout/internal/observe"
	"github.com/MrWong99/lettersprout/pkg/provider/stt"
	"github.com/MrWong99/lettersprout/pkg/provider/stt/mock"
)

var clip = []byte("RIFF....WAVE")

func newEvaluator(t *testing.T, p stt.Provider, opts ...Option) *Evaluator {
	t.Helper()
	e, err := New(p, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestNew_NilProvider(t *testing.T) {
	t.Parallel()
	if _, err := New(nil); err == nil {
		t.Fatal("New(nil) succeeded, want error")
	}
}

func TestEvaluate_Scenarios(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		letter       string
		segs         []stt.Segment
		wantStars    int
		wantAccuracy float64
		wantMatched  bool
		wantExact    bool
		wantFeedback string
	}{
		{
			name:         "exact word",
			letter:       "A",
			segs:         []stt.Segment{{Text: "apple", AvgLogProb: -0.1}},
			wantStars:    3,
			wantAccuracy: 45.0,
			wantMatched:  true,
			wantExact:    true,
			wantFeedback: "Amazing",
		},
		{
			name:         "fragment with low confidence",
			letter:       "B",
			segs:         []stt.Segment{{Text: "ba", AvgLogProb: -0.8}},
			wantStars:    1,
			wantAccuracy: 16.8,
			wantMatched:  true,
			wantFeedback: "part of it",
		},
		{
			name:         "two word target",
			letter:       "I",
			segs:         []stt.Segment{{Text: "ice cream", AvgLogProb: -0.05}},
			wantStars:    3,
			wantAccuracy: 47.5,
			wantMatched:  true,
			wantExact:    true,
			wantFeedback: "Amazing",
		},
		{
			name:         "text contained in word",
			letter:       "Q",
			segs:         []stt.Segment{{Text: "e", AvgLogProb: -0.1}},
			wantStars:    2,
			wantAccuracy: 45.0,
			wantMatched:  true,
			wantFeedback: "Great job! I heard Q",
		},
		{
			name:         "silence",
			letter:       "Z",
			segs:         nil,
			wantStars:    1,
			wantFeedback: "didn't hear",
		},
		{
			name:         "wrong word",
			letter:       "Q",
			segs:         []stt.Segment{{Text: "cute", AvgLogProb: -1.5}},
			wantStars:    1,
			wantFeedback: `"cute"`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			e := newEvaluator(t, &mock.Provider{Segments: tc.segs})
			got, err := e.Evaluate(context.Background(), clip, tc.letter)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if got.Stars != tc.wantStars {
				t.Errorf("Stars = %d, want %d", got.Stars, tc.wantStars)
			}
			if got.Accuracy != tc.wantAccuracy {
				t.Errorf("Accuracy = %v, want %v", got.Accuracy, tc.wantAccuracy)
			}
			if got.Matched != tc.wantMatched || got.Exact != tc.wantExact {
				t.Errorf("Matched/Exact = %v/%v, want %v/%v", got.Matched, got.Exact, tc.wantMatched, tc.wantExact)
			}
			if !strings.Contains(got.Feedback, tc.wantFeedback) {
				t.Errorf("Feedback = %q, want it to contain %q", got.Feedback, tc.wantFeedback)
			}
			if got.AudioBytes != len(clip) {
				t.Errorf("AudioBytes = %d, want %d", got.AudioBytes, len(clip))
			}
		})
	}
}

func TestEvaluate_ValidatesBeforeProvider(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		letter  string
		audio   []byte
		wantErr error
	}{
		{"invalid letter", "7", clip, ErrInvalidTarget},
		{"two letters", "ab", clip, ErrInvalidTarget},
		{"invalid letter and no audio", "", nil, ErrInvalidTarget},
		{"empty audio", "A", nil, ErrEmptyAudio},
		{"zero length audio", "A", []byte{}, ErrEmptyAudio},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := &mock.Provider{}
			_, err := newEvaluator(t, p).Evaluate(context.Background(), tc.audio, tc.letter)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if n := p.CallCount(); n != 0 {
				t.Errorf("provider called %d times, want 0", n)
			}
		})
	}
}

func TestEvaluate_ProviderFailures(t *testing.T) {
	t.Parallel()
	boom := errors.New("backend unavailable")
	tests := []struct {
		name      string
		provider  *mock.Provider
		wantCause error
	}{
		{"provider error", &mock.Provider{TranscribeErr: boom}, boom},
		{"timeout", &mock.Provider{BlockUntilDone: true}, context.DeadlineExceeded},
		{"nan confidence", &mock.Provider{Segments: []stt.Segment{{Text: "apple", AvgLogProb: math.NaN()}}}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			e := newEvaluator(t, tc.provider, WithTimeout(20*time.Millisecond))
			res, err := e.Evaluate(context.Background(), clip, "A")
			if !errors.Is(err, ErrRecognitionFailed) {
				t.Fatalf("err = %v, want ErrRecognitionFailed", err)
			}
			var rerr *RecognitionError
			if !errors.As(err, &rerr) || rerr.Letter != "A" {
				t.Errorf("err = %#v, want *RecognitionError for A", err)
			}
			if tc.wantCause != nil && !errors.Is(err, tc.wantCause) {
				t.Errorf("err = %v does not wrap %v", err, tc.wantCause)
			}
			if res.Stars != 0 {
				t.Errorf("failed evaluation returned a score: %+v", res)
			}
		})
	}
}

func TestEvaluate_IgnoresBlankSegmentSignal(t *testing.T) {
	t.Parallel()
	p := &mock.Provider{Segments: []stt.Segment{
		{Text: "  ", AvgLogProb: math.NaN()},
		{Text: "apple", AvgLogProb: -0.1},
		{Text: "", AvgLogProb: math.Inf(1)},
	}}
	got, err := newEvaluator(t, p).Evaluate(context.Background(), clip, "A")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got.Stars != 3 || got.Accuracy != 45.0 {
		t.Errorf("got stars=%d accuracy=%v, want 3 and 45", got.Stars, got.Accuracy)
	}
}

func TestEvaluate_CallerCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newEvaluator(t, &mock.Provider{BlockUntilDone: true}).Evaluate(ctx, clip, "A")
	if !errors.Is(err, ErrRecognitionFailed) || !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want recognition failure wrapping context.Canceled", err)
	}
}

func TestEvaluate_PassesHintToProvider(t *testing.T) {
	t.Parallel()
	p := &mock.Provider{}
	e := newEvaluator(t, p, WithLanguage("en-GB"))
	if _, err := e.Evaluate(context.Background(), clip, "i"); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if p.CallCount() != 1 {
		t.Fatalf("CallCount = %d, want 1", p.CallCount())
	}
	call := p.TranscribeCalls[0]
	if call.Opts.Hint != "I. Ice cream." {
		t.Errorf("Hint = %q, want %q", call.Opts.Hint, "I. Ice cream.")
	}
	if call.Opts.Language != "en-GB" {
		t.Errorf("Language = %q, want en-GB", call.Opts.Language)
	}
	if !slices.Equal(call.Opts.Keywords, []string{"Ice", "cream"}) {
		t.Errorf("Keywords = %v, want [Ice cream]", call.Opts.Keywords)
	}
	if string(call.Audio) != string(clip) {
		t.Errorf("Audio = %q, want %q", call.Audio, clip)
	}
	if _, ok := call.Ctx.Deadline(); !ok {
		t.Error("provider context carries no deadline")
	}
}

func TestEvaluate_MatchesAnySegment(t *testing.T) {
	t.Parallel()
	// "dog" alone is exact, but the joined text "hmm dog" is not.
	p := &mock.Provider{Segments: []stt.Segment{
		{Text: "hmm", AvgLogProb: -1},
		{Text: "dog", AvgLogProb: -0.2},
	}}
	got, err := newEvaluator(t, p).Evaluate(context.Background(), clip, "D")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !got.Matched || got.Exact {
		t.Errorf("Matched/Exact = %v/%v, want true/false", got.Matched, got.Exact)
	}
	if got.RecognizedText != "hmm dog" {
		t.Errorf("RecognizedText = %q, want %q", got.RecognizedText, "hmm dog")
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	t.Parallel()
	p := &mock.Provider{Segments: []stt.Segment{{Text: "Kite!", AvgLogProb: -0.3}}}
	e := newEvaluator(t, p)
	first, err := e.Evaluate(context.Background(), clip, "k")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	for range 5 {
		again, err := e.Evaluate(context.Background(), clip, "K")
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if again != first {
			t.Fatalf("Evaluate not deterministic: %+v vs %+v", again, first)
		}
	}
}

func TestEvaluate_Similarity(t *testing.T) {
	t.Parallel()
	e := newEvaluator(t, &mock.Provider{Segments: []stt.Segment{{Text: "apple", AvgLogProb: -0.1}}})
	got, err := e.Evaluate(context.Background(), clip, "A")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got.Similarity <= 0.9 {
		t.Errorf("Similarity = %v, want > 0.9", got.Similarity)
	}

	e = newEvaluator(t, &mock.Provider{})
	got, err = e.Evaluate(context.Background(), clip, "A")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got.Similarity != 0 {
		t.Errorf("Similarity for silence = %v, want 0", got.Similarity)
	}
}

func TestEvaluate_RecordsMetrics(t *testing.T) {
	t.Parallel()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	ok := newEvaluator(t, &mock.Provider{Segments: []stt.Segment{{Text: "sun", AvgLogProb: -0.1}}},
		WithMetrics(m), WithProviderName("whisper"))
	bad := newEvaluator(t, &mock.Provider{TranscribeErr: errors.New("down")},
		WithMetrics(m), WithProviderName("whisper"))

	if _, err := ok.Evaluate(context.Background(), clip, "S"); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	_, _ = bad.Evaluate(context.Background(), clip, "S")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if sum, ok := met.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					counts[met.Name] += dp.Value
				}
			}
		}
	}
	if counts["lettersprout.evaluations"] != 1 {
		t.Errorf("evaluations = %d, want 1", counts["lettersprout.evaluations"])
	}
	if counts["lettersprout.provider.requests"] != 2 {
		t.Errorf("provider.requests = %d, want 2", counts["lettersprout.provider.requests"])
	}
	if counts["lettersprout.provider.errors"] != 1 {
		t.Errorf("provider.errors = %d, want 1", counts["lettersprout.provider.errors"])
	}
	if counts["lettersprout.active_evaluations"] != 0 {
		t.Errorf("active_evaluations = %d, want 0", counts["lettersprout.active_evaluations"])
	}
}
