// Package speech scores a child's spoken attempt at a letter.
//
// An [Evaluator] sends the recorded clip to a transcription provider,
// classifies the recognized text against the expected [Target] and turns the
// result into a 1-3 star [Result] with feedback. Classification and scoring
// are pure functions ([Classify], [Score]) so they can be tested without any
// provider.
package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/lettersprout/internal/observe"
	"github.com/MrWong99/lettersprout/internal/speech/phonetic"
	"github.com/MrWong99/lettersprout/pkg/provider/stt"
)

// DefaultTimeout bounds a single transcription call.
const DefaultTimeout = 30 * time.Second

var (
	// ErrEmptyAudio is returned when Evaluate receives no audio bytes.
	ErrEmptyAudio = errors.New("speech: empty audio")

	// ErrRecognitionFailed is matched by every [RecognitionError].
	ErrRecognitionFailed = errors.New("speech: recognition failed")
)

// RecognitionError reports a transcription failure. It matches
// [ErrRecognitionFailed] under errors.Is and unwraps to the provider cause.
type RecognitionError struct {
	Letter string
	Err    error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("speech: recognition failed for %s: %v", e.Letter, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// Is reports whether target is [ErrRecognitionFailed].
func (e *RecognitionError) Is(target error) bool { return target == ErrRecognitionFailed }

// Option configures an [Evaluator].
type Option func(*Evaluator)

// WithLanguage sets the BCP-47 language hint sent to the provider.
// Default: "en".
func WithLanguage(lang string) Option {
	return func(e *Evaluator) { e.language = lang }
}

// WithTimeout bounds each provider call. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(e *Evaluator) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithMetrics records evaluation metrics on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Evaluator) { e.metrics = m }
}

// WithProviderName sets the provider label used on metrics. Default: "stt".
func WithProviderName(name string) Option {
	return func(e *Evaluator) { e.providerName = name }
}

// WithComparer replaces the phonetic comparer used for the similarity
// diagnostic.
func WithComparer(c *phonetic.Comparer) Option {
	return func(e *Evaluator) { e.comparer = c }
}

// Evaluator scores recorded clips against targets. It holds no per-call
// state and is safe for concurrent use when its provider is.
type Evaluator struct {
	provider     stt.Provider
	providerName string
	language     string
	timeout      time.Duration
	metrics      *observe.Metrics
	comparer     *phonetic.Comparer
}

// New creates an Evaluator backed by provider.
func New(provider stt.Provider, opts ...Option) (*Evaluator, error) {
	if provider == nil {
		return nil, errors.New("speech: provider must not be nil")
	}
	e := &Evaluator{
		provider:     provider,
		providerName: "stt",
		language:     "en",
		timeout:      DefaultTimeout,
	}
	for _, o := range opts {
		o(e)
	}
	if e.comparer == nil {
		e.comparer = phonetic.New()
	}
	return e, nil
}

// Evaluate transcribes audio and scores it against letter.
//
// The letter and audio are checked before the provider is called and fail
// with [ErrInvalidTarget] or [ErrEmptyAudio]. Any provider failure,
// including a timeout or an invalid segment, is returned as a
// [*RecognitionError]. A no-match is a valid 1-star result, not an error.
func (e *Evaluator) Evaluate(ctx context.Context, audio []byte, letter string) (Result, error) {
	target, err := LookupTarget(letter)
	if err != nil {
		return Result{}, err
	}
	if len(audio) == 0 {
		return Result{}, ErrEmptyAudio
	}

	ctx, span := observe.StartSpan(ctx, "speech.Evaluate",
		trace.WithAttributes(
			attribute.String("letter", target.Letter),
			attribute.Int("audio_bytes", len(audio)),
		),
	)

	segs, err := e.transcribe(ctx, audio, target)
	if err != nil {
		observe.EndSpan(span, err)
		return Result{}, err
	}

	fullText := JoinText(segs)
	m := classifySegments(segs, fullText, target)

	res := Score(m.Matched, fullText, Confidence(segs), target)
	res.Rule = m.Rule
	if fullText != "" {
		res.Similarity = e.comparer.Compare(fullText, target.Word).Score
	}
	res.AudioBytes = len(audio)

	span.SetAttributes(
		attribute.Int("stars", res.Stars),
		attribute.Bool("matched", res.Matched),
	)
	observe.EndSpan(span, nil)

	if e.metrics != nil {
		e.metrics.RecordEvaluation(ctx, res.Stars, res.Matched, res.Accuracy)
	}
	observe.Logger(ctx).Debug("speech evaluated",
		"letter", target.Letter,
		"recognized", fullText,
		"stars", res.Stars,
		"accuracy", res.Accuracy,
		"rule", res.Rule,
	)
	return res, nil
}

// classifySegments tries every non-empty segment in order and falls back to
// the joined text when none of them matches on its own.
func classifySegments(segs []stt.Segment, fullText string, target Target) MatchResult {
	for _, s := range segs {
		t := strings.TrimSpace(s.Text)
		if t == "" {
			continue
		}
		if m := Classify(t, target); m.Matched {
			return m
		}
	}
	return Classify(fullText, target)
}

func (e *Evaluator) transcribe(ctx context.Context, audio []byte, target Target) ([]stt.Segment, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	opts := stt.Options{
		Language: e.language,
		Hint:     target.Hint(),
		Keywords: strings.Fields(target.Word),
	}

	if e.metrics != nil {
		e.metrics.ActiveEvaluations.Add(ctx, 1)
		defer e.metrics.ActiveEvaluations.Add(context.WithoutCancel(ctx), -1)
	}

	start := time.Now()
	segs, err := e.provider.Transcribe(ctx, audio, opts)
	if err == nil {
		for i := range segs {
			// Blank segments never reach scoring.
			if strings.TrimSpace(segs[i].Text) == "" {
				continue
			}
			if verr := segs[i].Validate(); verr != nil {
				err = fmt.Errorf("segment %d: %w", i, verr)
				break
			}
		}
	}

	if e.metrics != nil {
		mctx := context.WithoutCancel(ctx)
		e.metrics.STTDuration.Record(mctx, time.Since(start).Seconds(),
			metric.WithAttributes(observe.Attr("provider", e.providerName)))
		status := "ok"
		if err != nil {
			status = "error"
			e.metrics.RecordProviderError(mctx, e.providerName, "stt")
		}
		e.metrics.RecordProviderRequest(mctx, e.providerName, "stt", status)
	}

	if err != nil {
		return nil, &RecognitionError{Letter: target.Letter, Err: err}
	}
	return segs, nil
}
