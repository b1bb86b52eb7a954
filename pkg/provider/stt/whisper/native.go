// This file contains the NativeProvider implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/lettersprout/pkg/audio"
	"github.com/MrWong99/lettersprout/pkg/provider/stt"
)

// Compile-time assertion that NativeProvider satisfies stt.Provider.
var _ stt.Provider = (*NativeProvider)(nil)

// minTokenProb keeps log(p) finite for tokens the model reports as p == 0.
const minTokenProb = 1e-6

// NativeProvider implements stt.Provider using whisper.cpp Go bindings
// (CGO), eliminating HTTP overhead entirely. The model is loaded once at
// startup and shared across all calls. Only WAV input is accepted; other
// containers would need a decoder the bindings do not ship.
type NativeProvider struct {
	model    whisperlib.Model
	language string
	threads  uint
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the language code for transcription
// (e.g., "en", "de", "fr"). Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// WithNativeThreads sets the number of CPU threads per inference. Zero keeps
// the library default.
func WithNativeThreads(n uint) NativeOption {
	return func(p *NativeProvider) { p.threads = n }
}

// NewNative creates a NativeProvider that loads the whisper.cpp model from
// the given file path. The caller must call Close when the provider is no
// longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &NativeProvider{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model.
func (p *NativeProvider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe decodes the WAV clip, converts it to 16 kHz mono and runs
// inference in a fresh whisper context. Each context is NOT thread-safe, but
// the model can be shared across goroutines.
func (p *NativeProvider) Transcribe(ctx context.Context, clip []byte, opts stt.Options) ([]stt.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}
	decoded, err := audio.DecodeWAV(clip)
	if err != nil {
		return nil, fmt.Errorf("whisper: decode audio: %w", err)
	}
	samples := audio.Float32(audio.ForRecognizer(decoded).PCM)

	wctx, err := p.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}

	lang := opts.Language
	if lang == "" {
		lang = p.language
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", lang, "error", err)
	}
	if p.threads > 0 {
		wctx.SetThreads(p.threads)
	}
	wctx.SetBeamSize(defaultBeamSize)
	wctx.SetTemperature(0)
	if opts.Hint != "" {
		wctx.SetInitialPrompt(opts.Hint)
	}

	// The bindings have no cancellation hook; the abort is checked again
	// once inference returns.
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper: process audio: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}

	var segs []stt.Segment
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper: read segment: %w", err)
		}
		segs = append(segs, stt.Segment{
			Text:       segment.Text,
			AvgLogProb: avgLogProb(segment.Tokens),
			Start:      segment.Start,
			End:        segment.End,
		})
	}
	return segs, nil
}

// avgLogProb averages ln(p) over the text tokens of a segment. Special
// tokens such as [_BEG_] and <|endoftext|> are skipped.
func avgLogProb(tokens []whisperlib.Token) float64 {
	var (
		sum float64
		n   int
	)
	for _, tok := range tokens {
		if strings.HasPrefix(tok.Text, "[_") || strings.HasPrefix(tok.Text, "<|") {
			continue
		}
		sum += math.Log(math.Max(float64(tok.P), minTokenProb))
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
