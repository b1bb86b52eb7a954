// Package deepgram provides a Deepgram-backed STT provider using the Deepgram
// streaming WebSocket API. It implements the stt.Provider interface.
//
// A recorded clip is sent in one pass: the container bytes are written as
// binary frames, a CloseStream message asks Deepgram to flush, and every
// final Results event received before the server closes the socket becomes
// one segment. Deepgram reports confidence in [0,1]; it is converted to the
// log domain so callers can treat it like whisper's avg_logprob.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/lettersprout/pkg/provider/stt"
)

const (
	deepgramEndpoint = "wss://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"
	defaultLanguage  = "en"

	// chunkSize bounds a single websocket frame.
	chunkSize = 32 * 1024

	// keywordBoost is the intensifier applied to every keyword.
	keywordBoost = 2.0

	// minConfidence keeps ln(confidence) finite.
	minConfidence = 1e-6
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en", "de-DE").
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithEndpoint overrides the streaming endpoint (ws:// or wss://).
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// Provider implements stt.Provider backed by the Deepgram streaming API.
type Provider struct {
	apiKey   string
	model    string
	language string
	endpoint string
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:   apiKey,
		model:    defaultModel,
		language: defaultLanguage,
		endpoint: deepgramEndpoint,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe streams clip to Deepgram and collects the final transcripts.
// Deepgram detects the container (WAV, WebM, Ogg, MP3) from the bytes.
func (p *Provider) Transcribe(ctx context.Context, clip []byte, opts stt.Options) ([]stt.Segment, error) {
	if len(clip) == 0 {
		return nil, errors.New("deepgram: empty audio")
	}
	wsURL, err := p.buildURL(opts)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(1 << 20)

	for off := 0; off < len(clip); off += chunkSize {
		end := min(off+chunkSize, len(clip))
		if err := conn.Write(ctx, websocket.MessageBinary, clip[off:end]); err != nil {
			return nil, fmt.Errorf("deepgram: write audio: %w", err)
		}
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`)); err != nil {
		return nil, fmt.Errorf("deepgram: write close stream: %w", err)
	}

	var segs []stt.Segment
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				break
			}
			return nil, fmt.Errorf("deepgram: read: %w", err)
		}
		if seg, ok := parseDeepgramResponse(msg); ok {
			segs = append(segs, seg)
		}
	}
	conn.Close(websocket.StatusNormalClosure, "done")
	return segs, nil
}

// buildURL constructs the Deepgram streaming endpoint URL for one request.
func (p *Provider) buildURL(opts stt.Options) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	lang := opts.Language
	if lang == "" {
		lang = p.language
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", lang)
	q.Set("punctuate", "true")
	for _, kw := range opts.Keywords {
		// Deepgram keyword format: word:boost (e.g., "Apple:2")
		q.Add("keywords", fmt.Sprintf("%s:%g", kw, keywordBoost))
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// deepgramResponse is the JSON structure returned by Deepgram for a Results event.
type deepgramResponse struct {
	Type     string  `json:"type"`
	IsFinal  bool    `json:"is_final"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Channel  struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// parseDeepgramResponse parses a raw Deepgram WebSocket message into a
// Segment. Returns (zero, false) for non-final, empty or non-Results messages.
func parseDeepgramResponse(data []byte) (stt.Segment, bool) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return stt.Segment{}, false
	}
	if resp.Type != "Results" || !resp.IsFinal {
		return stt.Segment{}, false
	}
	if len(resp.Channel.Alternatives) == 0 {
		return stt.Segment{}, false
	}

	alt := resp.Channel.Alternatives[0]
	if alt.Transcript == "" {
		return stt.Segment{}, false
	}
	start := time.Duration(resp.Start * float64(time.Second))
	return stt.Segment{
		Text:       alt.Transcript,
		AvgLogProb: math.Log(math.Max(alt.Confidence, minConfidence)),
		Start:      start,
		End:        start + time.Duration(resp.Duration*float64(time.Second)),
	}, true
}
