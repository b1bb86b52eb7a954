// Package whisper provides whisper.cpp-backed STT providers.
//
// Provider talks to a running whisper-server binary, which exposes a REST
// API at POST /inference. The clip is uploaded as-is together with the
// recognition hint as the initial prompt, and the server is asked for
// verbose JSON so that every segment comes back with its average token
// log-probability.
//
// NativeProvider (native.go) runs the same model in-process through the
// whisper.cpp CGO bindings.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8080",
//	    whisper.WithLanguage("en"),
//	)
//	segs, err := p.Transcribe(ctx, wav, stt.Options{Hint: "A. Apple."})
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/lettersprout/pkg/audio"
	"github.com/MrWong99/lettersprout/pkg/provider/stt"
)

const (
	defaultLanguage = "en"

	// defaultBeamSize matches whisper's reference decoding setup for short
	// utterances.
	defaultBeamSize = 5
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g., "base.en", "small"). When empty the server uses whichever model it
// was started with. This is the default.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the language code sent to the whisper.cpp server when
// the request does not carry one (e.g., "en", "de"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithHTTPClient replaces the default HTTP client (30 s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements stt.Provider backed by a whisper.cpp HTTP server.
type Provider struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a new Provider that connects to the whisper.cpp HTTP server at
// serverURL (e.g., "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// inferenceResponse is the verbose_json body returned by whisper-server.
type inferenceResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		Text       string  `json:"text"`
		Start      float64 `json:"start"`
		End        float64 `json:"end"`
		AvgLogProb float64 `json:"avg_logprob"`
	} `json:"segments"`
}

// Transcribe uploads audio to the /inference endpoint as multipart/form-data
// and returns the recognized segments.
func (p *Provider) Transcribe(ctx context.Context, clip []byte, opts stt.Options) ([]stt.Segment, error) {
	if len(clip) == 0 {
		return nil, errors.New("whisper: empty audio")
	}
	lang := opts.Language
	if lang == "" {
		lang = p.language
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio"+audio.DetectContainer(clip).Ext())
	if err != nil {
		return nil, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(clip); err != nil {
		return nil, fmt.Errorf("whisper: write audio data: %w", err)
	}

	fields := [][2]string{
		{"response_format", "verbose_json"},
		{"temperature", "0"},
		{"beam_size", fmt.Sprint(defaultBeamSize)},
		{"language", lang},
		{"prompt", opts.Hint},
		{"model", p.model},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("whisper: write %s field: %w", f[0], err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", &body)
	if err != nil {
		return nil, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("whisper: server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("whisper: read response body: %w", err)
	}

	var result inferenceResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("whisper: parse JSON response: %w", err)
	}
	return result.segments(), nil
}

// segments converts the response into stt segments. Servers built without
// verbose output only return the top-level text; that is reported as a
// single segment with a neutral log-probability of 0.
func (r inferenceResponse) segments() []stt.Segment {
	if len(r.Segments) == 0 {
		if strings.TrimSpace(r.Text) == "" {
			return nil
		}
		return []stt.Segment{{Text: r.Text}}
	}
	out := make([]stt.Segment, 0, len(r.Segments))
	for _, s := range r.Segments {
		out = append(out, stt.Segment{
			Text:       s.Text,
			AvgLogProb: s.AvgLogProb,
			Start:      seconds(s.Start),
			End:        seconds(s.End),
		})
	}
	return out
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
