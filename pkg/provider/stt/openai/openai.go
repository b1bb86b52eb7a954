// Package openai provides an STT provider backed by the OpenAI audio
// transcription API (or any server that implements the same endpoint).
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/lettersprout/pkg/audio"
	"github.com/MrWong99/lettersprout/pkg/provider/stt"
)

// DefaultModel is the default transcription model. It is the only hosted
// model that returns per-segment avg_logprob in verbose_json.
const DefaultModel = oai.AudioModelWhisper1

// Ensure Provider implements the stt.Provider interface.
var _ stt.Provider = (*Provider)(nil)

// Provider implements stt.Provider using the OpenAI API.
type Provider struct {
	client oai.Client
	model  string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL    string
	timeout    time.Duration
	maxRetries int
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithMaxRetries sets how often the SDK retries transient failures. The
// SDK default is 2.
func WithMaxRetries(n int) Option {
	return func(c *config) {
		c.maxRetries = n
	}
}

// New constructs a new OpenAI transcription Provider.
// If model is empty, DefaultModel (whisper-1) is used.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai stt: apiKey must not be empty")
	}
	if model == "" {
		model = string(DefaultModel)
	}

	cfg := &config{maxRetries: -1}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}
	if cfg.maxRetries >= 0 {
		reqOpts = append(reqOpts, option.WithMaxRetries(cfg.maxRetries))
	}

	return &Provider{client: oai.NewClient(reqOpts...), model: model}, nil
}

// ModelID returns the configured transcription model.
func (p *Provider) ModelID() string {
	return p.model
}

// verboseTranscription is the subset of the verbose_json body the SDK does
// not model as typed fields.
type verboseTranscription struct {
	Text     string `json:"text"`
	Segments []struct {
		Text       string  `json:"text"`
		Start      float64 `json:"start"`
		End        float64 `json:"end"`
		AvgLogProb float64 `json:"avg_logprob"`
	} `json:"segments"`
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, clip []byte, opts stt.Options) ([]stt.Segment, error) {
	if len(clip) == 0 {
		return nil, errors.New("openai stt: empty audio")
	}
	container := audio.DetectContainer(clip)

	params := oai.AudioTranscriptionNewParams{
		File:           oai.File(bytes.NewReader(clip), "audio"+container.Ext(), container.MIME()),
		Model:          oai.AudioModel(p.model),
		ResponseFormat: oai.AudioResponseFormatVerboseJSON,
		Temperature:    oai.Float(0),
	}
	if opts.Language != "" {
		params.Language = oai.String(opts.Language)
	}
	if opts.Hint != "" {
		params.Prompt = oai.String(opts.Hint)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai stt: transcribe: %w", err)
	}
	return parseVerbose(resp.RawJSON(), resp.Text)
}

// parseVerbose extracts segments from the raw response body. Models that
// ignore verbose_json only return text, which becomes one neutral segment.
func parseVerbose(raw, text string) ([]stt.Segment, error) {
	var v verboseTranscription
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("openai stt: parse response: %w", err)
		}
	}
	if len(v.Segments) == 0 {
		if v.Text == "" {
			v.Text = text
		}
		if strings.TrimSpace(v.Text) == "" {
			return nil, nil
		}
		return []stt.Segment{{Text: v.Text}}, nil
	}

	segs := make([]stt.Segment, 0, len(v.Segments))
	for _, s := range v.Segments {
		segs = append(segs, stt.Segment{
			Text:       s.Text,
			AvgLogProb: s.AvgLogProb,
			Start:      time.Duration(s.Start * float64(time.Second)),
			End:        time.Duration(s.End * float64(time.Second)),
		})
	}
	return segs, nil
}
