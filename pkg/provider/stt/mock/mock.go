// Package mock provides test doubles for the stt package interfaces.
//
// Example:
//
//	p := &mock.Provider{Segments: []stt.Segment{{Text: "apple", AvgLogProb: -0.1}}}
//	segs, _ := p.Transcribe(ctx, audio, stt.Options{Hint: "A. Apple."})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/lettersprout/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Audio is a copy of the audio bytes.
	Audio []byte
	// Opts is the Options value passed to Transcribe.
	Opts stt.Options
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Segments is returned by every Transcribe call that does not fail.
	Segments []stt.Segment

	// TranscribeErr, if non-nil, is returned as the error from Transcribe.
	TranscribeErr error

	// BlockUntilDone makes Transcribe wait for ctx to be cancelled and
	// return ctx.Err(). Useful for timeout tests.
	BlockUntilDone bool

	// TranscribeCalls records every call to Transcribe.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns Segments, TranscribeErr.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, opts stt.Options) ([]stt.Segment, error) {
	p.mu.Lock()
	cp := make([]byte, len(audio))
	copy(cp, audio)
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, Audio: cp, Opts: opts})
	block := p.BlockUntilDone
	segs := append([]stt.Segment(nil), p.Segments...)
	err := p.TranscribeErr
	p.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return segs, nil
}

// CallCount returns the number of Transcribe calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranscribeCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
