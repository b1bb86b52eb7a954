// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription engine (a whisper.cpp server, the
// in-process whisper.cpp bindings, Deepgram, or the OpenAI audio API) and
// exposes a uniform batch interface: one short audio clip in, zero or more
// recognized Segment values out. Each segment carries a raw log-likelihood
// style confidence signal that callers map into their own scoring domain.
//
// Implementations must be safe for concurrent use.
package stt

import "context"

// Options carries per-request recognition hints.
type Options struct {
	// Language is the BCP-47 language tag for recognition (e.g., "en").
	// An empty string lets the provider fall back to its configured default.
	Language string

	// Hint biases recognition toward the expected utterance (for whisper
	// this becomes the initial prompt).
	// It is a quality hint, not a correctness guarantee.
	Hint string

	// Keywords are individual vocabulary words to boost, for providers that
	// support keyword boosting instead of free-text prompts.
	Keywords []string
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe recognizes speech in a complete audio clip. The clip is
	// usually a WAV file, but browsers often upload WebM or Ogg; providers
	// that cannot decode a container return an error.
	//
	// A clip with no speech yields an empty slice and a nil error. An error
	// means the provider could not produce a transcript at all (network
	// failure, unreadable audio, ctx cancelled).
	Transcribe(ctx context.Context, audio []byte, opts Options) ([]Segment, error)
}
