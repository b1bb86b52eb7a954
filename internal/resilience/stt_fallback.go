package resilience

import (
	"context"

	"github.com/MrWong99/lettersprout/pkg/provider/stt"
)

// STTFallback implements [stt.Provider] with failover across several STT
// backends.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred backend.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional STT provider.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Names returns the backend names in try order.
func (f *STTFallback) Names() []string { return f.group.Names() }

// Transcribe sends audio to the first healthy backend that succeeds.
func (f *STTFallback) Transcribe(ctx context.Context, audio []byte, opts stt.Options) ([]stt.Segment, error) {
	return Execute(ctx, f.group, func(ctx context.Context, p stt.Provider) ([]stt.Segment, error) {
		return p.Transcribe(ctx, audio, opts)
	})
}
