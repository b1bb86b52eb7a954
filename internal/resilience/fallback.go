package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrAllFailed is returned when every entry in a [FallbackGroup] failed or
// was skipped because its breaker was open.
var ErrAllFailed = errors.New("resilience: all providers failed")

// FallbackConfig configures the breaker created for each entry of a
// [FallbackGroup]. Name is overwritten per entry.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig

	// AttemptTimeout bounds each entry's call on its own, so a hanging
	// entry leaves time for the next one. Zero means only the caller's
	// context applies.
	AttemptTimeout time.Duration
}

type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup holds a primary and zero or more fallbacks of the same
// provider type, each behind its own [CircuitBreaker].
//
// Entries must all be added before the group is shared between goroutines.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     FallbackConfig
}

// NewFallbackGroup creates a [FallbackGroup] with primary as the first entry.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{cfg: cfg}
	fg.AddFallback(primaryName, primary)
	return fg
}

// AddFallback appends an entry. Entries are tried in the order added.
func (fg *FallbackGroup[T]) AddFallback(name string, value T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	fg.entries = append(fg.entries, fallbackEntry[T]{
		name:    name,
		value:   value,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// Names returns the entry names in try order.
func (fg *FallbackGroup[T]) Names() []string {
	names := make([]string, len(fg.entries))
	for i, e := range fg.entries {
		names[i] = e.name
	}
	return names
}

// Breaker returns the breaker guarding the named entry, or nil.
func (fg *FallbackGroup[T]) Breaker(name string) *CircuitBreaker {
	for i := range fg.entries {
		if fg.entries[i].name == name {
			return fg.entries[i].breaker
		}
	}
	return nil
}

// Execute runs fn against each entry in order until one succeeds. It stops
// early once ctx is done. The returned error matches [ErrAllFailed] and
// every per-entry error under errors.Is.
func Execute[T, R any](ctx context.Context, fg *FallbackGroup[T], fn func(context.Context, T) (R, error)) (R, error) {
	var (
		zero R
		errs []error
	)
	for i := range fg.entries {
		entry := &fg.entries[i]
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		var result R
		err := entry.breaker.Execute(func() error {
			actx := ctx
			if fg.cfg.AttemptTimeout > 0 {
				var cancel context.CancelFunc
				actx, cancel = context.WithTimeout(ctx, fg.cfg.AttemptTimeout)
				defer cancel()
			}
			var innerErr error
			result, innerErr = fn(actx, entry.value)
			return innerErr
		})
		if err == nil {
			if i > 0 {
				slog.Info("served by fallback provider", "provider", entry.name)
			}
			return result, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", entry.name, err))
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping provider (circuit open)", "provider", entry.name)
		} else {
			slog.Warn("provider failed, trying next", "provider", entry.name, "err", err)
		}
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(errs...))
}
