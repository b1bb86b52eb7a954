package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/lettersprout/pkg/provider/stt"
)

// ErrProviderNotRegistered is returned by [Registry.CreateSTT] when no
// factory has been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// STTFactory builds an STT provider from its config entry.
type STTFactory func(ProviderEntry) (stt.Provider, error)

// Registry maps provider names to their constructor functions. It is safe
// for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	stt map[string]STTFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{stt: make(map[string]STTFactory)}
}

// RegisterSTT registers an STT provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterSTT(name string, factory STTFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// CreateSTT instantiates an STT provider using the factory registered under
// entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	p, err := factory(entry)
	if err != nil {
		return nil, fmt.Errorf("config: create stt/%q: %w", entry.Name, err)
	}
	return p, nil
}

// STTNames returns the registered provider names in sorted order.
func (r *Registry) STTNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.stt))
	for n := range r.stt {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// OptionString reads a string option, returning def when it is missing or
// not a string.
func (e ProviderEntry) OptionString(key, def string) string {
	if v, ok := e.Options[key].(string); ok {
		return v
	}
	return def
}

// OptionInt reads an integer option. YAML integers decode as int; floats
// with no fraction are accepted too.
func (e ProviderEntry) OptionInt(key string, def int) int {
	switch v := e.Options[key].(type) {
	case int:
		return v
	case float64:
		if v == float64(int(v)) {
			return int(v)
		}
	}
	return def
}
