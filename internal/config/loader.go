package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists the built-in STT provider names. [Validate] warns
// about names outside this list.
var ValidProviderNames = []string{"whisper", "whisper-native", "deepgram", "openai"}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands ${VAR} references from
// the environment, applies defaults and validates the result.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	expanded := os.ExpandEnv(string(raw))

	cfg := &Config{}
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "") != (tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	if cfg.Auth.SecretKey == "" {
		errs = append(errs, errors.New("auth.secret_key is required"))
	}
	if cfg.Auth.TokenTTL < 0 {
		errs = append(errs, fmt.Errorf("auth.token_ttl %s must not be negative", cfg.Auth.TokenTTL))
	}

	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required"))
	}
	validateProviderName("providers.stt", cfg.Providers.STT.Name)
	for i, fb := range cfg.Providers.STTFallbacks {
		field := fmt.Sprintf("providers.stt_fallbacks[%d]", i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", field))
			continue
		}
		validateProviderName(field, fb.Name)
	}
	if cfg.Providers.STTAttemptTimeout < 0 {
		errs = append(errs, fmt.Errorf("providers.stt_attempt_timeout %s must not be negative", cfg.Providers.STTAttemptTimeout))
	}

	if cfg.Speech.MaxAudioBytes < 0 {
		errs = append(errs, fmt.Errorf("speech.max_audio_bytes %d must not be negative", cfg.Speech.MaxAudioBytes))
	}
	if cfg.Speech.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("speech.request_timeout %s must not be negative", cfg.Speech.RequestTimeout))
	}

	if cfg.Database.PostgresDSN == "" {
		slog.Warn("database.postgres_dsn is empty; the server will refuse to start without an injected store")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not a
// built-in provider.
func validateProviderName(field, name string) {
	if name == "" || slices.Contains(ValidProviderNames, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or a third-party provider",
		"field", field,
		"name", name,
		"known", ValidProviderNames,
	)
}
