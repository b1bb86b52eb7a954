package config_test

import (
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/lettersprout/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{ListenAddr: ":20000", LogLevel: config.LogInfo},
		Database: config.DatabaseConfig{PostgresDSN: "postgres://localhost/ls"},
		Auth:     config.AuthConfig{SecretKey: "k", TokenTTL: time.Hour},
		Providers: config.ProvidersConfig{
			STT: config.ProviderEntry{Name: "whisper", Options: map[string]any{"threads": 2}},
		},
		Speech:  config.SpeechConfig{Language: "en", MaxAudioBytes: 1024, RequestTimeout: time.Second},
		Storage: config.StorageConfig{RecordingsDir: "rec", PublicURLPrefix: "/rec"},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	d := config.Diff(baseConfig(), baseConfig())
	if d.LogLevelChanged || d.SpeechChanged || len(d.RestartRequired) != 0 {
		t.Errorf("expected empty diff for identical configs, got %+v", d)
	}
}

func TestDiff(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		mutate      func(c *config.Config)
		wantLog     bool
		wantSpeech  bool
		wantRestart []string
	}{
		{
			name:    "log level",
			mutate:  func(c *config.Config) { c.Server.LogLevel = config.LogDebug },
			wantLog: true,
		},
		{
			name:       "speech timeout",
			mutate:     func(c *config.Config) { c.Speech.RequestTimeout = 5 * time.Second },
			wantSpeech: true,
		},
		{
			name:        "listen address",
			mutate:      func(c *config.Config) { c.Server.ListenAddr = ":9999" },
			wantRestart: []string{"server"},
		},
		{
			name:        "tls added",
			mutate:      func(c *config.Config) { c.Server.TLS = &config.TLSConfig{CertFile: "c", KeyFile: "k"} },
			wantRestart: []string{"server"},
		},
		{
			name:        "provider option",
			mutate:      func(c *config.Config) { c.Providers.STT.Options["threads"] = 8 },
			wantRestart: []string{"providers"},
		},
		{
			name: "secret and storage",
			mutate: func(c *config.Config) {
				c.Auth.SecretKey = "rotated"
				c.Storage.RecordingsDir = "elsewhere"
			},
			wantRestart: []string{"auth", "storage"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			newCfg := baseConfig()
			tc.mutate(newCfg)
			d := config.Diff(baseConfig(), newCfg)
			if d.LogLevelChanged != tc.wantLog {
				t.Errorf("LogLevelChanged = %v, want %v", d.LogLevelChanged, tc.wantLog)
			}
			if d.SpeechChanged != tc.wantSpeech {
				t.Errorf("SpeechChanged = %v, want %v", d.SpeechChanged, tc.wantSpeech)
			}
			if !slices.Equal(d.RestartRequired, tc.wantRestart) {
				t.Errorf("RestartRequired = %v, want %v", d.RestartRequired, tc.wantRestart)
			}
		})
	}
}
