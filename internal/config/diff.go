package config

import "reflect"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// SpeechChanged is set when any speech setting differs.
	SpeechChanged bool
	NewSpeech     SpeechConfig

	// RestartRequired lists sections that changed but only take effect on
	// restart.
	RestartRequired []string
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Speech != new.Speech {
		d.SpeechChanged = true
		d.NewSpeech = new.Speech
	}

	if old.Server.ListenAddr != new.Server.ListenAddr || !equalTLS(old.Server.TLS, new.Server.TLS) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if old.Database != new.Database {
		d.RestartRequired = append(d.RestartRequired, "database")
	}
	if old.Auth != new.Auth {
		d.RestartRequired = append(d.RestartRequired, "auth")
	}
	if !reflect.DeepEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Storage != new.Storage {
		d.RestartRequired = append(d.RestartRequired, "storage")
	}
	return d
}

func equalTLS(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
