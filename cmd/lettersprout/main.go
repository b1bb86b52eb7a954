// Command lettersprout is the main entry point for the LetterSprout
// letter-learning API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/lettersprout/internal/app"
	"github.com/MrWong99/lettersprout/internal/config"
	"github.com/MrWong99/lettersprout/internal/observe"
	"github.com/MrWong99/lettersprout/internal/resilience"
	"github.com/MrWong99/lettersprout/pkg/provider/stt"
	"github.com/MrWong99/lettersprout/pkg/provider/stt/deepgram"
	oaistt "github.com/MrWong99/lettersprout/pkg/provider/stt/openai"
	"github.com/MrWong99/lettersprout/pkg/provider/stt/whisper"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "lettersprout: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "lettersprout: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel := new(slog.LevelVar)
	logLevel.Set(cfg.Server.LogLevel.SlogLevel())
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("lettersprout starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers, app.WithLogLevel(logLevel))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	watcher, err := config.NewWatcher(*configPath, application.Reload)
	if err != nil {
		slog.Error("failed to start config watcher", "err", err)
		_ = application.Shutdown(context.Background())
		return 1
	}

	code := 0
	if err := application.Run(ctx, watcher.Run); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		code = 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return code
}

// ── Provider registration ─────────────────────────────────────────────────────

// registerBuiltinProviders adds a factory for every built-in STT backend.
// Empty config values leave the provider's own default in place.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterSTT("whisper", func(e config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if e.Model != "" {
			opts = append(opts, whisper.WithModel(e.Model))
		}
		if lang := e.OptionString("language", ""); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(e.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(e config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.NativeOption
		if lang := e.OptionString("language", ""); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		if n := e.OptionInt("threads", 0); n > 0 {
			opts = append(opts, whisper.WithNativeThreads(uint(n)))
		}
		return whisper.NewNative(e.Model, opts...)
	})

	reg.RegisterSTT("deepgram", func(e config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if e.Model != "" {
			opts = append(opts, deepgram.WithModel(e.Model))
		}
		if lang := e.OptionString("language", ""); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if e.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(e.BaseURL))
		}
		return deepgram.New(e.APIKey, opts...)
	})

	reg.RegisterSTT("openai", func(e config.ProviderEntry) (stt.Provider, error) {
		var opts []oaistt.Option
		if e.BaseURL != "" {
			opts = append(opts, oaistt.WithBaseURL(e.BaseURL))
		}
		if n := e.OptionInt("max_retries", -1); n >= 0 {
			opts = append(opts, oaistt.WithMaxRetries(n))
		}
		if d, err := time.ParseDuration(e.OptionString("timeout", "")); err == nil && d > 0 {
			opts = append(opts, oaistt.WithTimeout(d))
		}
		return oaistt.New(e.APIKey, e.Model, opts...)
	})
}

// buildProviders instantiates the primary STT provider and its fallbacks.
// With fallbacks configured the primary is wrapped in a circuit-breaking
// fallback chain.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	create := func(entry config.ProviderEntry) (stt.Provider, error) {
		p, err := reg.CreateSTT(entry)
		if err != nil {
			return nil, fmt.Errorf("create stt provider %q: %w", entry.Name, err)
		}
		if c, ok := p.(io.Closer); ok {
			ps.Closers = append(ps.Closers, c.Close)
		}
		slog.Info("provider created", "kind", "stt", "name", entry.Name)
		return p, nil
	}
	fail := func(err error) (*app.Providers, error) {
		for _, c := range ps.Closers {
			_ = c()
		}
		return nil, err
	}

	primary, err := create(cfg.Providers.STT)
	if err != nil {
		return fail(err)
	}
	ps.STT = primary
	ps.STTName = cfg.Providers.STT.Name

	if len(cfg.Providers.STTFallbacks) == 0 {
		return ps, nil
	}
	chain := resilience.NewSTTFallback(primary, cfg.Providers.STT.Name, resilience.FallbackConfig{
		AttemptTimeout: attemptTimeout(cfg),
	})
	for _, entry := range cfg.Providers.STTFallbacks {
		p, err := create(entry)
		if err != nil {
			return fail(err)
		}
		chain.AddFallback(entry.Name, p)
	}
	ps.STT = chain
	ps.STTName = "fallback"
	slog.Info("stt fallback chain", "order", chain.Names())
	return ps, nil
}

// attemptTimeout gives each chain entry its own share of the evaluation
// budget, so a hanging primary cannot starve the fallbacks.
func attemptTimeout(cfg *config.Config) time.Duration {
	if d := cfg.Providers.STTAttemptTimeout; d > 0 {
		return d
	}
	return cfg.Speech.RequestTimeout / time.Duration(len(cfg.Providers.STTFallbacks)+1)
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║      LetterSprout · startup summary   ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("STT", providerLabel(cfg.Providers.STT))
	printRow("STT fallbacks", fmt.Sprint(len(cfg.Providers.STTFallbacks)))
	printRow("Language", cfg.Speech.Language)
	printRow("Recordings", cfg.Storage.RecordingsDir)
	printRow("Listen addr", cfg.Server.ListenAddr)
	if cfg.Server.TLS != nil {
		printRow("TLS", "enabled")
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func providerLabel(e config.ProviderEntry) string {
	if e.Name == "" {
		return "(not configured)"
	}
	if e.Model != "" {
		return e.Name + " / " + e.Model
	}
	return e.Name
}

func printRow(label, value string) {
	if r := []rune(value); len(r) > 19 {
		value = string(r[:18]) + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", label, value)
}
