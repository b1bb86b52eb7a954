// Package app wires all lettersprout subsystems into a running server.
//
// The App struct owns the full lifecycle: New connects storage and builds
// the services, Run serves HTTP until the context is cancelled, and Shutdown
// releases everything in order.
//
// For testing, inject doubles via functional options (WithStore,
// WithMetrics, ...). When an option is not provided, New creates the real
// implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/lettersprout/internal/api"
	"github.com/MrWong99/lettersprout/internal/auth"
	"github.com/MrWong99/lettersprout/internal/config"
	"github.com/MrWong99/lettersprout/internal/health"
	"github.com/MrWong99/lettersprout/internal/observe"
	"github.com/MrWong99/lettersprout/internal/progress"
	"github.com/MrWong99/lettersprout/internal/recording"
	"github.com/MrWong99/lettersprout/internal/speech"
	"github.com/MrWong99/lettersprout/internal/store"
	"github.com/MrWong99/lettersprout/internal/store/postgres"
	"github.com/MrWong99/lettersprout/pkg/provider/stt"
)

// shutdownTimeout bounds how long in-flight requests may take to finish
// once Run's context is cancelled.
const shutdownTimeout = 10 * time.Second

// Providers holds the transcription backend built by main.go via the config
// registry.
type Providers struct {
	STT stt.Provider

	// STTName labels provider metrics.
	STTName string

	// Closers release provider resources such as loaded models. They run
	// during Shutdown, or when New fails.
	Closers []func() error
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	store    store.Store
	metrics  *observe.Metrics
	logLevel *slog.LevelVar
	gatherer prometheus.Gatherer

	health *health.Handler
	api    *api.Server
	server *http.Server

	// addr is the bound listener address once Run has started.
	addrMu sync.Mutex
	addr   net.Addr
	ready  chan struct{}

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a store instead of connecting to PostgreSQL.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics injects the metric instruments. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevel gives the App the level variable of the process logger so
// config reloads can change verbosity.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = lv }
}

// WithGatherer sets the registry served on /metrics. Default:
// [prometheus.DefaultGatherer].
func WithGatherer(g prometheus.Gatherer) Option {
	return func(a *App) { a.gatherer = g }
}

// New creates an App by wiring all subsystems together.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.STT == nil {
		return nil, errors.New("app: an STT provider is required")
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		ready:     make(chan struct{}),
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.logLevel == nil {
		a.logLevel = new(slog.LevelVar)
		a.logLevel.Set(cfg.Server.LogLevel.SlogLevel())
	}
	if a.gatherer == nil {
		a.gatherer = prometheus.DefaultGatherer
	}
	a.closers = append(a.closers, providers.Closers...)

	if err := a.initStore(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("app: init store: %w", err), a.closeAll())
	}
	if err := a.initAPI(); err != nil {
		return nil, errors.Join(fmt.Errorf("app: init api: %w", err), a.closeAll())
	}

	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// initStore connects to PostgreSQL unless a store was injected.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	dsn := a.cfg.Database.PostgresDSN
	if dsn == "" {
		return errors.New("database.postgres_dsn is required when no store is injected")
	}
	s, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		return err
	}
	a.store = s
	a.closers = append(a.closers, func() error {
		s.Close()
		return nil
	})
	return nil
}

func (a *App) initAPI() error {
	authSvc, err := auth.New(a.store, []byte(a.cfg.Auth.SecretKey), auth.WithTokenTTL(a.cfg.Auth.TokenTTL))
	if err != nil {
		return err
	}
	progSvc, err := progress.New(a.store, progress.WithMetrics(a.metrics))
	if err != nil {
		return err
	}
	recSvc, err := recording.New(a.store, a.cfg.Storage.RecordingsDir, a.cfg.Storage.PublicURLPrefix)
	if err != nil {
		return err
	}
	ev, err := a.newEvaluator(a.cfg.Speech)
	if err != nil {
		return err
	}
	a.api, err = api.New(api.Deps{
		Auth:       authSvc,
		Progress:   progSvc,
		Recordings: recSvc,
		Evaluator:  ev,
	}, api.WithMaxAudioBytes(a.cfg.Speech.MaxAudioBytes))
	if err != nil {
		return err
	}
	a.health = health.New(health.Checker{Name: "database", Check: a.store.Ping})
	return nil
}

func (a *App) newEvaluator(sc config.SpeechConfig) (*speech.Evaluator, error) {
	name := a.providers.STTName
	if name == "" {
		name = "stt"
	}
	return speech.New(a.providers.STT,
		speech.WithLanguage(sc.Language),
		speech.WithTimeout(sc.RequestTimeout),
		speech.WithMetrics(a.metrics),
		speech.WithProviderName(name),
	)
}

// Handler returns the complete HTTP handler: API, health, metrics and
// recording downloads, wrapped in CORS and observability middleware.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	a.api.Register(mux)
	a.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))

	// Recordings are only served locally when the public prefix is a path.
	if prefix := strings.TrimRight(a.cfg.Storage.PublicURLPrefix, "/"); strings.HasPrefix(prefix, "/") {
		fs := http.FileServer(http.Dir(a.cfg.Storage.RecordingsDir))
		mux.Handle("GET "+prefix+"/", http.StripPrefix(prefix+"/", fs))
	}

	return observe.Middleware(a.metrics)(api.CORS(a.cfg.Server.CORSOrigins)(mux))
}

// Reload applies a changed config. Log level and speech settings take
// effect immediately; every other change is reported as needing a restart.
func (a *App) Reload(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.LogLevelChanged {
		a.logLevel.Set(d.NewLogLevel.SlogLevel())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.SpeechChanged {
		ev, err := a.newEvaluator(d.NewSpeech)
		if err != nil {
			slog.Error("rebuild evaluator", "err", err)
		} else {
			a.api.SetEvaluator(ev)
			a.api.SetMaxAudioBytes(d.NewSpeech.MaxAudioBytes)
			slog.Info("speech settings reloaded",
				"language", d.NewSpeech.Language,
				"timeout", d.NewSpeech.RequestTimeout,
				"max_audio_bytes", d.NewSpeech.MaxAudioBytes,
			)
		}
	}
	for _, section := range d.RestartRequired {
		slog.Warn("config change requires restart", "section", section)
	}
}

// Addr blocks until Run has bound its listener and returns the address.
func (a *App) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case <-a.ready:
		a.addrMu.Lock()
		defer a.addrMu.Unlock()
		return a.addr, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run serves HTTP and runs each background task until ctx is cancelled or
// any of them fails. In-flight requests get [shutdownTimeout] to finish.
// Run returns nil after a clean cancellation. It must be called at most once.
func (a *App) Run(ctx context.Context, background ...func(context.Context) error) error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("app: listen: %w", err)
	}
	a.addrMu.Lock()
	a.addr = ln.Addr()
	a.addrMu.Unlock()
	close(a.ready)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.server.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		a.health.SetDraining()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(sctx)
	})

	for _, fn := range background {
		g.Go(func() error { return fn(gctx) })
	}

	slog.Info("server listening", "addr", ln.Addr().String(), "tls", a.cfg.Server.TLS != nil)
	return g.Wait()
}

// Shutdown stops the HTTP server if it is still running and releases all
// resources. It is safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		a.health.SetDraining()
		err = errors.Join(a.server.Shutdown(ctx), a.closeAll())
	})
	return err
}

func (a *App) closeAll() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
