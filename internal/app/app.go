// Package app wires all Standvox subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP traffic and drives the live interview session,
// and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithStore, WithMetrics,
// etc.). When an option is not provided, New creates real implementations
// from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/standvox/standvox/internal/config"
	"github.com/standvox/standvox/internal/health"
	"github.com/standvox/standvox/internal/observe"
	"github.com/standvox/standvox/internal/resilience"
	"github.com/standvox/standvox/internal/server"
	"github.com/standvox/standvox/internal/session"
	"github.com/standvox/standvox/internal/standup"
	"github.com/standvox/standvox/internal/store"
	"github.com/standvox/standvox/internal/store/dayfile"
	"github.com/standvox/standvox/internal/store/postgres"
	"github.com/standvox/standvox/pkg/audio"
	"github.com/standvox/standvox/pkg/provider/realtime"
	"github.com/standvox/standvox/pkg/provider/vad"
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
//
// The HTTP record server runs regardless; the live interview session starts
// only when all three slots are filled.
type Providers struct {
	Realtime realtime.Provider
	VAD      vad.Engine
	Capture  audio.Source
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	log     *slog.Logger
	metrics *observe.Metrics

	store      store.Store
	httpServer *http.Server

	// sessCfg is prepared in New; the session itself starts in Run.
	sessCfg session.Config

	mu      sync.Mutex
	addr    string
	session *session.Manager

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a record store instead of creating one from config.
func WithStore(st store.Store) Option {
	return func(a *App) { a.store = st }
}

// WithMetrics replaces the process-wide default metrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogger replaces the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *App) { a.log = log }
}

// WithClock fixes the wall clock used for roster seeding. Zero value means
// time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.sessCfg.Now = now }
}

// New creates the application from config and providers.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Record store ──────────────────────────────────────────────────
	checkers, err := a.initStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// ── 2. Interview session config ──────────────────────────────────────
	if a.liveSessionConfigured() {
		if err := a.initSessionConfig(ctx); err != nil {
			return nil, fmt.Errorf("app: init session: %w", err)
		}
	}

	// ── 3. HTTP server ───────────────────────────────────────────────────
	a.initServer(checkers)

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStore sets up the persistence backend and returns its readiness
// checkers.
func (a *App) initStore(ctx context.Context) ([]health.Checker, error) {
	if a.store != nil {
		return nil, nil
	}

	switch a.cfg.Persistence.Backend {
	case config.BackendPostgres:
		pg, err := postgres.NewStore(ctx, a.cfg.Persistence.PostgresDSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error {
			pg.Close()
			return nil
		})

		// A transient database outage should not lose a finished interview,
		// so writes and reads fail over to the local day-file tree.
		fo := store.NewFailover(pg, "postgres", resilience.FallbackConfig{})
		dir := a.cfg.Persistence.DataDir
		if dir == "" {
			dir = "data"
		}
		fo.AddFallback("dayfile", dayfile.New(dir))
		a.store = fo
		return []health.Checker{{Name: "database", Check: pg.Ping}}, nil

	case config.BackendFile, "":
		dir := a.cfg.Persistence.DataDir
		if dir == "" {
			dir = "data"
		}
		a.store = dayfile.New(dir)
		return []health.Checker{{Name: "datadir", Check: func(context.Context) error {
			_, err := os.Stat(dir)
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}}}, nil

	default:
		return nil, fmt.Errorf("unknown persistence backend %q", a.cfg.Persistence.Backend)
	}
}

// liveSessionConfigured reports whether all providers needed for a live
// interview are present.
func (a *App) liveSessionConfigured() bool {
	return a.providers.Capture != nil && a.providers.Realtime != nil && a.providers.VAD != nil
}

// initSessionConfig seeds the roster from the previous day's records and
// assembles the session.Config used when Run starts the interview.
func (a *App) initSessionConfig(ctx context.Context) error {
	now := a.sessCfg.Now
	if now == nil {
		now = time.Now
	}

	records, err := a.store.LoadPrevious(ctx, now())
	if err != nil {
		a.log.Warn("loading previous records failed, seeding roster without history", "err", err)
		records = nil
	}
	roster := standup.RosterFromNames(a.cfg.Roster, records)

	holdMs := a.cfg.VAD.HoldMs
	if holdMs <= 0 {
		holdMs = 1800
	}

	a.sessCfg = session.Config{
		Source:   a.providers.Capture,
		VAD:      a.providers.VAD,
		Realtime: a.providers.Realtime,
		VADConfig: vad.Config{
			SampleRate:        a.cfg.VAD.SampleRate,
			CalibrationFrames: a.cfg.VAD.CalibrationFrames,
			MarginDb:          a.cfg.VAD.MarginDb,
			FloorDb:           a.cfg.VAD.FloorDb,
			Hold:              time.Duration(holdMs) * time.Millisecond,
		},
		Session: realtime.SessionConfig{
			Voice:                 a.cfg.Realtime.Voice,
			Speed:                 a.cfg.Realtime.Speed,
			TranscriptionModel:    a.cfg.Realtime.TranscriptionModel,
			TranscriptionLanguage: a.cfg.Realtime.TranscriptionLanguage,
		},
		Roster:    roster,
		Reconnect: true,
		Saver:     a.store,
		Metrics:   a.metrics,
		Logger:    a.log,
		Now:       a.sessCfg.Now,
	}
	return nil
}

// initServer assembles the HTTP routes and the listener config.
func (a *App) initServer(checkers []health.Checker) {
	srvOpts := []server.Option{
		server.WithHealth(health.New(checkers...)),
		server.WithMetrics(a.metrics),
		server.WithLogger(a.log),
	}
	if key := a.cfg.Realtime.APIKey; key != "" {
		sigOpts := []server.SignalOption{
			server.WithSignalDefaults(a.cfg.Realtime.Model, a.cfg.Realtime.Speed),
			server.WithSignalLogger(a.log),
		}
		srvOpts = append(srvOpts, server.WithSignalProxy(server.NewSignalProxy(key, sigOpts...)))
	}

	a.httpServer = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           server.New(a.store, srvOpts...).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// ─── Lifecycle ───────────────────────────────────────────────────────────────

// Run serves HTTP traffic and, when capture is configured, drives the live
// interview session. It blocks until ctx is cancelled or a subsystem fails.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen on %s: %w", a.cfg.Server.ListenAddr, err)
	}
	a.mu.Lock()
	a.addr = ln.Addr().String()
	a.mu.Unlock()
	a.log.Info("serving", "addr", ln.Addr().String())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.httpServer.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = a.httpServer.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 10*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(shutdownCtx)
	})

	if a.liveSessionConfigured() {
		g.Go(func() error {
			return a.runSession(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runSession starts the interview session and logs its notifications until
// it finishes. A session failure is logged, not fatal to the HTTP server.
func (a *App) runSession(ctx context.Context) error {
	m, err := session.Start(ctx, a.sessCfg)
	if err != nil {
		a.log.Error("starting interview session failed", "err", err)
		return nil
	}
	a.mu.Lock()
	a.session = m
	a.mu.Unlock()

	for note := range m.Notifications() {
		if note.Err != nil {
			a.log.Warn("session notification", "type", note.Type.String(), "err", note.Err)
			continue
		}
		a.log.Info("session notification",
			"type", note.Type.String(),
			"participant", note.Participant,
			"turn", note.Turn.String())
	}

	<-m.Done()
	if err := m.Err(); err != nil && !errors.Is(err, context.Canceled) {
		a.log.Error("interview session ended with error", "err", err)
	} else if m.Completed() {
		a.log.Info("interview completed", "participants", len(m.Responses().Export(time.Now())))
	}
	return nil
}

// Addr returns the bound listen address once Run has started, or the
// configured address before that.
func (a *App) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.addr != "" {
		return a.addr
	}
	return a.cfg.Server.ListenAddr
}

// Session returns the live interview session, or nil when none is running.
func (a *App) Session() *session.Manager {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

// Shutdown tears down all subsystems in order. Idempotent.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	a.stopOnce.Do(func() {
		a.mu.Lock()
		m := a.session
		a.mu.Unlock()
		if m != nil {
			m.Stop()
			select {
			case <-m.Done():
			case <-ctx.Done():
				errs = append(errs, fmt.Errorf("session did not stop: %w", ctx.Err()))
			}
		}

		if err := a.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}

		for _, closeFn := range a.closers {
			if err := closeFn(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
