// Package app wires the loft server runtime: config, logging, stores, HTTP
// routes, and background maintenance.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"loft/cmd/identity"
	authapi "loft/cmd/internal/auth/api"
	"loft/cmd/internal/auth/session"
	"loft/cmd/internal/room"
	"loft/cmd/security/password"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is a small app-level lifecycle abstraction.
// It exists to allow DB-backed resources to be closed gracefully.
type Store interface {
	Close(ctx context.Context) error
}

// nopStore is used for in-memory store mode.
type nopStore struct{}

func (nopStore) Close(_ context.Context) error { return nil }

type dbStore struct {
	pool *pgxpool.Pool
}

func (s dbStore) Close(_ context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// App is the loft server runtime.
type App struct {
	cfg Config
	log Logger

	store Store

	dbPool    *pgxpool.Pool
	dbEnabled bool

	sessions     *session.Service
	sessionStore session.Store

	auth    *authapi.Handler
	rooms   *room.Handler
	metrics *Metrics
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	st, dbPool, dbEnabled, deps, err := newStores(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		_ = st.Close(context.Background())
		return nil, err
	}
	pwCfg, err := password.FromEnv()
	if err != nil {
		_ = st.Close(context.Background())
		return nil, err
	}
	tokens, err := session.NewHS256Manager(sessCfg)
	if err != nil {
		_ = st.Close(context.Background())
		return nil, err
	}

	sessionSvc, err := session.NewService(sessCfg, deps.users, deps.sessions, tokens, pwCfg)
	if err != nil {
		_ = st.Close(context.Background())
		return nil, err
	}

	authCfg := authapi.LoadConfigFromEnv()

	var authOpts []authapi.HandlerOption
	if sender, ok := authapi.NewSendGridSenderFromEnv(authCfg.ResetURLBase); ok {
		log.Info("email.sendgrid.enabled")
		authOpts = append(authOpts, authapi.WithEmailSender(sender))
	} else {
		log.Info("email.disabled.noop_sender")
	}

	authHandler, err := authapi.NewHandler(log, authCfg, sessionSvc, deps.users, authOpts...)
	if err != nil {
		_ = st.Close(context.Background())
		return nil, err
	}

	roomHandler, err := room.NewHandler(log, sessionSvc, deps.rooms)
	if err != nil {
		_ = st.Close(context.Background())
		return nil, err
	}

	var metrics *Metrics
	if cfg.MetricsEnabled {
		metrics = NewMetrics()
	}

	return &App{
		cfg:          cfg,
		log:          log,
		store:        st,
		dbPool:       dbPool,
		dbEnabled:    dbEnabled,
		sessions:     sessionSvc,
		sessionStore: deps.sessions,
		auth:         authHandler,
		rooms:        roomHandler,
		metrics:      metrics,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal
// server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.auth, a.rooms, a.metrics)

	var handler http.Handler = mux
	if a.metrics != nil {
		handler = a.metrics.WithMetrics(mux)
	}
	handler = WithCORS(handler, a.cfg, a.log)
	handler = WithSecurityHeaders(handler)
	handler = WithRequestLogging(handler, a.log)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go a.sweepExpiredSessions(sweepCtx)

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if err := a.store.Close(shutdownCtx); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return nil
}

// sweepExpiredSessions periodically removes expired refresh records so the
// store does not grow without bound.
func (a *App) sweepExpiredSessions(ctx context.Context) {
	interval := nonZeroDuration(a.cfg.SessionSweepInterval, 10*time.Minute)

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		sweep, cancel := context.WithTimeout(ctx, 30*time.Second)
		n, err := a.sessionStore.DeleteExpired(sweep, time.Now().UTC())
		cancel()

		if err != nil {
			if !errors.Is(err, context.Canceled) {
				a.log.Error("session.sweep.fail", "err", err)
			}
			continue
		}
		if n > 0 {
			a.log.Info("session.sweep.ok", "removed", n)
		}
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// storeDeps bundles the per-domain stores behind their interfaces.
type storeDeps struct {
	users    identity.Directory
	sessions session.Store
	rooms    room.Store
}

// newStores decides between Postgres-backed persistence and the in-memory
// dev stores.
func newStores(ctx context.Context, cfg Config, log Logger) (Store, *pgxpool.Pool, bool, storeDeps, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return nopStore{}, nil, false, storeDeps{
			users:    identity.NewMemoryDirectory(),
			sessions: session.NewMemoryStore(),
			rooms:    room.NewMemoryStore(),
		}, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, false, storeDeps{}, err
	}

	if cfg.MigrateOnStart {
		if err := MigrateDB(ctx, pool, log); err != nil {
			pool.Close()
			return nil, nil, false, storeDeps{}, err
		}
	}

	log.Info("db.enabled.postgres_store")

	users, err := identity.NewPostgresDirectory(pool)
	if err != nil {
		pool.Close()
		return nil, nil, false, storeDeps{}, err
	}
	sessions, err := session.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return nil, nil, false, storeDeps{}, err
	}
	rooms, err := room.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return nil, nil, false, storeDeps{}, err
	}

	return dbStore{pool: pool}, pool, true, storeDeps{
		users:    users,
		sessions: sessions,
		rooms:    rooms,
	}, nil
}
