package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/raysh454/cyberguard/internal/breach"
	"github.com/raysh454/cyberguard/internal/checks"
	"github.com/raysh454/cyberguard/internal/logging"
	"github.com/raysh454/cyberguard/internal/rulesets"
	"github.com/raysh454/cyberguard/internal/server"
	"github.com/raysh454/cyberguard/internal/session"
	"github.com/raysh454/cyberguard/internal/webclient"
)

// Application is the global runtime state container. It owns the shared
// components and releases them on Close.
type Application struct {
	Config *Config
	Logger logging.Logger

	Rules    *rulesets.Registry
	Breaches *breach.Checker
	Checks   *checks.Service
	Sessions *session.Manager
	Server   *server.Server

	closers []func() error
}

// NewApplication wires every component from cfg. On error, anything already
// opened is closed.
func NewApplication(cfg *Config, logger logging.Logger) (*Application, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}
	a := &Application{Config: cfg, Logger: logger}
	if err := a.wire(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *Application) wire() error {
	cfg := a.Config

	rules, err := rulesets.LoadRegistry(cfg.Rules.Dir, a.Logger)
	if err != nil {
		return fmt.Errorf("loading rule sets: %w", err)
	}
	a.Rules = rules

	breaches, err := a.newBreachChecker()
	if err != nil {
		return err
	}
	a.Breaches = breaches
	a.Checks = checks.NewService(rules, breaches, a.Logger)

	store, err := a.newSessionStore()
	if err != nil {
		return err
	}
	a.closers = append(a.closers, store.Close)

	policy, err := session.NewPolicy(cfg.Session.Policy)
	if err != nil {
		return fmt.Errorf("session policy: %w", err)
	}
	a.Sessions, err = session.NewManager(session.ManagerConfig{
		TTL:         cfg.Session.TTL,
		RememberTTL: cfg.Session.RememberTTL,
	}, policy, store, a.Logger)
	if err != nil {
		return err
	}

	a.Server, err = server.NewServer(cfg.Server, server.Deps{
		Checks:   a.Checks,
		Sessions: a.Sessions,
		Rules:    rules,
		Logger:   a.Logger,
	})
	return err
}

func (a *Application) newSessionStore() (session.Store, error) {
	switch a.Config.Session.Store {
	case StoreSQLite:
		st, err := session.OpenSQLiteStore(a.Config.Session.DSN, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("opening session store: %w", err)
		}
		return st, nil
	default:
		return session.NewMemoryStore(), nil
	}
}

func (a *Application) newBreachChecker() (*breach.Checker, error) {
	bc := a.Config.Breach
	opts := []breach.Option{breach.WithCache(a.newBreachCache())}

	var client webclient.WebClient
	if bc.APIKey != "" {
		wc, err := webclient.NewNetHTTPClient(webclient.Config{Timeout: bc.Timeout, UserAgent: bc.UserAgent}, a.Logger, nil)
		if err != nil {
			return nil, fmt.Errorf("creating web client: %w", err)
		}
		a.closers = append(a.closers, wc.Close)
		client = wc
	}

	return breach.NewChecker(breach.Config{
		BaseURL:   bc.BaseURL,
		APIKey:    bc.APIKey,
		UserAgent: bc.UserAgent,
	}, client, a.Logger, opts...), nil
}

// newBreachCache returns the Redis cache when configured and reachable, the
// in-memory cache otherwise.
func (a *Application) newBreachCache() breach.Cache {
	bc := a.Config.Breach
	if bc.Redis.Addr == "" {
		return breach.NewMemoryCache(bc.CacheSize, bc.CacheTTL)
	}

	rc := breach.NewRedisCache(breach.RedisOptions{
		Address:  bc.Redis.Addr,
		Password: bc.Redis.Password,
		DB:       bc.Redis.DB,
	}, bc.CacheTTL)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		a.Logger.Warn("redis unreachable, using in-memory breach cache",
			logging.Field{Key: "addr", Value: bc.Redis.Addr},
			logging.Field{Key: "error", Value: err})
		_ = rc.Close()
		return breach.NewMemoryCache(bc.CacheSize, bc.CacheTTL)
	}
	a.closers = append(a.closers, rc.Close)
	return rc
}

// Run serves the HTTP API until ctx is canceled, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return errors.New("application is not initialized")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.Sessions.RunSweeper(ctx, a.Config.Session.SweepInterval)

	srv := a.Server.HTTPServer()
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("application starting",
			logging.Field{Key: "addr", Value: srv.Addr},
			logging.Field{Key: "rulesets", Value: len(a.Rules.List())},
			logging.Field{Key: "breach_remote", Value: a.Breaches.RemoteEnabled()})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.Logger.Info("application shutdown initiated")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.Logger.Warn("http server shutdown returned error", logging.Field{Key: "error", Value: err.Error()})
	}
	return nil
}

// Close releases stores, caches and clients in reverse order of creation.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
