package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/raysh454/cyberguard/internal/logging"
)

const (
	DefaultTTL         = 12 * time.Hour
	DefaultRememberTTL = 30 * 24 * time.Hour
)

// ManagerConfig sets session lifetimes.
type ManagerConfig struct {
	TTL         time.Duration
	RememberTTL time.Duration
}

// Manager owns session init (Login) and teardown (Logout).
type Manager struct {
	policy      *Policy
	store       Store
	ttl         time.Duration
	rememberTTL time.Duration
	logger      logging.Logger
	now         func() time.Time
}

func NewManager(cfg ManagerConfig, policy *Policy, store Store, logger logging.Logger) (*Manager, error) {
	if policy == nil {
		return nil, fmt.Errorf("policy is nil")
	}
	if store == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.RememberTTL <= 0 {
		cfg.RememberTTL = DefaultRememberTTL
	}
	return &Manager{
		policy:      policy,
		store:       store,
		ttl:         cfg.TTL,
		rememberTTL: cfg.RememberTTL,
		logger:      logger.With(logging.Field{Key: "component", Value: "session"}),
		now:         time.Now,
	}, nil
}

// SetClock overrides the time source. Intended for tests.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// Login checks credentials and stores a new session.
func (m *Manager) Login(ctx context.Context, email, password string, remember bool) (*Session, error) {
	normalized, err := m.policy.Authenticate(email, password)
	if err != nil {
		m.logger.Info("login rejected", logging.Field{Key: "reason", Value: err.Error()})
		return nil, err
	}

	now := m.now().UTC()
	ttl := m.ttl
	if remember {
		ttl = m.rememberTTL
	}
	s := &Session{
		Token:     uuid.New().String(),
		Email:     normalized,
		Remember:  remember,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := m.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	m.logger.Info("login", logging.Field{Key: "email", Value: normalized}, logging.Field{Key: "remember", Value: remember})
	return s, nil
}

// Logout removes the session. Unknown tokens are not an error.
func (m *Manager) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.store.Delete(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Lookup resolves a token. Expired sessions are deleted and reported as ErrNotFound.
func (m *Manager) Lookup(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	s, err := m.store.Get(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if s.Expired(m.now()) {
		if err := m.store.Delete(ctx, token); err != nil {
			m.logger.Warn("failed to delete expired session", logging.Field{Key: "error", Value: err})
		}
		return nil, ErrNotFound
	}
	return s, nil
}

// Sweep deletes expired sessions and returns how many were removed.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	n, err := m.store.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	if n > 0 {
		m.logger.Debug("swept expired sessions", logging.Field{Key: "count", Value: n})
	}
	return n, nil
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Sweep(ctx); err != nil {
				m.logger.Warn("session sweep failed", logging.Field{Key: "error", Value: err})
			}
		}
	}
}
