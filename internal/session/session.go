// Package session holds the login gate: credential policy, the session value
// object created on login and removed on logout, and session stores.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for unknown, expired or logged-out sessions.
var ErrNotFound = errors.New("session not found")

// Session is the explicit login state handed to the presentation layer.
type Session struct {
	Token     string    `json:"-"`
	Email     string    `json:"email"`
	Remember  bool      `json:"remember"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store persists sessions by token.
type Store interface {
	Save(ctx context.Context, s *Session) error
	// Get returns ErrNotFound for unknown tokens.
	Get(ctx context.Context, token string) (*Session, error)
	// Delete is a no-op for unknown tokens.
	Delete(ctx context.Context, token string) error
	// DeleteExpired removes sessions that expired before now.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	Close() error
}
