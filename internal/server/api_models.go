package server

import (
	"time"

	"github.com/raysh454/cyberguard/internal/checks"
	"github.com/raysh454/cyberguard/internal/scoring"
)

// LoginRequest is the payload of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

// SessionResponse describes the current session. Token is only set on login.
type SessionResponse struct {
	Token     string    `json:"token,omitempty"`
	Email     string    `json:"email"`
	Remember  bool      `json:"remember"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CheckRequest is the payload of the POST /checks/* endpoints. Breach checks
// read Email and fall back to Text.
type CheckRequest struct {
	Text  string `json:"text"`
	Email string `json:"email,omitempty"`
}

// RuleSummary is one rule as listed by GET /rulesets.
type RuleSummary struct {
	ID      string            `json:"id"`
	Message string            `json:"message"`
	Weight  float64           `json:"weight"`
	Match   scoring.MatchMode `json:"match"`
	Field   scoring.Field     `json:"field"`
}

// RuleSetSummary is one rule set as listed by GET /rulesets.
type RuleSetSummary struct {
	Name       string             `json:"name"`
	Kind       scoring.Kind       `json:"kind"`
	Version    string             `json:"version"`
	Scale      scoring.Scale      `json:"scale"`
	Thresholds scoring.Thresholds `json:"thresholds"`
	Rules      []RuleSummary      `json:"rules"`
}

// WSRequest is a check submitted over /ws/checks. ID is echoed in every event.
type WSRequest struct {
	ID   string      `json:"id,omitempty"`
	Kind checks.Kind `json:"kind"`
	Text string      `json:"text"`
}

// WSEvent is sent over /ws/checks: a "status" event when a check starts,
// then a "result" or "error" event.
type WSEvent struct {
	Type   string         `json:"type"`
	ID     string         `json:"id,omitempty"`
	Kind   checks.Kind    `json:"kind,omitempty"`
	Status string         `json:"status,omitempty"`
	Report *checks.Report `json:"report,omitempty"`
	Error  string         `json:"error,omitempty"`
	Code   int            `json:"code,omitempty"`
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error"`
	Login string `json:"login,omitempty"`
}
