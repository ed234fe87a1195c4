package session

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/raysh454/cyberguard/internal/utils"
)

const (
	DemoEmail    = "demo@cyberguard.com"
	DemoPassword = "CyberGuard2025!"

	DefaultMinPasswordLen = 6
)

// Credential errors carry the text shown to the user.
var (
	ErrMissingFields    = errors.New("please fill in all fields")
	ErrInvalidEmail     = errors.New("please enter a valid email address")
	ErrPasswordTooShort = errors.New("password must be at least 6 characters long")
)

// PolicyConfig configures credential checks.
type PolicyConfig struct {
	DemoEmail string `yaml:"demo_email"`
	// DemoPasswordHash is a bcrypt hash. When empty, DemoPassword is hashed at startup.
	DemoPasswordHash string `yaml:"demo_password_hash"`
	MinPasswordLen   int    `yaml:"min_password_len"`
	// BcryptCost is used only when hashing DemoPassword at startup.
	BcryptCost int `yaml:"-"`
}

// Policy decides whether a login attempt is accepted. The demo credentials are
// accepted as is; any other syntactically valid email with a long enough
// password is accepted too, the demo address included.
type Policy struct {
	demoEmail string
	demoHash  []byte
	minLen    int
}

func NewPolicy(cfg PolicyConfig) (*Policy, error) {
	p := &Policy{
		demoEmail: utils.NormalizeEmail(cfg.DemoEmail),
		minLen:    cfg.MinPasswordLen,
	}
	if p.demoEmail == "" {
		p.demoEmail = DemoEmail
	}
	if p.minLen <= 0 {
		p.minLen = DefaultMinPasswordLen
	}

	if cfg.DemoPasswordHash != "" {
		if _, err := bcrypt.Cost([]byte(cfg.DemoPasswordHash)); err != nil {
			return nil, fmt.Errorf("demo password hash: %w", err)
		}
		p.demoHash = []byte(cfg.DemoPasswordHash)
		return p, nil
	}

	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), cost)
	if err != nil {
		return nil, fmt.Errorf("hash demo password: %w", err)
	}
	p.demoHash = hash
	return p, nil
}

// Authenticate validates a login attempt and returns the normalized email.
func (p *Policy) Authenticate(email, password string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", ErrMissingFields
	}
	if !utils.ValidEmail(email) {
		return "", ErrInvalidEmail
	}
	normalized := utils.NormalizeEmail(email)
	if normalized == p.demoEmail && bcrypt.CompareHashAndPassword(p.demoHash, []byte(password)) == nil {
		return normalized, nil
	}

	if len(password) < p.minLen {
		if p.minLen == DefaultMinPasswordLen {
			return "", ErrPasswordTooShort
		}
		return "", fmt.Errorf("%w (minimum %d)", ErrPasswordTooShort, p.minLen)
	}
	return normalized, nil
}
