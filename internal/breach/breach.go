// Package breach looks up whether an email address appears in known data
// breaches. A remote lookup is attempted when configured; on any failure the
// result is computed from a local catalog instead.
package breach

import (
	"errors"
	"time"
)

var (
	// ErrServiceUnavailable marks a failed remote lookup. It is always
	// recovered from and surfaced through Report.FallbackReason.
	ErrServiceUnavailable = errors.New("breach service unavailable")
	ErrInvalidEmail       = errors.New("invalid email address")
)

// Breach mirrors the breach model of the haveibeenpwned v3 API.
type Breach struct {
	Name        string   `json:"Name"`
	Title       string   `json:"Title"`
	Domain      string   `json:"Domain"`
	BreachDate  string   `json:"BreachDate"`
	PwnCount    int64    `json:"PwnCount"`
	Description string   `json:"Description,omitempty"`
	DataClasses []string `json:"DataClasses,omitempty"`
}

type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// Report is the outcome of one breach check.
type Report struct {
	Email           string    `json:"email"`
	Compromised     bool      `json:"compromised"`
	Breaches        []Breach  `json:"breaches"`
	Source          Source    `json:"source"`
	FallbackReason  string    `json:"fallbackReason,omitempty"`
	Cached          bool      `json:"cached"`
	Recommendations []string  `json:"recommendations"`
	CheckedAt       time.Time `json:"checkedAt"`
}

// Recommendations returns the advice shown for a result with the given
// number of breaches.
func Recommendations(breachCount int) []string {
	var out []string
	if breachCount > 0 {
		out = append(out,
			"Change your password immediately on all affected services",
			"Enable two-factor authentication (2FA) where available",
			"Monitor your accounts for suspicious activity",
			"Consider using a password manager",
			"Check if your other accounts use the same password",
		)
		if breachCount > 1 {
			out = append(out, "Your email appears in multiple breaches - consider changing your email if possible")
		}
	} else {
		out = append(out,
			"Your email was not found in known breaches",
			"Continue using strong, unique passwords",
			"Enable 2FA on important accounts",
			"Regularly check for new breaches",
			"Keep your software and security tools updated",
		)
	}
	return append(out,
		"Sign up for breach notification services",
		"Be cautious of phishing attempts following data breaches",
	)
}

func newReport(email string, breaches []Breach, src Source, now time.Time) *Report {
	if breaches == nil {
		breaches = []Breach{}
	}
	return &Report{
		Email:           email,
		Compromised:     len(breaches) > 0,
		Breaches:        breaches,
		Source:          src,
		Recommendations: Recommendations(len(breaches)),
		CheckedAt:       now,
	}
}
