// Package checks turns raw user input into check reports: it selects the
// rule set for an input kind, runs the scoring engine and attaches the
// label, recommendations and per-link results the presentation layer shows.
package checks

import (
	"errors"
	"time"

	"github.com/raysh454/cyberguard/internal/breach"
	"github.com/raysh454/cyberguard/internal/scoring"
)

// ErrEmptyInput is returned before any engine call when the input is blank.
var ErrEmptyInput = errors.New("input is empty")

// Kind names a check. The first three map to scoring kinds.
type Kind string

const (
	KindEmail  Kind = "email"
	KindURL    Kind = "url"
	KindText   Kind = "text"
	KindBreach Kind = "breach"
)

// Request is the input slot of a check.
type Request struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text"`
}

// LinkResult is the phishing-url score of one link found in an email.
type LinkResult struct {
	URL            string                 `json:"url"`
	Score          int                    `json:"score"`
	Classification scoring.Classification `json:"classification"`
	Label          string                 `json:"label"`
	Findings       []scoring.Finding      `json:"findings"`
}

// Report is the output slot of a check.
type Report struct {
	ID              string                 `json:"id"`
	Kind            Kind                   `json:"kind"`
	Input           string                 `json:"input"`
	Score           int                    `json:"score"`
	Classification  scoring.Classification `json:"classification"`
	Label           string                 `json:"label"`
	Findings        []scoring.Finding      `json:"findings"`
	Recommendations []string               `json:"recommendations"`
	Links           []LinkResult           `json:"links,omitempty"`
	Breach          *breach.Report         `json:"breach,omitempty"`
	RuleSet         string                 `json:"ruleSet,omitempty"`
	RuleSetVersion  string                 `json:"ruleSetVersion,omitempty"`
	CheckedAt       time.Time              `json:"checkedAt"`
}
