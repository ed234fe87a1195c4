package checks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/raysh454/cyberguard/internal/breach"
	"github.com/raysh454/cyberguard/internal/logging"
	"github.com/raysh454/cyberguard/internal/rulesets"
	"github.com/raysh454/cyberguard/internal/scoring"
	"github.com/raysh454/cyberguard/internal/utils"
)

// RuleSource resolves the rule set for a kind. *rulesets.Registry implements it.
type RuleSource interface {
	Lookup(kind scoring.Kind) (*scoring.RuleSet, error)
}

// BreachChecker is the breach collaborator. *breach.Checker implements it.
type BreachChecker interface {
	Check(ctx context.Context, email string) (*breach.Report, error)
}

// Service runs checks. It holds no per-request state and is safe for concurrent use.
type Service struct {
	rules    RuleSource
	breaches BreachChecker
	logger   logging.Logger
	now      func() time.Time
}

// NewService builds a Service. breaches may be nil, in which case breach
// checks fail with rulesets.ErrUnknownKind.
func NewService(rules RuleSource, breaches BreachChecker, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &Service{
		rules:    rules,
		breaches: breaches,
		logger:   logger.With(logging.Field{Key: "component", Value: "checks"}),
		now:      time.Now,
	}
}

// SetClock overrides the time source used for CheckedAt. Intended for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Run dispatches req to the check for its kind.
func (s *Service) Run(ctx context.Context, req Request) (*Report, error) {
	switch req.Kind {
	case KindEmail:
		return s.PhishingEmail(ctx, req.Text)
	case KindURL:
		return s.PhishingURL(ctx, req.Text)
	case KindText:
		return s.TextAbuse(ctx, req.Text)
	case KindBreach:
		return s.Breach(ctx, req.Text)
	default:
		return nil, fmt.Errorf("%w %q", rulesets.ErrUnknownKind, req.Kind)
	}
}

// PhishingEmail scores an email body. Every distinct http(s) link in it is
// also scored as a URL and reported in Links; link scores do not change the
// email's own score.
func (s *Service) PhishingEmail(ctx context.Context, body string) (*Report, error) {
	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyInput
	}
	content := extractEmail(body)
	rep, err := s.score(scoring.KindEmail, content.text)
	if err != nil {
		return nil, err
	}
	rep.Input = body

	links := canonicalLinks(content.links)
	if len(links) > 0 {
		rep.Links = s.scoreLinks(ctx, links)
	}
	s.logDone(rep)
	return rep, nil
}

// PhishingURL scores a single URL. Malformed URLs fail with scoring.ErrInvalidInput.
func (s *Service) PhishingURL(_ context.Context, raw string) (*Report, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyInput
	}
	rep, err := s.score(scoring.KindURL, strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	s.logDone(rep)
	return rep, nil
}

// TextAbuse scores free text for abusive language.
func (s *Service) TextAbuse(_ context.Context, text string) (*Report, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	rep, err := s.score(scoring.KindText, text)
	if err != nil {
		return nil, err
	}
	s.logDone(rep)
	return rep, nil
}

// Breach validates email and delegates to the breach collaborator. A
// compromised address is classified high, a clean one low.
func (s *Service) Breach(ctx context.Context, email string) (*Report, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrEmptyInput
	}
	if !utils.ValidEmail(email) {
		return nil, fmt.Errorf("%w: %q", breach.ErrInvalidEmail, email)
	}
	if s.breaches == nil {
		return nil, fmt.Errorf("%w %q", rulesets.ErrUnknownKind, KindBreach)
	}

	br, err := s.breaches.Check(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("breach check: %w", err)
	}

	rep := &Report{
		ID:              uuid.New().String(),
		Kind:            KindBreach,
		Input:           email,
		Classification:  scoring.ClassLow,
		Label:           "No breaches found",
		Findings:        []scoring.Finding{},
		Recommendations: br.Recommendations,
		Breach:          br,
		CheckedAt:       s.now().UTC(),
	}
	if br.Compromised {
		rep.Score = 100
		rep.Classification = scoring.ClassHigh
		rep.Label = fmt.Sprintf("Found in %d breach(es)", len(br.Breaches))
		for _, b := range br.Breaches {
			rep.Findings = append(rep.Findings, scoring.Finding{
				RuleID:        "breach:" + strings.ToLower(b.Name),
				Message:       fmt.Sprintf("%s breach (%s)", b.Title, b.BreachDate),
				MatchedTokens: b.DataClasses,
			})
		}
	}
	s.logDone(rep)
	return rep, nil
}

func (s *Service) score(kind scoring.Kind, text string) (*Report, error) {
	rs, err := s.rules.Lookup(kind)
	if err != nil {
		return nil, err
	}
	res, err := scoring.Evaluate(scoring.Input{Kind: kind, Text: text}, rs)
	if err != nil {
		return nil, err
	}
	return &Report{
		ID:              uuid.New().String(),
		Kind:            Kind(kind),
		Input:           text,
		Score:           res.Score,
		Classification:  res.Classification,
		Label:           label(rs.Advice, res.Classification),
		Findings:        res.Findings,
		Recommendations: recommendations(rs.Advice, res.Classification),
		RuleSet:         res.RuleSet,
		RuleSetVersion:  res.RuleSetVersion,
		CheckedAt:       s.now().UTC(),
	}, nil
}

func (s *Service) scoreLinks(ctx context.Context, links []string) []LinkResult {
	rs, err := s.rules.Lookup(scoring.KindURL)
	if err != nil {
		s.logger.Debug("no url rule set, links not scored", logging.Field{Key: "error", Value: err})
		return nil
	}
	out := make([]LinkResult, 0, len(links))
	for _, link := range links {
		if ctx.Err() != nil {
			break
		}
		res, err := scoring.Evaluate(scoring.Input{Kind: scoring.KindURL, Text: link}, rs)
		if err != nil {
			s.logger.Debug("skipping link", logging.Field{Key: "url", Value: link}, logging.Field{Key: "error", Value: err})
			continue
		}
		out = append(out, LinkResult{
			URL:            link,
			Score:          res.Score,
			Classification: res.Classification,
			Label:          label(rs.Advice, res.Classification),
			Findings:       res.Findings,
		})
	}
	return out
}

func (s *Service) logDone(rep *Report) {
	s.logger.Info("check complete",
		logging.Field{Key: "kind", Value: string(rep.Kind)},
		logging.Field{Key: "score", Value: rep.Score},
		logging.Field{Key: "classification", Value: string(rep.Classification)},
		logging.Field{Key: "findings", Value: len(rep.Findings)})
}

func label(a scoring.Advice, c scoring.Classification) string {
	if l, ok := a.Labels[c]; ok && l != "" {
		return l
	}
	return strings.ToUpper(string(c)) + " RISK"
}

func recommendations(a scoring.Advice, c scoring.Classification) []string {
	recs := a.Recommendations[c]
	out := make([]string, 0, len(recs)+len(a.Always))
	out = append(out, recs...)
	return append(out, a.Always...)
}
