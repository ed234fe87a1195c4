package scoring

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"golang.org/x/text/unicode/norm"
)

// RuleSet is a compiled, immutable rule set. Build one with Compile.
// The zero value is a valid rule set with no rules.
type RuleSet struct {
	Name       string
	Kind       Kind
	Version    string
	Scale      Scale
	Thresholds Thresholds
	Advice     Advice

	rules []compiledRule
}

type compiledRule struct {
	def     RuleDef
	matcher matcher
}

// matcher reports how many times a rule's patterns hit the subject and the
// distinct tokens that hit, in first-seen order.
type matcher interface {
	match(s *subject) (hits int, tokens []string)
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.rules)
}

// Definition returns the declarative form the rule set was compiled from.
func (rs *RuleSet) Definition() Definition {
	if rs == nil {
		return Definition{}
	}
	d := Definition{
		Name:       rs.Name,
		Kind:       rs.Kind,
		Version:    rs.Version,
		Scale:      rs.Scale,
		Thresholds: rs.Thresholds,
		Advice:     rs.Advice,
		Rules:      make([]RuleDef, 0, len(rs.rules)),
	}
	for _, r := range rs.rules {
		def := r.def
		def.Patterns = append([]string(nil), r.def.Patterns...)
		d.Rules = append(d.Rules, def)
	}
	return d
}

// Compile validates def and prepares every matcher. All problems are reported
// as *ConfigError so a bad pack fails at load time rather than at evaluation.
func Compile(def Definition) (*RuleSet, error) {
	name := def.Name
	cfgErr := func(ruleID, format string, args ...any) error {
		return &ConfigError{RuleSet: name, RuleID: ruleID, Reason: fmt.Sprintf(format, args...)}
	}

	if strings.TrimSpace(name) == "" {
		return nil, cfgErr("", "name is required")
	}
	if !def.Kind.Valid() {
		return nil, cfgErr("", "unknown kind %q", def.Kind)
	}
	var maxWeight float64
	switch def.Scale {
	case ScalePoints:
		maxWeight = 100
	case ScaleFraction:
		maxWeight = 1
	default:
		return nil, cfgErr("", "unknown scale %q", def.Scale)
	}
	th := def.Thresholds
	if th.Medium <= 0 || th.Medium > th.High || th.High > 100 {
		return nil, cfgErr("", "thresholds must satisfy 0 < medium <= high <= 100, got medium=%d high=%d", th.Medium, th.High)
	}
	if len(def.Rules) == 0 {
		return nil, cfgErr("", "rule set has no rules")
	}

	rs := &RuleSet{
		Name:       def.Name,
		Kind:       def.Kind,
		Version:    def.Version,
		Scale:      def.Scale,
		Thresholds: def.Thresholds,
		Advice:     def.Advice,
		rules:      make([]compiledRule, 0, len(def.Rules)),
	}

	seen := make(map[string]bool, len(def.Rules))
	for _, rd := range def.Rules {
		if strings.TrimSpace(rd.ID) == "" {
			return nil, cfgErr("", "rule without id")
		}
		if seen[rd.ID] {
			return nil, cfgErr(rd.ID, "duplicate rule id")
		}
		seen[rd.ID] = true

		if rd.Weight < 0 || rd.Weight > maxWeight {
			return nil, cfgErr(rd.ID, "weight %v out of range [0, %v] for %s scale", rd.Weight, maxWeight, def.Scale)
		}
		if len(rd.Patterns) == 0 {
			return nil, cfgErr(rd.ID, "rule has no patterns")
		}
		for _, p := range rd.Patterns {
			if p == "" {
				return nil, cfgErr(rd.ID, "empty pattern")
			}
		}
		if rd.Field == "" {
			rd.Field = FieldText
		}
		switch rd.Field {
		case FieldText:
		case FieldHost, FieldPath:
			if def.Kind != KindURL {
				return nil, cfgErr(rd.ID, "field %q is only available for %s rule sets", rd.Field, KindURL)
			}
		default:
			return nil, cfgErr(rd.ID, "unknown field %q", rd.Field)
		}
		if rd.MinMatches == 0 {
			rd.MinMatches = 1
		}
		if rd.MinMatches < 0 {
			return nil, cfgErr(rd.ID, "minMatches must be positive")
		}
		if rd.Match == "" {
			rd.Match = MatchSubstring
		}

		var (
			m   matcher
			err error
		)
		switch rd.Match {
		case MatchSubstring:
			m = newSubstringMatcher(rd)
		case MatchRegex:
			m, err = newRegexMatcher(rd)
		case MatchExpression:
			m, err = newExpressionMatcher(rd)
		default:
			return nil, cfgErr(rd.ID, "unknown match mode %q", rd.Match)
		}
		if err != nil {
			return nil, &ConfigError{RuleSet: name, RuleID: rd.ID, Reason: "compile " + string(rd.Match), Err: err}
		}
		rs.rules = append(rs.rules, compiledRule{def: rd, matcher: m})
	}
	return rs, nil
}

// MustCompile is like Compile but panics on error. Intended for tests and
// package level rule sets known to be valid.
func MustCompile(def Definition) *RuleSet {
	rs, err := Compile(def)
	if err != nil {
		panic(err)
	}
	return rs
}

// ─── Substring ───────────────────────────────────────────────────────────────

type substringMatcher struct {
	field         Field
	caseSensitive bool
	patterns      []string // folded unless caseSensitive
	display       []string // as written in the pack
}

func newSubstringMatcher(rd RuleDef) *substringMatcher {
	m := &substringMatcher{field: rd.Field, caseSensitive: rd.CaseSensitive}
	for _, p := range rd.Patterns {
		p = normalizePattern(p)
		m.display = append(m.display, p)
		if rd.CaseSensitive {
			m.patterns = append(m.patterns, p)
		} else {
			m.patterns = append(m.patterns, fold(p))
		}
	}
	return m
}

func (m *substringMatcher) match(s *subject) (int, []string) {
	v := s.value(m.field, m.caseSensitive)
	if v == "" {
		return 0, nil
	}
	var tokens []string
	for i, p := range m.patterns {
		if strings.Contains(v, p) {
			tokens = append(tokens, m.display[i])
		}
	}
	return len(tokens), tokens
}

// ─── Regex ───────────────────────────────────────────────────────────────────

type regexMatcher struct {
	field    Field
	patterns []*regexp.Regexp
}

func newRegexMatcher(rd RuleDef) (*regexMatcher, error) {
	m := &regexMatcher{field: rd.Field}
	for _, p := range rd.Patterns {
		expr := normalizePattern(p)
		if !rd.CaseSensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		m.patterns = append(m.patterns, re)
	}
	return m, nil
}

// match counts every occurrence of every pattern; tokens are deduplicated.
// Regexes run against the unfolded text since (?i) already handles case.
func (m *regexMatcher) match(s *subject) (int, []string) {
	v := s.value(m.field, true)
	if v == "" {
		return 0, nil
	}
	hits := 0
	var tokens []string
	seen := make(map[string]bool)
	for _, re := range m.patterns {
		for _, found := range re.FindAllString(v, -1) {
			hits++
			if !seen[found] {
				seen[found] = true
				tokens = append(tokens, found)
			}
		}
	}
	return hits, tokens
}

// ─── Expression ──────────────────────────────────────────────────────────────

// expressionEnv declares the variables an expression rule may reference.
func expressionEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("text", cel.StringType),
		cel.Variable("host", cel.StringType),
		cel.Variable("path", cel.StringType),
		cel.Variable("labels", cel.IntType),
		cel.Variable("words", cel.IntType),
	)
}

type expressionMatcher struct {
	field    Field
	programs []cel.Program
}

func newExpressionMatcher(rd RuleDef) (*expressionMatcher, error) {
	env, err := expressionEnv()
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}
	m := &expressionMatcher{field: rd.Field}
	for _, expr := range rd.Patterns {
		ast, iss := env.Compile(expr)
		if iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("expression %q: %w", expr, iss.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("expression %q must evaluate to bool, got %v", expr, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("expression %q: %w", expr, err)
		}
		m.programs = append(m.programs, prg)
	}
	return m, nil
}

// match counts the expressions that evaluate to true. The token is the value
// of the rule's field. Evaluation errors count as no match.
func (m *expressionMatcher) match(s *subject) (int, []string) {
	vars := map[string]any{
		"text":   s.text,
		"host":   s.host,
		"path":   s.path,
		"labels": int64(s.labels),
		"words":  int64(s.words),
	}
	hits := 0
	for _, prg := range m.programs {
		out, _, err := prg.Eval(vars)
		if err != nil {
			continue
		}
		if out == types.True {
			hits++
		}
	}
	if hits == 0 {
		return 0, nil
	}
	return hits, []string{s.value(m.field, true)}
}

// normalizePattern applies the same NFKC normalization inputs receive.
func normalizePattern(p string) string {
	return norm.NFKC.String(p)
}
