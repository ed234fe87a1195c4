package scoring

// Kind tags an input with the category of rule set that scores it.
type Kind string

const (
	KindEmail Kind = "email"
	KindURL   Kind = "url"
	KindText  Kind = "text"
)

// Valid reports whether k is one of the known input kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindEmail, KindURL, KindText:
		return true
	}
	return false
}

// Scale is the weight convention of a rule set. A rule set uses exactly one.
type Scale string

const (
	// ScalePoints weights are 0-100 points summed directly.
	ScalePoints Scale = "points"
	// ScaleFraction weights are 0-1 fractions; the sum is scaled by 100 and rounded.
	ScaleFraction Scale = "fraction"
)

// MatchMode selects how a rule's patterns are tested against the subject.
type MatchMode string

const (
	MatchSubstring  MatchMode = "substring"
	MatchRegex      MatchMode = "regex"
	MatchExpression MatchMode = "expression"
)

// Field selects the part of the input a rule is tested against.
type Field string

const (
	FieldText Field = "text"
	FieldHost Field = "host"
	FieldPath Field = "path"
)

type Classification string

const (
	ClassLow    Classification = "low"
	ClassMedium Classification = "medium"
	ClassHigh   Classification = "high"
)

// Thresholds are the inclusive score cut points for medium and high.
type Thresholds struct {
	Medium int `yaml:"medium" json:"medium"`
	High   int `yaml:"high" json:"high"`
}

// Classify maps a score to a classification. Zero thresholds never match,
// so an unconfigured rule set classifies everything as low.
func Classify(score int, th Thresholds) Classification {
	switch {
	case th.High > 0 && score >= th.High:
		return ClassHigh
	case th.Medium > 0 && score >= th.Medium:
		return ClassMedium
	default:
		return ClassLow
	}
}

// Advice carries the presentation text attached to a rule set.
type Advice struct {
	// Labels are human readable risk labels per classification.
	Labels map[Classification]string `yaml:"labels" json:"labels,omitempty"`
	// Recommendations per classification.
	Recommendations map[Classification][]string `yaml:"recommendations" json:"recommendations,omitempty"`
	// Always is appended to the recommendations of every classification.
	Always []string `yaml:"always" json:"always,omitempty"`
}

// RuleDef is the declarative form of a rule as it appears in a rule pack.
type RuleDef struct {
	ID            string    `yaml:"id" json:"id"`
	Message       string    `yaml:"message" json:"message"`
	Patterns      []string  `yaml:"patterns" json:"patterns"`
	Weight        float64   `yaml:"weight" json:"weight"`
	Match         MatchMode `yaml:"match" json:"match"`
	Field         Field     `yaml:"field,omitempty" json:"field,omitempty"`
	CaseSensitive bool      `yaml:"caseSensitive,omitempty" json:"caseSensitive,omitempty"`
	MinMatches    int       `yaml:"minMatches,omitempty" json:"minMatches,omitempty"`
}

// Definition is the declarative form of a rule set. Compile turns it into a RuleSet.
type Definition struct {
	Name       string     `yaml:"name" json:"name"`
	Kind       Kind       `yaml:"kind" json:"kind"`
	Version    string     `yaml:"version" json:"version"`
	Scale      Scale      `yaml:"scale" json:"scale"`
	Thresholds Thresholds `yaml:"thresholds" json:"thresholds"`
	Advice     Advice     `yaml:"advice" json:"advice"`
	Rules      []RuleDef  `yaml:"rules" json:"rules"`
}

// Input is a single string to score plus the kind of rule set that applies.
type Input struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text"`
}

// Finding records that a rule matched, with the tokens that triggered it.
type Finding struct {
	RuleID        string   `json:"ruleId"`
	Message       string   `json:"message"`
	MatchedTokens []string `json:"matchedTokens"`
	Weight        float64  `json:"weight"`
}

// ScoreResult is built fresh by every Evaluate call and never mutated afterwards.
type ScoreResult struct {
	Score          int            `json:"score"`
	Findings       []Finding      `json:"findings"`
	Classification Classification `json:"classification"`
	RuleSet        string         `json:"ruleSet,omitempty"`
	RuleSetVersion string         `json:"ruleSetVersion,omitempty"`
}
