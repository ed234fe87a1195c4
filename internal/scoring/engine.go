// Package scoring implements the rule based pattern scoring engine.
//
// Evaluate is a pure function of its input and rule set: it performs no I/O,
// uses no randomness and keeps no state, so it is safe for concurrent use.
package scoring

import (
	"fmt"
	"math"
	"strings"
)

// Evaluate scores in against rs.
//
// Empty or whitespace-only input matches nothing and scores 0. A nil rule set
// or one without rules also scores 0. For url inputs the text must be an
// absolute URL, whatever the rule set; otherwise an *InputError is returned. An input whose kind
// differs from the rule set's kind is also an *InputError.
func Evaluate(in Input, rs *RuleSet) (*ScoreResult, error) {
	if in.Kind == "" && rs != nil {
		in.Kind = rs.Kind
	}
	if in.Kind != "" && !in.Kind.Valid() {
		return nil, &InputError{Kind: in.Kind, Input: in.Text, Reason: "unknown input kind"}
	}

	if rs != nil && rs.Kind != "" && in.Kind != rs.Kind {
		return nil, &InputError{
			Kind:   in.Kind,
			Input:  in.Text,
			Reason: fmt.Sprintf("rule set %q scores %s input", rs.Name, rs.Kind),
		}
	}

	s, err := newSubject(in)
	if err != nil {
		return nil, err
	}

	res := &ScoreResult{Findings: []Finding{}, Classification: ClassLow}
	if rs == nil {
		return res, nil
	}
	res.RuleSet = rs.Name
	res.RuleSetVersion = rs.Version
	if strings.TrimSpace(s.text) == "" || len(rs.rules) == 0 {
		return res, nil
	}

	var total float64
	for _, r := range rs.rules {
		hits, tokens := r.matcher.match(s)
		if hits == 0 || hits < r.def.MinMatches {
			continue
		}
		total += r.def.Weight
		res.Findings = append(res.Findings, Finding{
			RuleID:        r.def.ID,
			Message:       r.def.Message,
			MatchedTokens: tokens,
			Weight:        r.def.Weight,
		})
	}

	res.Score = scaleScore(total, rs.Scale)
	res.Classification = Classify(res.Score, rs.Thresholds)
	return res, nil
}

// scaleScore converts a raw weight total to an integer score in [0, 100].
func scaleScore(total float64, scale Scale) int {
	if scale == ScaleFraction {
		total *= 100
	}
	score := int(math.Round(total))
	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}
