package server

import (
	"net/http"
	"time"

	"github.com/raysh454/cyberguard/internal/checks"
	"github.com/raysh454/cyberguard/internal/logging"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"uptime":   time.Since(s.started).Round(time.Second).String(),
		"rulesets": len(s.rules.List()),
	})
}

func (s *Server) handleListRuleSets(w http.ResponseWriter, r *http.Request) {
	sets := s.rules.List()
	out := make([]RuleSetSummary, 0, len(sets))
	for _, rs := range sets {
		def := rs.Definition()
		sum := RuleSetSummary{
			Name:       def.Name,
			Kind:       def.Kind,
			Version:    def.Version,
			Scale:      def.Scale,
			Thresholds: def.Thresholds,
			Rules:      make([]RuleSummary, 0, len(def.Rules)),
		}
		for _, rd := range def.Rules {
			sum.Rules = append(sum.Rules, RuleSummary{
				ID:      rd.ID,
				Message: rd.Message,
				Weight:  rd.Weight,
				Match:   rd.Match,
				Field:   rd.Field,
			})
		}
		out = append(out, sum)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCheck(kind checks.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body CheckRequest
		if err := s.decodeBody(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		text := body.Text
		if kind == checks.KindBreach && body.Email != "" {
			text = body.Email
		}

		rep, err := s.checks.Run(r.Context(), checks.Request{Kind: kind, Text: text})
		if err != nil {
			status := statusFor(err)
			if status >= http.StatusInternalServerError {
				s.logger.Error("check failed", logging.Field{Key: "kind", Value: string(kind)}, logging.Field{Key: "error", Value: err})
			}
			writeError(w, status, errorMessage(err, status))
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}
