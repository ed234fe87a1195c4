package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/raysh454/cyberguard/internal/breach"
	"github.com/raysh454/cyberguard/internal/checks"
	"github.com/raysh454/cyberguard/internal/logging"
	"github.com/raysh454/cyberguard/internal/rulesets"
	"github.com/raysh454/cyberguard/internal/scoring"
	"github.com/raysh454/cyberguard/internal/session"
)

// RuleLister lists the loaded rule sets. *rulesets.Registry implements it.
type RuleLister interface {
	List() []*scoring.RuleSet
}

// Deps are the components the API serves.
type Deps struct {
	Checks   *checks.Service
	Sessions *session.Manager
	Rules    RuleLister
	Logger   logging.Logger
}

// Server is the HTTP + WebSocket API surface for CyberGuard.
type Server struct {
	cfg      Config
	checks   *checks.Service
	sessions *session.Manager
	rules    RuleLister
	router   chi.Router
	upgrader websocket.Upgrader
	logger   logging.Logger
	started  time.Time
}

// NewServer wires the routes for deps.
func NewServer(cfg Config, deps Deps) (*Server, error) {
	if deps.Checks == nil {
		return nil, fmt.Errorf("checks service is nil")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session manager is nil")
	}
	if deps.Rules == nil {
		return nil, fmt.Errorf("rule lister is nil")
	}
	cfg.applyDefaults()

	logger := deps.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("server")
	}

	s := &Server{
		cfg:      cfg,
		checks:   deps.Checks,
		sessions: deps.Sessions,
		rules:    deps.Rules,
		router:   chi.NewRouter(),
		logger:   logger.With(logging.Field{Key: "component", Value: "server"}),
		started:  time.Now(),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.originAllowed}

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)

	// CORS preflight
	r.Options("/auth/login", s.optionsHandler("POST"))
	r.Options("/auth/logout", s.optionsHandler("POST"))
	r.Options("/auth/me", s.optionsHandler("GET"))
	r.Options("/rulesets", s.optionsHandler("GET"))
	r.Options("/checks/phishing/email", s.optionsHandler("POST"))
	r.Options("/checks/phishing/url", s.optionsHandler("POST"))
	r.Options("/checks/text", s.optionsHandler("POST"))
	r.Options("/checks/breach", s.optionsHandler("POST"))

	r.Get("/health", s.handleHealth)
	r.Post("/auth/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)

		r.Post("/auth/logout", s.handleLogout)
		r.Get("/auth/me", s.handleMe)
		r.Get("/rulesets", s.handleListRuleSets)

		r.Post("/checks/phishing/email", s.handleCheck(checks.KindEmail))
		r.Post("/checks/phishing/url", s.handleCheck(checks.KindURL))
		r.Post("/checks/text", s.handleCheck(checks.KindText))
		r.Post("/checks/breach", s.handleCheck(checks.KindBreach))

		r.Get("/ws/checks", s.handleChecksWS)
	})
}

func (s *Server) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.cfg.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	wildcard := false
	for _, o := range s.cfg.AllowedOrigins {
		if o == "*" {
			wildcard = true
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case wildcard:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && s.originAllowed(r):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler. Request bodies are not logged since
// they carry credentials and message content.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

	s.router.ServeHTTP(ww, r)

	status := ww.Status()
	if status == 0 {
		status = http.StatusOK
	}
	s.logger.Info("http_request",
		logging.Field{Key: "method", Value: r.Method},
		logging.Field{Key: "path", Value: r.URL.Path},
		logging.Field{Key: "status", Value: status},
		logging.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()})
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      0, // websocket connections are long lived
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// statusFor maps a check error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, checks.ErrEmptyInput),
		errors.Is(err, scoring.ErrInvalidInput),
		errors.Is(err, breach.ErrInvalidEmail):
		return http.StatusBadRequest
	case errors.Is(err, rulesets.ErrUnknownKind):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage hides internal error text from clients.
func errorMessage(err error, status int) string {
	if status == http.StatusInternalServerError {
		return "internal error"
	}
	return err.Error()
}
