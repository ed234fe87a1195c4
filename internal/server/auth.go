package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/raysh454/cyberguard/internal/logging"
	"github.com/raysh454/cyberguard/internal/session"
)

type ctxKey int

const sessionKey ctxKey = iota

// sessionFrom returns the session attached by requireSession.
func sessionFrom(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey).(*session.Session)
	return s
}

// requestTokens returns the candidate session tokens: the cookie first, then a
// bearer header.
func (s *Server) requestTokens(r *http.Request) []string {
	var tokens []string
	if c, err := r.Cookie(s.cfg.CookieName); err == nil && c.Value != "" {
		tokens = append(tokens, c.Value)
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if tok := strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")); tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// lookupSession resolves the first candidate token that names a live session.
// A stale cookie does not shadow a valid bearer token.
func (s *Server) lookupSession(r *http.Request) (*session.Session, error) {
	for _, tok := range s.requestTokens(r) {
		sess, err := s.sessions.Lookup(r.Context(), tok)
		if errors.Is(err, session.ErrNotFound) {
			continue
		}
		return sess, err
	}
	return nil, session.ErrNotFound
}

// requireSession rejects requests without a live session with 401 and a
// pointer to the login endpoint.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.lookupSession(r)
		if err != nil {
			if !errors.Is(err, session.ErrNotFound) {
				s.logger.Error("session lookup failed", logging.Field{Key: "error", Value: err})
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Login: "/auth/login"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, sess)))
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body LoginRequest
	if err := s.decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	sess, err := s.sessions.Login(r.Context(), body.Email, body.Password, body.Remember)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrMissingFields),
			errors.Is(err, session.ErrInvalidEmail),
			errors.Is(err, session.ErrPasswordTooShort):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.logger.Error("login failed", logging.Field{Key: "error", Value: err})
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	cookie := &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    sess.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	// Without remember-me the cookie ends with the browser session.
	if sess.Remember {
		cookie.Expires = sess.ExpiresAt
	}
	http.SetCookie(w, cookie)

	resp := toSessionResponse(sess)
	resp.Token = sess.Token
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if err := s.sessions.Logout(r.Context(), sess.Token); err != nil {
		s.logger.Error("logout failed", logging.Field{Key: "error", Value: err})
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toSessionResponse(sessionFrom(r.Context())))
}

func toSessionResponse(sess *session.Session) SessionResponse {
	return SessionResponse{
		Email:     sess.Email,
		Remember:  sess.Remember,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: sess.ExpiresAt,
	}
}
