package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/raysh454/cyberguard/internal/breach"
	"github.com/raysh454/cyberguard/internal/checks"
	"github.com/raysh454/cyberguard/internal/rulesets"
	"github.com/raysh454/cyberguard/internal/server"
	"github.com/raysh454/cyberguard/internal/session"
	"github.com/raysh454/cyberguard/internal/testutil"
)

func newTestServer(t *testing.T, cfg server.Config) *server.Server {
	t.Helper()
	logger := testutil.NewDummyLogger()

	reg, err := rulesets.LoadRegistry("", logger)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	policy, err := session.NewPolicy(session.PolicyConfig{BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	mgr, err := session.NewManager(session.ManagerConfig{}, policy, session.NewMemoryStore(), logger)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	svc := checks.NewService(reg, breach.NewChecker(breach.Config{}, nil, logger), logger)

	s, err := server.NewServer(cfg, server.Deps{Checks: svc, Sessions: mgr, Rules: reg, Logger: logger})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

func do(t *testing.T, s http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: server.DefaultCookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON response: %v (body: %s)", err, rec.Body.String())
	}
}

func login(t *testing.T, s http.Handler) string {
	t.Helper()
	rec := do(t, s, "POST", "/auth/login", `{"email":"analyst@example.com","password":"secret1"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == server.DefaultCookieName {
			return c.Value
		}
	}
	t.Fatal("no session cookie set")
	return ""
}

// ─── CORS / health ─────────────────────────────────────────────────────

func TestServer_CORS_HeaderPresent(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, server.Config{})

	rec := do(t, s, "GET", "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if origin := rec.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("expected CORS origin *, got %q", origin)
	}
	var body map[string]any
	decodeJSON(t, rec, &body)
	if body["status"] != "ok" || body["rulesets"] != float64(3) {
		t.Errorf("unexpected health body %v", body)
	}
}

func TestServer_CORS_RestrictedOrigins(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, server.Config{AllowedOrigins: []string{"https://app.example"}})

	req := httptest.NewRequest("OPTIONS", "/checks/text", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight: expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example" ||
		rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Errorf("unexpected CORS headers %v", rec.Header())
	}

	req = httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unlisted origin allowed: %q", got)
	}
}

// ─── Auth ──────────────────────────────────────────────────────────────

func TestServer_RequiresSession(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, server.Config{})

	for _, path := range []string{"/auth/me", "/rulesets"} {
		rec := do(t, s, "GET", path, "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, rec.Code)
		}
		var body server.ErrorResponse
		decodeJSON(t, rec, &body)
		if body.Error != "unauthorized" || body.Login != "/auth/login" {
			t.Errorf("unexpected body %+v", body)
		}
	}
	if rec := do(t, s, "POST", "/checks/text", `{"text":"hi"}`, "bogus-token"); rec.Code != http.StatusUnauthorized {
		t.Errorf("unknown token: expected 401, got %d", rec.Code)
	}
}

func TestServer_LoginErrors(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, server.Config{})
	cases := []struct {
		body string
		code int
	}{
		{`{invalid}`, http.StatusBadRequest},
		{`{"email":"","password":""}`, http.StatusBadRequest},
		{`{"email":"nope","password":"secret1"}`, http.StatusBadRequest},
		{`{"email":"a@b.com","password":"123"}`, http.StatusBadRequest},
		{`{"email":"demo@cyberguard.com","password":"12345"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		if rec := do(t, s, "POST", "/auth/login", tc.body, ""); rec.Code != tc.code {
			t.Errorf("login %s: expected %d, got %d", tc.body, tc.code, rec.Code)
		}
	}
}

func TestServer_LoginCookie(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, server.Config{})

	rec := do(t, s, "POST", "/auth/login", `{"email":"demo@cyberguard.com","password":"CyberGuard2025!","remember":true}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if !c.HttpOnly || c.SameSite != http.SameSiteLaxMode || c.Expires.Before(time.Now().Add(24*time.Hour)) {
		t.Errorf("unexpected cookie %+v", c)
	}
	var body server.SessionResponse
	decodeJSON(t, rec, &body)
	if body.Token != c.Value || body.Email != "demo@cyberguard.com" || !body.Remember {
		t.Errorf("unexpected body %+v", body)
	}

	rec = do(t, s, "POST", "/auth/login", `{"email":"a@b.com","password":"secret1"}`, "")
	if c := rec.Result().Cookies()[0]; !c.Expires.IsZero() {
		t.Errorf("session cookie without remember-me should not expire, got %v", c.Expires)
	}
}

func TestServer_MeAndLogout(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, server.Config{})
	token := login(t, s)

	rec := do(t, s, "GET", "/auth/me", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", rec.Code)
	}
	var me server.SessionResponse
	decodeJSON(t, rec, &me)
	if me.Email != "analyst@example.com" || me.Token != "" {
		t.Errorf("unexpected me %+v", me)
	}

	req := httptest.NewRequest("GET", "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	bearer := httptest.NewRecorder()
	s.ServeHTTP(bearer, req)
	if bearer.Code != http.StatusOK {
		t.Errorf("bearer token: expected 200, got %d", bearer.Code)
	}

	stale := httptest.NewRequest("GET", "/auth/me", nil)
	stale.AddCookie(&http.Cookie{Name: server.DefaultCookieName, Value: "expired-token"})
	stale.Header.Set("Authorization", "Bearer "+token)
	staleRec := httptest.NewRecorder()
	s.ServeHTTP(staleRec, stale)
	if staleRec.Code != http.StatusOK {
		t.Errorf("stale cookie with valid bearer: expected 200, got %d", staleRec.Code)
	}

	if rec := do(t, s, "POST", "/auth/logout", "", token); rec.Code != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", rec.Code)
	}
	if rec := do(t, s, "GET", "/auth/me", "", token); rec.Code != http.StatusUnauthorized {
		t.Errorf("after logout: expected 401, got %d", rec.Code)
	}
}

// ─── Checks ────────────────────────────────────────────────────────────

func TestServer_Checks(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, server.Config{})
	token := login(t, s)

	cases := []struct {
		name  string
		path  string
		body  string
		code  int
		score int
	}{
		{"email example", "/checks/phishing/email", `{"text":"URGENT: verify your account now, click here"}`, 200, 45},
		{"url example", "/checks/phishing/url", `{"text":"http://192.168.1.1/login-update"}`, 200, 55},
		{"text abuse", "/checks/text", `{"text":"I hate you, you stupid liar"}`, 200, 60},
		{"breach demo", "/checks/breach", `{"email":"demo@cyberguard.com"}`, 200, 100},
		{"breach clean via text", "/checks/breach", `{"text":"someone@example.org"}`, 200, 0},
		{"malformed url", "/checks/phishing/url", `{"text":"not a url"}`, 400, 0},
		{"empty text", "/checks/text", `{"text":"   "}`, 400, 0},
		{"invalid email", "/checks/breach", `{"email":"nope"}`, 400, 0},
		{"invalid json", "/checks/text", `{`, 400, 0},
		{"unknown field", "/checks/text", `{"txt":"hello"}`, 400, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, s, "POST", tc.path, tc.body, token)
			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d: %s", tc.code, rec.Code, rec.Body.String())
			}
			if tc.code != http.StatusOK {
				var e server.ErrorResponse
				decodeJSON(t, rec, &e)
				if e.Error == "" {
					t.Error("missing error message")
				}
				return
			}
			var rep checks.Report
			decodeJSON(t, rec, &rep)
			if rep.Score != tc.score || rep.ID == "" {
				t.Errorf("score = %d, want %d", rep.Score, tc.score)
			}
		})
	}
}

func TestServer_BodyLimit(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, server.Config{MaxBodyBytes: 64})
	token := login(t, s)
	body := `{"text":"` + strings.Repeat("a", 200) + `"}`
	if rec := do(t, s, "POST", "/checks/text", body, token); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for oversized body, got %d", rec.Code)
	}
}

func TestServer_ListRuleSets(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, server.Config{})
	rec := do(t, s, "GET", "/rulesets", "", login(t, s))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var sets []server.RuleSetSummary
	decodeJSON(t, rec, &sets)
	if len(sets) != 3 {
		t.Fatalf("expected 3 rule sets, got %d", len(sets))
	}
	names := []string{sets[0].Name, sets[1].Name, sets[2].Name}
	if strings.Join(names, ",") != "phishing-email,phishing-url,text-abuse" {
		t.Errorf("unexpected order %v", names)
	}
	if sets[1].Thresholds.Medium != 30 || len(sets[1].Rules) != 6 {
		t.Errorf("unexpected phishing-url summary %+v", sets[1])
	}
}

// ─── WebSocket ─────────────────────────────────────────────────────────

func dialWS(t *testing.T, ts *httptest.Server, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	hdr := http.Header{}
	if token != "" {
		hdr.Set("Cookie", server.DefaultCookieName+"="+token)
	}
	return websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/checks", hdr)
}

func readEvent(t *testing.T, conn *websocket.Conn) server.WSEvent {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev server.WSEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func TestServer_WebSocketChecks(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, server.Config{})
	token := login(t, s)
	ts := httptest.NewServer(s)
	defer ts.Close()

	conn, _, err := dialWS(t, ts, token)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(server.WSRequest{ID: "1", Kind: checks.KindURL, Text: "http://192.168.1.1/login-update"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if ev := readEvent(t, conn); ev.Type != "status" || ev.ID != "1" || ev.Status != "analyzing" {
		t.Errorf("unexpected status event %+v", ev)
	}
	ev := readEvent(t, conn)
	if ev.Type != "result" || ev.Report == nil || ev.Report.Score != 55 {
		t.Fatalf("unexpected result event %+v", ev)
	}

	if err := conn.WriteJSON(server.WSRequest{ID: "2", Kind: "sms", Text: "hi"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	readEvent(t, conn)
	if ev := readEvent(t, conn); ev.Type != "error" || ev.Code != http.StatusNotFound || ev.ID != "2" {
		t.Errorf("unexpected error event %+v", ev)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if ev := readEvent(t, conn); ev.Type != "error" || ev.Code != http.StatusBadRequest {
		t.Errorf("unexpected event for malformed message %+v", ev)
	}
}

func TestServer_WebSocketRequiresSession(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, server.Config{})
	ts := httptest.NewServer(s)
	defer ts.Close()

	conn, resp, err := dialWS(t, ts, "")
	if err == nil {
		conn.Close()
		t.Fatal("expected handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 handshake response, got %+v", resp)
	}
}
