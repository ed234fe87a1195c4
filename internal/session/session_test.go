package session_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/raysh454/cyberguard/internal/session"
	"github.com/raysh454/cyberguard/internal/testutil"
)

func newPolicy(t *testing.T) *session.Policy {
	t.Helper()
	p, err := session.NewPolicy(session.PolicyConfig{BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	return p
}

func newManager(t *testing.T, store session.Store) (*session.Manager, *time.Time) {
	t.Helper()
	m, err := session.NewManager(session.ManagerConfig{TTL: time.Hour, RememberTTL: 24 * time.Hour},
		newPolicy(t), store, testutil.NewDummyLogger())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return now })
	return m, &now
}

// ─── Policy ────────────────────────────────────────────────────────────

func TestPolicy_Authenticate(t *testing.T) {
	t.Parallel()
	p := newPolicy(t)

	cases := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{"missing email", "", "secret1", session.ErrMissingFields},
		{"missing password", "a@b.com", "", session.ErrMissingFields},
		{"blank email", "   ", "secret1", session.ErrMissingFields},
		{"bad email", "not-an-email", "secret1", session.ErrInvalidEmail},
		{"short password", "a@b.com", "12345", session.ErrPasswordTooShort},
		{"demo other password", "demo@cyberguard.com", "123456", nil},
		{"demo mixed case other password", "Demo@CyberGuard.com", "wrongpass", nil},
		{"demo short password", "demo@cyberguard.com", "12345", session.ErrPasswordTooShort},
		{"ordinary user", "user@example.com", "123456", nil},
		{"demo correct password", "demo@cyberguard.com", session.DemoPassword, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.Authenticate(tc.email, tc.password)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestPolicy_NormalizesEmail(t *testing.T) {
	t.Parallel()
	got, err := newPolicy(t).Authenticate("  User@Example.COM ", "123456")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got != "user@example.com" {
		t.Errorf("got %q", got)
	}
}

func TestPolicy_ConfiguredHashAndLength(t *testing.T) {
	t.Parallel()
	hash, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	p, err := session.NewPolicy(session.PolicyConfig{
		DemoEmail:        "owner@corp.example",
		DemoPasswordHash: string(hash),
		MinPasswordLen:   10,
	})
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	// demo credentials are accepted before the length rule applies
	if _, err := p.Authenticate("owner@corp.example", "letmein"); err != nil {
		t.Errorf("configured password rejected: %v", err)
	}
	if _, err := p.Authenticate("owner@corp.example", "letmein-nope"); err != nil {
		t.Errorf("long password for demo account rejected: %v", err)
	}
	if _, err := p.Authenticate("owner@corp.example", "letmeout"); !errors.Is(err, session.ErrPasswordTooShort) {
		t.Errorf("expected ErrPasswordTooShort, got %v", err)
	}
	if _, err := p.Authenticate("x@y.com", "letmein"); !errors.Is(err, session.ErrPasswordTooShort) {
		t.Errorf("expected ErrPasswordTooShort, got %v", err)
	}
	if _, err := p.Authenticate(session.DemoEmail, "anything-long"); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}

func TestPolicy_RejectsInvalidHash(t *testing.T) {
	t.Parallel()
	if _, err := session.NewPolicy(session.PolicyConfig{DemoPasswordHash: "not-a-hash"}); err == nil {
		t.Fatal("expected error for invalid hash")
	}
}

// ─── Manager ───────────────────────────────────────────────────────────

func TestManager_LoginLookupLogout(t *testing.T) {
	t.Parallel()
	m, _ := newManager(t, session.NewMemoryStore())
	ctx := context.Background()

	s, err := m.Login(ctx, "User@Example.com", "123456", false)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if s.Token == "" || s.Email != "user@example.com" {
		t.Fatalf("unexpected session %+v", s)
	}
	if got := s.ExpiresAt.Sub(s.CreatedAt); got != time.Hour {
		t.Errorf("ttl = %v, want 1h", got)
	}

	got, err := m.Lookup(ctx, s.Token)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.Email != s.Email {
		t.Errorf("Lookup email = %q", got.Email)
	}

	if err := m.Logout(ctx, s.Token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := m.Lookup(ctx, s.Token); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("expected ErrNotFound after logout, got %v", err)
	}
	if err := m.Logout(ctx, s.Token); err != nil {
		t.Errorf("second logout should be a no-op, got %v", err)
	}
	if _, err := m.Lookup(ctx, ""); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("empty token: %v", err)
	}
}

func TestManager_LoginRejected(t *testing.T) {
	t.Parallel()
	store := session.NewMemoryStore()
	m, _ := newManager(t, store)
	if _, err := m.Login(context.Background(), "bad", "123456", false); !errors.Is(err, session.ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if n, _ := store.DeleteExpired(context.Background(), time.Now().Add(1000*time.Hour)); n != 0 {
		t.Errorf("rejected login stored a session")
	}
}

func TestManager_ExpiryAndRemember(t *testing.T) {
	t.Parallel()
	m, now := newManager(t, session.NewMemoryStore())
	ctx := context.Background()

	short, err := m.Login(ctx, "a@b.com", "123456", false)
	if err != nil {
		t.Fatal(err)
	}
	long, err := m.Login(ctx, "a@b.com", "123456", true)
	if err != nil {
		t.Fatal(err)
	}
	if !long.Remember || long.ExpiresAt.Sub(long.CreatedAt) != 24*time.Hour {
		t.Errorf("remember session %+v", long)
	}

	*now = now.Add(2 * time.Hour)
	if _, err := m.Lookup(ctx, short.Token); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("expected short session expired, got %v", err)
	}
	if _, err := m.Lookup(ctx, long.Token); err != nil {
		t.Errorf("remembered session should still be valid: %v", err)
	}

	*now = now.Add(48 * time.Hour)
	n, err := m.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Errorf("Sweep removed %d, want 1", n)
	}
}

func TestNewManager_RequiresDependencies(t *testing.T) {
	t.Parallel()
	if _, err := session.NewManager(session.ManagerConfig{}, nil, session.NewMemoryStore(), nil); err == nil {
		t.Error("expected error for nil policy")
	}
	if _, err := session.NewManager(session.ManagerConfig{}, newPolicy(t), nil, nil); err == nil {
		t.Error("expected error for nil store")
	}
}

// ─── Stores ────────────────────────────────────────────────────────────

func openSQLite(t *testing.T) *session.SQLiteStore {
	t.Helper()
	s, err := session.OpenSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"), nil)
	if err != nil {
		t.Fatalf("OpenSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStores(t *testing.T) {
	t.Parallel()
	stores := map[string]func(t *testing.T) session.Store{
		"memory": func(*testing.T) session.Store { return session.NewMemoryStore() },
		"sqlite": func(t *testing.T) session.Store { return openSQLite(t) },
	}
	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			st := open(t)
			ctx := context.Background()
			base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

			live := &session.Session{Token: "live", Email: "a@b.com", Remember: true, CreatedAt: base, ExpiresAt: base.Add(time.Hour)}
			dead := &session.Session{Token: "dead", Email: "c@d.com", CreatedAt: base, ExpiresAt: base.Add(time.Minute)}
			for _, s := range []*session.Session{live, dead} {
				if err := st.Save(ctx, s); err != nil {
					t.Fatalf("Save: %v", err)
				}
			}

			got, err := st.Get(ctx, "live")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Email != "a@b.com" || !got.Remember || !got.ExpiresAt.Equal(live.ExpiresAt) || !got.CreatedAt.Equal(base) {
				t.Errorf("round trip mismatch: %+v", got)
			}
			if _, err := st.Get(ctx, "missing"); !errors.Is(err, session.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}

			live.Email = "changed@b.com"
			if err := st.Save(ctx, live); err != nil {
				t.Fatalf("re-Save: %v", err)
			}
			if got, _ := st.Get(ctx, "live"); got == nil || got.Email != "changed@b.com" {
				t.Errorf("save did not replace: %+v", got)
			}

			n, err := st.DeleteExpired(ctx, base.Add(10*time.Minute))
			if err != nil || n != 1 {
				t.Fatalf("DeleteExpired = %d, %v", n, err)
			}
			if _, err := st.Get(ctx, "dead"); !errors.Is(err, session.ErrNotFound) {
				t.Errorf("expired session still present")
			}

			if err := st.Delete(ctx, "live"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := st.Delete(ctx, "live"); err != nil {
				t.Errorf("Delete of missing token: %v", err)
			}
		})
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "sessions.db")
	ctx := context.Background()
	exp := time.Now().Add(time.Hour).UTC()

	first, err := session.OpenSQLiteStore(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.Save(ctx, &session.Session{Token: "t", Email: "a@b.com", CreatedAt: time.Now(), ExpiresAt: exp}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	_ = first.Close()

	second, err := session.OpenSQLiteStore(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	got, err := second.Get(ctx, "t")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if !got.ExpiresAt.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, exp)
	}
}

func TestManager_WithSQLiteStore(t *testing.T) {
	t.Parallel()
	m, _ := newManager(t, openSQLite(t))
	ctx := context.Background()
	s, err := m.Login(ctx, session.DemoEmail, session.DemoPassword, true)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	got, err := m.Lookup(ctx, s.Token)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.Email != session.DemoEmail || !got.Remember {
		t.Errorf("unexpected session %+v", got)
	}
}
