package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-kkm/internal/apperr"
	"github.com/mind-engage/mindengage-kkm/internal/db/dbtest"
	"github.com/mind-engage/mindengage-kkm/internal/rbac"
)

type fakeSessions map[string]Identity

func (f fakeSessions) Lookup(_ context.Context, sid string) (Identity, error) {
	id, ok := f[sid]
	if !ok {
		return Identity{}, apperr.ErrSessionNotFound
	}
	return id, nil
}

func TestIssueAndParse(t *testing.T) {
	a := NewAuthService("secret", time.Hour)
	tok, err := a.IssueJWT(Identity{UserID: 7, Role: "student", Identifier: "1001", SessionID: "s1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	c, err := a.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Sub != "7" || c.Role != "student" || c.Identifier != "1001" || c.SID != "s1" {
		t.Fatalf("claims = %+v", c)
	}
	if _, err := NewAuthService("other", time.Hour).Parse(tok); err == nil {
		t.Fatalf("token verified with wrong secret")
	}
}

func TestJWTMiddleware(t *testing.T) {
	a := NewAuthService("secret", time.Hour)
	alice := Identity{UserID: 1, Role: "student", Identifier: "1001", SessionID: "live"}
	sessions := fakeSessions{"live": alice}

	var seen Identity
	h := JWTMiddleware(a, sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromContext(r.Context())
		if rbac.RoleFromContext(r.Context()) != "student" {
			t.Errorf("role not mirrored into rbac context")
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	live, _ := a.IssueJWT(alice)
	revoked, _ := a.IssueJWT(Identity{UserID: 1, Role: "student", Identifier: "1001", SessionID: "gone"})
	forged, _ := a.IssueJWT(Identity{UserID: 1, Role: "teacher", Identifier: "1001", SessionID: "live"})

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + live, http.StatusNoContent},
		{"no header", "", http.StatusUnauthorized},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"revoked session", "Bearer " + revoked, http.StatusUnauthorized},
		{"role mismatch", "Bearer " + forged, http.StatusUnauthorized},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if c.header != "" {
				req.Header.Set("Authorization", c.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != c.want {
				t.Fatalf("status = %d want %d (%s)", rec.Code, c.want, rec.Body.String())
			}
		})
	}
	if seen.Identifier != "1001" || seen.SessionID != "live" {
		t.Fatalf("identity in context = %+v", seen)
	}
}

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore(dbtest.Open(t), time.Hour)
	now := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	id, err := s.Create(ctx, Identity{UserID: 3, Role: "teacher", Identifier: "1980"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(id.SessionID) != 128 {
		t.Fatalf("session id length = %d", len(id.SessionID))
	}
	got, err := s.Lookup(ctx, id.SessionID)
	if err != nil || got != id {
		t.Fatalf("lookup = %+v %v", got, err)
	}

	other, _ := s.Create(ctx, Identity{UserID: 4, Role: "student", Identifier: "1001"})
	if err := s.Delete(ctx, other.SessionID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Lookup(ctx, other.SessionID); apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Fatalf("lookup deleted err = %v", err)
	}

	now = now.Add(2 * time.Hour)
	if _, err := s.Lookup(ctx, id.SessionID); apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Fatalf("lookup expired err = %v", err)
	}
	n, err := s.DeleteExpired(ctx)
	if err != nil || n != 1 {
		t.Fatalf("DeleteExpired = %d %v", n, err)
	}
}

func TestStartSessionSweeper(t *testing.T) {
	ctx := context.Background()
	dbh := dbtest.Open(t)
	s := NewSessionStore(dbh, time.Hour)
	dbtest.Exec(t, dbh, `INSERT INTO sessions (id, user_id, user_role, identifier, expires_at) VALUES ('old', 1, 'student', '1001', 1)`)

	if _, err := StartSessionSweeper(ctx, s, "not a schedule"); err == nil {
		t.Fatalf("bad schedule accepted")
	}
	c, err := StartSessionSweeper(ctx, s, "0 3 * * *")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer c.Stop()

	var n int
	if err := dbh.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("startup sweep left %d sessions", n)
	}
}
