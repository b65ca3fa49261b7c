package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChecker_Has(t *testing.T) {
	c := NewChecker(nil)
	cases := []struct {
		role, perm string
		want       bool
	}{
		{RoleTeacher, "kkm:update", true},
		{RoleTeacher, "scores:export", true},
		{RoleTeacher, "roster:delete", true},
		{RoleTeacher, "quiz:answer", false},
		{RoleStudent, "quiz:answer", true},
		{RoleStudent, "kkm:update", false},
		{RoleStudent, "scores:view-all", false},
		{"admin", "kkm:update", false},
	}
	for _, tc := range cases {
		if got := c.Has(tc.role, tc.perm); got != tc.want {
			t.Errorf("Has(%s, %s) = %v want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}

func serve(mw func(http.Handler) http.Handler, role string) int {
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if role != "" {
		req = req.WithContext(WithRole(context.Background(), role))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestMiddleware(t *testing.T) {
	owner := func(*http.Request) bool { return true }
	stranger := func(*http.Request) bool { return false }

	cases := []struct {
		name string
		mw   func(http.Handler) http.Handler
		role string
		want int
	}{
		{"require ok", Require("dashboard:view"), RoleTeacher, http.StatusOK},
		{"require denied", Require("dashboard:view"), RoleStudent, http.StatusForbidden},
		{"require no role", Require("dashboard:view"), "", http.StatusForbidden},
		{"owner", RequireOwnerOr("scores:view-all", owner), RoleStudent, http.StatusOK},
		{"perm instead of owner", RequireOwnerOr("scores:view-all", stranger), RoleTeacher, http.StatusOK},
		{"neither", RequireOwnerOr("scores:view-all", stranger), RoleStudent, http.StatusForbidden},
		{"owner only", RequireOwner(stranger), RoleTeacher, http.StatusForbidden},
	}
	for _, c := range cases {
		if got := serve(c.mw, c.role); got != c.want {
			t.Errorf("%s: status %d want %d", c.name, got, c.want)
		}
	}
}
