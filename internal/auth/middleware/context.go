package auth

import (
	"context"

	"github.com/mind-engage/mindengage-kkm/internal/rbac"
)

type ctxKey string

const ctxKeyIdentity ctxKey = "identity"

// Identity is who a request acts as, resolved from token and session.
type Identity struct {
	UserID     int64
	Role       string
	Identifier string // nis for students, nip for teachers
	SessionID  string
}

// WithIdentity stores the identity and mirrors its role for the rbac guards.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, ctxKeyIdentity, id)
	return rbac.WithRole(ctx, id.Role)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKeyIdentity).(Identity)
	return id, ok
}

// IdentifierFromContext returns the caller's nis/nip, or "".
func IdentifierFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.Identifier
}
