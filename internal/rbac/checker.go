package rbac

import (
	"context"
	"strings"
)

// Checker answers role/permission questions. Grants are compiled once into
// exact names and "prefix*" wildcards; a bare "*" grants everything.
type Checker struct {
	exact    map[string]map[string]struct{}
	prefixes map[string][]string
}

// NewChecker compiles grants; nil means the default RolePermissions.
func NewChecker(grants map[string][]string) *Checker {
	if grants == nil {
		grants = RolePermissions
	}
	c := &Checker{
		exact:    make(map[string]map[string]struct{}, len(grants)),
		prefixes: make(map[string][]string, len(grants)),
	}
	for role, perms := range grants {
		set := make(map[string]struct{}, len(perms))
		for _, p := range perms {
			if pre, ok := strings.CutSuffix(p, "*"); ok {
				c.prefixes[role] = append(c.prefixes[role], pre)
				continue
			}
			set[p] = struct{}{}
		}
		c.exact[role] = set
	}
	return c
}

func (c *Checker) Has(role, perm string) bool {
	if _, ok := c.exact[role][perm]; ok {
		return true
	}
	for _, pre := range c.prefixes[role] {
		if strings.HasPrefix(perm, pre) {
			return true
		}
	}
	return false
}

type roleKey struct{}

// WithRole tags ctx with the caller's role for the guards in this package.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(roleKey{}).(string)
	return role
}
