package middleware

import (
	"context"

	"github.com/angelmondragon/catalog-backend/pkg/enums"
)

type principalKey struct{}

// Principal is the authenticated caller attached by Auth or OptionalAuth.
type Principal struct {
	UserID   string
	Role     string
	AccessID string
}

// IsAdmin reports whether the principal carries the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == string(enums.UserRoleAdmin)
}

// WithPrincipal stores p on ctx, replacing any earlier principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the caller and whether one was authenticated.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.UserID != ""
}

func UserIDFromContext(ctx context.Context) string {
	p, _ := PrincipalFromContext(ctx)
	return p.UserID
}

func RoleFromContext(ctx context.Context) string {
	p, _ := PrincipalFromContext(ctx)
	return p.Role
}

// AccessIDFromContext returns the jti of the token that authenticated the request.
func AccessIDFromContext(ctx context.Context) string {
	p, _ := PrincipalFromContext(ctx)
	return p.AccessID
}

// WithUserID and WithRole amend a single field of the stored principal.
func WithUserID(ctx context.Context, userID string) context.Context {
	p, _ := principalOf(ctx)
	p.UserID = userID
	return WithPrincipal(ctx, p)
}

func WithRole(ctx context.Context, role string) context.Context {
	p, _ := principalOf(ctx)
	p.Role = role
	return WithPrincipal(ctx, p)
}

func principalOf(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
