package auth

import (
	"context"

	"github.com/EduShopX/edushop/pkg/logger"
)

type principalKey struct{}

// WithPrincipal stores p on ctx along with the logger user/role fields.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	ctx = context.WithValue(ctx, principalKey{}, p)
	ctx = context.WithValue(ctx, logger.UserIDKey, p.IDString())
	if p.Role != "" {
		ctx = context.WithValue(ctx, logger.RoleKey, string(p.Role))
	}
	return ctx
}

// PrincipalFrom returns the authenticated caller, if any.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
