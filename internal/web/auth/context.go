package auth

import (
	"context"

	webcontext "github.com/conduit-lang/gqlmeta/internal/web/context"
)

// WithIdentity stores the caller in the context read by the resolvers
func WithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = webcontext.SetCurrentUser(ctx, id.UserID)
	if len(id.Roles) > 0 {
		ctx = webcontext.SetUserRoles(ctx, id.Roles)
	}
	if id.Claims != nil {
		ctx = webcontext.SetClaims(ctx, id.Claims)
	}
	return ctx
}

// IdentityFrom returns the caller stored in ctx. The zero Identity means
// an anonymous caller.
func IdentityFrom(ctx context.Context) Identity {
	return Identity{
		UserID: webcontext.GetCurrentUser(ctx),
		Roles:  webcontext.GetUserRoles(ctx),
		Claims: webcontext.GetClaims(ctx),
	}
}

// GetCurrentUser retrieves the current user ID from the context
// Returns an empty string if no user is authenticated
func GetCurrentUser(ctx context.Context) string {
	return webcontext.GetCurrentUser(ctx)
}
