// Package context holds the request-scoped values shared by the HTTP layer
// and the resolvers: request id, caller identity, roles and token claims.
package context

import "context"

// contextKey is a custom type for context keys to avoid collisions
type contextKey int

const (
	requestIDKey contextKey = iota
	currentUserKey
	userRolesKey
	claimsKey
)

func value[T any](ctx context.Context, key contextKey) (T, bool) {
	v, ok := ctx.Value(key).(T)
	return v, ok
}

// GetRequestID extracts the request ID from the context
func GetRequestID(ctx context.Context) string {
	id, _ := value[string](ctx, requestIDKey)
	return id
}

// SetRequestID adds the request ID to the context
func SetRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetCurrentUser extracts the caller's user id. Anonymous callers have none.
func GetCurrentUser(ctx context.Context) string {
	user, _ := value[string](ctx, currentUserKey)
	return user
}

// SetCurrentUser adds the caller's user id to the context
func SetCurrentUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, currentUserKey, user)
}

// GetUserRoles extracts the caller's roles
func GetUserRoles(ctx context.Context) []string {
	roles, _ := value[[]string](ctx, userRolesKey)
	return roles
}

// SetUserRoles adds the caller's roles to the context
func SetUserRoles(ctx context.Context, roles []string) context.Context {
	return context.WithValue(ctx, userRolesKey, roles)
}

// GetClaims returns the verified token claims of the caller, or nil
func GetClaims(ctx context.Context) map[string]any {
	claims, _ := value[map[string]any](ctx, claimsKey)
	return claims
}

// SetClaims adds verified token claims to the context
func SetClaims(ctx context.Context, claims map[string]any) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// GetClaim returns a single claim of the caller's token
func GetClaim(ctx context.Context, name string) (any, bool) {
	v, ok := GetClaims(ctx)[name]
	return v, ok
}
