package auth

import "context"

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	identityContextKey contextKey = "identity"
	tokenContextKey    contextKey = "token"
)

// ContextWithIdentity attaches a verified identity and the token it came from.
func ContextWithIdentity(ctx context.Context, id Identity, token string) context.Context {
	ctx = context.WithValue(ctx, identityContextKey, id)
	return context.WithValue(ctx, tokenContextKey, token)
}

// IdentityFromContext returns the identity set by the auth middleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(Identity)
	return id, ok && id.UserID != ""
}

// MustIdentityFromContext returns the identity or panics.
// Use only behind the auth middleware.
func MustIdentityFromContext(ctx context.Context) Identity {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		panic("identity not found - ensure auth middleware is applied")
	}
	return id
}

// UserIDFromContext returns the caller's user ID or an empty string.
func UserIDFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}

// TokenFromContext returns the bearer token that authenticated the request.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey).(string)
	return token
}
