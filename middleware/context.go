package middleware

import (
	"context"

	"github.com/munistream/auth-gateway/keycloak"
)

// Context key type to avoid collisions
type contextKey string

// PrincipalKey is the context key for the authenticated principal
const PrincipalKey contextKey = "principal"

// GetPrincipalFromContext retrieves the authenticated principal from
// context. It returns nil for anonymous requests.
func GetPrincipalFromContext(ctx context.Context) *keycloak.Principal {
	if val := ctx.Value(PrincipalKey); val != nil {
		if principal, ok := val.(*keycloak.Principal); ok {
			return principal
		}
	}
	return nil
}

// WithPrincipal adds an authenticated principal to the context
func WithPrincipal(ctx context.Context, principal *keycloak.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, principal)
}
