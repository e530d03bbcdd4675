package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/munistream/auth-gateway/keycloak"
	"github.com/munistream/auth-gateway/utils"
	"go.uber.org/zap"
)

// TokenVerifier defines the interface for verifying bearer tokens
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*keycloak.TokenClaims, error)
}

// TokenIntrospector defines the interface for checking token liveness
type TokenIntrospector interface {
	Introspect(ctx context.Context, token string) (*keycloak.IntrospectionResult, error)
}

// AuthMiddleware provides the authorization guard chain. Each guard runs the
// same pipeline (bearer extraction, verification, live introspection, role
// extraction) and differs only in how failures and role requirements are
// handled.
type AuthMiddleware struct {
	verifier     TokenVerifier
	introspector TokenIntrospector
	clientID     string
	logger       *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(verifier TokenVerifier, introspector TokenIntrospector, clientID string, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		verifier:     verifier,
		introspector: introspector,
		clientID:     clientID,
		logger:       logger,
	}
}

// RequireAuth is a middleware that requires a valid, active bearer token.
// Verification and introspection failures all map to the same 401 so
// failure-reason details are not leaked to callers; a provider outage is a
// 500, not a credential error.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		// Already authenticated by an upstream guard
		if GetPrincipalFromContext(ctx) != nil {
			next.ServeHTTP(w, r)
			return
		}

		requestID := chimiddleware.GetReqID(ctx)

		token := extractBearerToken(r)
		if token == "" {
			m.logger.Warn("missing bearer token",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Authorization header missing")
			return
		}

		principal, err := m.authenticate(ctx, token)
		if err != nil {
			if errors.Is(err, keycloak.ErrProviderUnavailable) {
				m.logger.Error("authentication service unavailable",
					zap.String("request_id", requestID),
					zap.Error(err))
				_ = utils.WriteInternalServerError(w, "Authentication service error")
				return
			}
			m.logger.Warn("authentication failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Invalid authentication token")
			return
		}

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("sub", principal.Subject),
			zap.String("username", principal.Username))

		next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, principal)))
	})
}

// OptionalAuth is a middleware that authenticates a bearer token when one is
// present but never rejects the request: a missing, malformed, or inactive
// token degrades to anonymous access. Failures are logged at warn level
// only. A provider outage also anonymizes here, trading strictness for
// availability on optional routes.
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token := extractBearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		principal, err := m.authenticate(ctx, token)
		if err != nil {
			m.logger.Warn("optional authentication failed, continuing as anonymous",
				zap.String("request_id", chimiddleware.GetReqID(ctx)),
				zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, principal)))
	})
}

// RequireAnyRole returns a middleware that requires authentication plus at
// least one of the given roles. Role matching is case-sensitive exact
// string comparison.
func (m *AuthMiddleware) RequireAnyRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		check := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := GetPrincipalFromContext(r.Context())
			if principal == nil {
				_ = utils.WriteUnauthorized(w, "Authentication required")
				return
			}

			if !principal.HasAnyRole(roles...) {
				m.logger.Warn("insufficient permissions",
					zap.String("request_id", chimiddleware.GetReqID(r.Context())),
					zap.Strings("required_roles", roles),
					zap.Strings("user_roles", principal.Roles))
				_ = utils.WriteForbidden(w,
					"Insufficient permissions. Required roles: "+strings.Join(roles, ", "),
					map[string]interface{}{"required_roles": roles})
				return
			}

			next.ServeHTTP(w, r)
		})
		return m.RequireAuth(check)
	}
}

// RequireAllRoles returns a middleware that requires authentication plus
// every one of the given roles. The 403 response enumerates exactly which
// roles are missing.
func (m *AuthMiddleware) RequireAllRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		check := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := GetPrincipalFromContext(r.Context())
			if principal == nil {
				_ = utils.WriteUnauthorized(w, "Authentication required")
				return
			}

			if missing := principal.MissingRoles(roles); len(missing) > 0 {
				m.logger.Warn("missing required roles",
					zap.String("request_id", chimiddleware.GetReqID(r.Context())),
					zap.Strings("missing_roles", missing),
					zap.Strings("user_roles", principal.Roles))
				_ = utils.WriteForbidden(w,
					"Missing required roles: "+strings.Join(missing, ", "),
					map[string]interface{}{
						"required_roles": roles,
						"missing_roles":  missing,
					})
				return
			}

			next.ServeHTTP(w, r)
		})
		return m.RequireAuth(check)
	}
}

// authenticate runs the verification pipeline for a bearer token: signature
// and claims verification, live introspection, then principal construction
// with the extracted role set. Authentication is all-or-nothing; no partial
// principal is ever returned.
func (m *AuthMiddleware) authenticate(ctx context.Context, token string) (*keycloak.Principal, error) {
	claims, err := m.verifier.VerifyToken(ctx, token)
	if err != nil {
		return nil, err
	}

	introspection, err := m.introspector.Introspect(ctx, token)
	if err != nil {
		return nil, err
	}
	if !introspection.Active {
		return nil, keycloak.ErrTokenNotActive
	}

	return keycloak.NewPrincipal(claims, m.clientID), nil
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
