package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/munistream/auth-gateway/app"
	"github.com/munistream/auth-gateway/keycloak"
	"github.com/munistream/auth-gateway/utils"
	"go.uber.org/zap"
)

// AuthLoginHandler returns an http.HandlerFunc for the login redirect
func AuthLoginHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.AuthHandler().HandleLogin(w, r)
	}
}

// AuthCallbackHandler returns an http.HandlerFunc for the OAuth callback
func AuthCallbackHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.AuthHandler().HandleCallback(w, r)
	}
}

// RefreshRequest is the request body for the token refresh endpoint
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RefreshTokenHandler exchanges a refresh token for a new token pair
func RefreshTokenHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RefreshRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		tokens, err := deps.Provider.Refresh(r.Context(), req.RefreshToken)
		if err != nil {
			if errors.Is(err, keycloak.ErrInvalidRefreshToken) {
				deps.Logger.Warn("refresh token rejected", zap.Error(err))
				_ = utils.WriteUnauthorized(w, "Invalid refresh token")
				return
			}
			deps.Logger.Error("token refresh failed", zap.Error(err))
			_ = utils.WriteInternalServerError(w, "Authentication service error")
			return
		}

		_ = utils.WriteJSON(w, http.StatusOK, tokens)
	}
}

// LogoutRequest is the request body for the logout endpoint
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	RedirectURI  string `json:"redirect_uri,omitempty"`
}

// LogoutHandler revokes the session bound to the refresh token
func LogoutHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LogoutRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if err := deps.Provider.Logout(r.Context(), req.RefreshToken, req.RedirectURI); err != nil {
			deps.Logger.Error("logout failed", zap.Error(err))
			_ = utils.WriteInternalServerError(w, "Logout failed")
			return
		}

		_ = utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
	}
}

// UserInfoHandler proxies the provider's userinfo endpoint for the caller's
// bearer token
func UserInfoHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			_ = utils.WriteUnauthorized(w, "Authorization header missing")
			return
		}

		info, err := deps.Provider.UserInfo(r.Context(), token)
		if err != nil {
			if errors.Is(err, keycloak.ErrClaimsInvalid) {
				_ = utils.WriteUnauthorized(w, "Invalid authentication token")
				return
			}
			deps.Logger.Error("userinfo fetch failed", zap.Error(err))
			_ = utils.WriteInternalServerError(w, "Authentication service error")
			return
		}

		_ = utils.WriteJSON(w, http.StatusOK, info)
	}
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
