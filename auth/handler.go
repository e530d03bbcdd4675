package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/munistream/auth-gateway/config"
	"github.com/munistream/auth-gateway/keycloak"
	"github.com/munistream/auth-gateway/utils"
	"go.uber.org/zap"
)

const (
	// StateCookieName is the cookie name for OAuth state (CSRF)
	StateCookieName = "oauth_state"
	// SessionCookieName is the cookie name for the session token
	SessionCookieName = "session"

	stateCookieMaxAge   = 600
	sessionCookieMaxAge = 86400
)

// Provider exposes the token lifecycle operations the login flow needs.
type Provider interface {
	AuthorizationURL(opts keycloak.AuthorizationURLOptions) string
	ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*keycloak.TokenResponse, error)
}

// TokenVerifier validates bearer tokens and returns decoded claims.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*keycloak.TokenClaims, error)
}

// Handler handles the browser-facing OAuth2 authorization-code flow
// (login redirect and callback).
type Handler struct {
	cfg      *config.Config
	provider Provider
	verifier TokenVerifier
	logger   *zap.Logger
}

// NewHandler creates a new auth handler
func NewHandler(cfg *config.Config, provider Provider, verifier TokenVerifier, logger *zap.Logger) *Handler {
	return &Handler{
		cfg:      cfg,
		provider: provider,
		verifier: verifier,
		logger:   logger,
	}
}

// HandleLogin redirects to the Keycloak authorization endpoint
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := generateSecureState()
	if err != nil {
		h.logger.Error("failed to generate state", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to initiate login")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   stateCookieMaxAge,
		HttpOnly: true,
		Secure:   strings.HasPrefix(h.cfg.Keycloak.RedirectURI, "https"),
		SameSite: http.SameSiteLaxMode,
	})

	authURL := h.provider.AuthorizationURL(keycloak.AuthorizationURLOptions{
		RedirectURI: h.cfg.Keycloak.RedirectURI,
		State:       state,
		Nonce:       uuid.NewString(),
	})
	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleCallback exchanges the authorization code for tokens, verifies the
// access token, and sets the session cookie
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	if code == "" {
		_ = utils.WriteBadRequest(w, "Missing authorization code", nil)
		return
	}
	if state == "" {
		_ = utils.WriteBadRequest(w, "Missing state parameter", nil)
		return
	}

	stateCookie, err := r.Cookie(StateCookieName)
	if err != nil || stateCookie.Value != state {
		_ = utils.WriteBadRequest(w, "Invalid or expired state", nil)
		return
	}

	secure := strings.HasPrefix(h.cfg.Keycloak.RedirectURI, "https")
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})

	tokens, err := h.provider.ExchangeCode(r.Context(), code, h.cfg.Keycloak.RedirectURI, "")
	if err != nil {
		h.logger.Warn("code exchange failed", zap.Error(err))
		_ = utils.WriteUnauthorized(w, "Authentication failed")
		return
	}

	if _, err := h.verifier.VerifyToken(r.Context(), tokens.AccessToken); err != nil {
		h.logger.Warn("token verification failed after exchange", zap.Error(err))
		_ = utils.WriteUnauthorized(w, "Invalid token")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    tokens.AccessToken,
		Path:     "/",
		MaxAge:   sessionCookieMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})

	redirectURL := h.cfg.Keycloak.FrontEndURL
	if redirectURL == "" {
		redirectURL = "/"
	}
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

func generateSecureState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
