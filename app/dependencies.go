package app

import (
	"github.com/munistream/auth-gateway/auth"
	"github.com/munistream/auth-gateway/config"
	"github.com/munistream/auth-gateway/keycloak"
	"github.com/munistream/auth-gateway/middleware"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies. This is the central
// wiring point: the key cache is constructed once here and passed by
// reference into the verifier, so tests can swap in doubles and no
// package-level state is shared across runs.
type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger

	KeyCache *keycloak.KeyCache
	Verifier *keycloak.Verifier
	Provider *keycloak.Client

	AuthMiddleware *middleware.AuthMiddleware

	authHandler *auth.Handler
}

// AuthHandler returns the OAuth flow handler for route wiring
func (d *Dependencies) AuthHandler() *auth.Handler {
	return d.authHandler
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(cfg *config.Config, logger *zap.Logger) *Dependencies {
	kc := cfg.Keycloak
	endpoints := keycloak.NewEndpoints(kc.ServerURL, kc.Realm)
	httpClient := keycloak.NewHTTPClient(kc.HTTPTimeout, kc.VerifySSL)

	keyCache := keycloak.NewKeyCache(endpoints.JWKS, kc.JWKSCacheTTL, httpClient)
	verifier := keycloak.NewVerifier(keyCache, endpoints.Issuer, kc.ClientID)
	provider := keycloak.NewClient(endpoints, kc.ClientID, kc.ClientSecret, httpClient)

	deps := &Dependencies{
		Config:         cfg,
		Logger:         logger,
		KeyCache:       keyCache,
		Verifier:       verifier,
		Provider:       provider,
		AuthMiddleware: middleware.NewAuthMiddleware(verifier, provider, kc.ClientID, logger),
		authHandler:    auth.NewHandler(cfg, provider, verifier, logger),
	}

	logger.Info("dependencies initialized",
		zap.String("realm", kc.Realm),
		zap.String("issuer", endpoints.Issuer),
		zap.String("client_id", kc.ClientID))

	return deps
}
