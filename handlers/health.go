package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/munistream/auth-gateway/app"
	"go.uber.org/zap"
)

// HealthCheck returns a simple health check handler
func HealthCheck(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy","auth_provider":"keycloak"}`))
	}
}

// ReadinessCheck verifies the identity provider's key set is reachable
func ReadinessCheck(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		response := map[string]interface{}{
			"status": "ready",
			"checks": map[string]string{},
		}

		if _, err := deps.KeyCache.Keys(ctx); err != nil {
			response["status"] = "not_ready"
			response["checks"].(map[string]string)["jwks"] = "unreachable"
			deps.Logger.Error("JWKS readiness check failed", zap.Error(err))
		} else {
			response["checks"].(map[string]string)["jwks"] = "healthy"
		}

		w.Header().Set("Content-Type", "application/json")
		if response["status"] == "ready" {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(response)
	}
}
