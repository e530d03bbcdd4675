package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/munistream/auth-gateway/app"
	"github.com/munistream/auth-gateway/handlers"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	guards := deps.AuthMiddleware

	// Health check endpoints
	r.Get("/healthz", handlers.HealthCheck(deps))
	r.Get("/readyz", handlers.ReadinessCheck(deps))

	// OAuth2 flow and token lifecycle endpoints
	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", handlers.AuthLoginHandler(deps))
		r.Get("/callback", handlers.AuthCallbackHandler(deps))
		r.Post("/refresh", handlers.RefreshTokenHandler(deps))
		r.Get("/userinfo", handlers.UserInfoHandler(deps))
		r.With(guards.RequireAuth).Post("/logout", handlers.LogoutHandler(deps))
	})

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck(deps))

		// Optional authentication: personalized when a valid token is present
		r.With(guards.OptionalAuth).Get("/public/workflows", handlers.PublicWorkflowsHandler(deps))

		// Required authentication
		r.With(guards.RequireAuth).Get("/user/profile", handlers.UserProfileHandler(deps))

		// Role-gated endpoints
		r.With(guards.RequireAnyRole("admin")).Get("/admin/users", handlers.ListUsersHandler(deps))
		r.With(guards.RequireAnyRole("approver", "admin")).Post("/workflows/{id}/approve", handlers.ApproveWorkflowHandler(deps))
		r.With(guards.RequireAnyRole("reviewer", "manager", "admin")).Get("/documents/review", handlers.DocumentsReviewHandler(deps))
		r.With(guards.RequireAllRoles("admin", "manager")).Post("/admin/system/config", handlers.UpdateSystemConfigHandler(deps))
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
