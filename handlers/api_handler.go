package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/munistream/auth-gateway/app"
	"github.com/munistream/auth-gateway/middleware"
	"github.com/munistream/auth-gateway/utils"
)

// UserProfileHandler returns the authenticated user's profile
func UserProfileHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal := middleware.GetPrincipalFromContext(r.Context())
		if principal == nil {
			_ = utils.WriteUnauthorized(w, "Authentication required")
			return
		}

		_ = utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"username":       principal.Username,
			"email":          principal.Email,
			"name":           principal.Name,
			"roles":          principal.Roles,
			"email_verified": principal.EmailVerified,
		})
	}
}

// PublicWorkflowsHandler lists workflows, personalized when the caller is
// authenticated
func PublicWorkflowsHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal := middleware.GetPrincipalFromContext(r.Context())

		if principal != nil {
			_ = utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
				"workflows":    []string{"permit_application", "license_renewal", "tax_payment"},
				"user":         principal.Username,
				"personalized": true,
			})
			return
		}

		_ = utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"workflows":    []string{"permit_application"},
			"personalized": false,
		})
	}
}

// ListUsersHandler lists users (admin role required via route guard)
func ListUsersHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal := middleware.GetPrincipalFromContext(r.Context())

		_ = utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"users": []string{},
			"total": 0,
			"page":  1,
			"admin": principal.Username,
		})
	}
}

// ApproveWorkflowHandler approves a workflow (approver or admin role
// required via route guard)
func ApproveWorkflowHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal := middleware.GetPrincipalFromContext(r.Context())
		workflowID := chi.URLParam(r, "id")

		_ = utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"workflow_id": workflowID,
			"status":      "approved",
			"approved_by": principal.Username,
		})
	}
}

// DocumentsReviewHandler lists documents pending review (reviewer, manager,
// or admin role required via route guard)
func DocumentsReviewHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal := middleware.GetPrincipalFromContext(r.Context())

		_ = utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"documents": []string{},
			"reviewer":  principal.Username,
		})
	}
}

// UpdateSystemConfigHandler updates system configuration (both admin and
// manager roles required via route guard)
func UpdateSystemConfigHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal := middleware.GetPrincipalFromContext(r.Context())

		var cfg map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			_ = utils.WriteBadRequest(w, "Invalid JSON body", nil)
			return
		}

		_ = utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"config":     cfg,
			"updated_by": principal.Username,
			"status":     "updated",
		})
	}
}
