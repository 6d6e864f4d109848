package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/taskapi/pkg/auth"
	"github.com/platinummonkey/taskapi/pkg/httputil"
	"github.com/platinummonkey/taskapi/pkg/middleware"
	"github.com/platinummonkey/taskapi/pkg/observability"
	"github.com/platinummonkey/taskapi/pkg/rbac"
	"github.com/platinummonkey/taskapi/pkg/storage"
)

// AdminHandlers exposes user management to admins
type AdminHandlers struct {
	users   storage.UserStore
	metrics *observability.Metrics
	authn   *middleware.AuthMiddleware
}

// NewAdminHandlers creates a new admin handlers instance
func NewAdminHandlers(users storage.UserStore, metrics *observability.Metrics, authn *middleware.AuthMiddleware) *AdminHandlers {
	return &AdminHandlers{
		users:   users,
		metrics: metrics,
		authn:   authn,
	}
}

// RegisterRoutes registers admin routes. Every route requires an admin
// principal, checked before the store is touched.
func (h *AdminHandlers) RegisterRoutes(router *mux.Router) {
	admin := subrouter(router, "/admin")
	admin.Use(h.authn.Handler)

	admin.Handle("/users", h.requireAdmin(rbac.ActionList, h.listUsers)).Methods(http.MethodGet)
	admin.Handle("/users/{id}/role", h.requireAdmin(rbac.ActionUpdateRole, h.updateRole)).Methods(http.MethodPut)
	admin.Handle("/users/{id}", h.requireAdmin(rbac.ActionDelete, h.deleteUser)).Methods(http.MethodDelete)
}

func (h *AdminHandlers) requireAdmin(action rbac.Action, next http.HandlerFunc) http.Handler {
	perm := rbac.Permission{Resource: rbac.ResourceUser, Action: action}
	return middleware.RequireAdmin(h.metrics, perm)(next)
}

// listUsers handles GET /admin/users
func (h *AdminHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, listResponse("users", len(users), auth.PublicUsers(users)))
}

// updateRole handles PUT /admin/users/{id}/role
func (h *AdminHandlers) updateRole(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathVar(r, "id")
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	var req UpdateRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	role, err := rbac.ValidateRole(req.Role)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	user, err := h.users.UpdateUserRole(r.Context(), id, role)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	observability.FromContext(r.Context()).
		WithField("target_user_id", id).
		WithField("role", role.String()).
		Info("User role updated")

	httputil.WriteSuccess(w, http.StatusOK, httputil.Envelope{
		"message": "User role updated successfully",
		"user":    user.Public(),
	})
}

// deleteUser handles DELETE /admin/users/{id}.
// Tasks created by or assigned to the user are kept.
func (h *AdminHandlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathVar(r, "id")
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	if err := h.users.DeleteUser(r.Context(), id); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	observability.FromContext(r.Context()).WithField("target_user_id", id).Info("User deleted")
	httputil.WriteMessage(w, http.StatusOK, "User deleted successfully")
}
