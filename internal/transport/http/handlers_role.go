package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	roleModels "flock/internal/role/models"
	"flock/internal/transport/http/json"
	"flock/internal/transport/http/shared"
)

type RoleService interface {
	Create(ctx context.Context, req *roleModels.CreateRoleRequest) (*roleModels.Role, error)
	Update(ctx context.Context, id string, req *roleModels.UpdateRoleRequest) (*roleModels.Role, error)
	Delete(ctx context.Context, id string) (*roleModels.Role, error)
	Get(ctx context.Context, id string) (*roleModels.Role, error)
	List(ctx context.Context) ([]roleModels.Role, error)
	AssignUsers(ctx context.Context, groupID string, req *roleModels.AssignUsersRequest) error
	RemoveUsers(ctx context.Context, groupID string, req *roleModels.RemoveUsersRequest) error
	GroupAssignments(ctx context.Context, groupID string) ([]roleModels.Assignment, error)
	Drift(ctx context.Context) (*roleModels.DriftReport, error)
}

// RoleHandler handles role and group-assignment endpoints. All of them sit
// behind the bearer-token middleware.
type RoleHandler struct {
	logger *slog.Logger
	roles  RoleService
}

func NewRoleHandler(roles RoleService, logger *slog.Logger) *RoleHandler {
	return &RoleHandler{roles: roles, logger: logger}
}

func (h *RoleHandler) Register(r chi.Router) {
	r.Route("/roles", func(r chi.Router) {
		r.Post("/", h.handleCreateRole)
		r.Get("/", h.handleListRoles)
		r.Get("/drift", h.handleDrift)
		r.Get("/{roleID}", h.handleGetRole)
		r.Patch("/{roleID}", h.handleUpdateRole)
		r.Delete("/{roleID}", h.handleDeleteRole)
	})
	r.Route("/groups/{groupID}/users", func(r chi.Router) {
		r.Get("/", h.handleGroupAssignments)
		r.Put("/", h.handleAssignUsers)
		r.Delete("/", h.handleRemoveUsers)
	})
}

func (h *RoleHandler) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	var req roleModels.CreateRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	role, err := h.roles.Create(r.Context(), &req)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, role)
}

func (h *RoleHandler) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roles.List(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if roles == nil {
		roles = []roleModels.Role{}
	}
	json.WriteJSON(w, http.StatusOK, roles)
}

func (h *RoleHandler) handleGetRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.roles.Get(r.Context(), chi.URLParam(r, "roleID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, role)
}

func (h *RoleHandler) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	var req roleModels.UpdateRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	role, err := h.roles.Update(r.Context(), chi.URLParam(r, "roleID"), &req)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, role)
}

func (h *RoleHandler) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.roles.Delete(r.Context(), chi.URLParam(r, "roleID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, role)
}

func (h *RoleHandler) handleDrift(w http.ResponseWriter, r *http.Request) {
	report, err := h.roles.Drift(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, report)
}

func (h *RoleHandler) handleGroupAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.roles.GroupAssignments(r.Context(), chi.URLParam(r, "groupID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if assignments == nil {
		assignments = []roleModels.Assignment{}
	}
	json.WriteJSON(w, http.StatusOK, assignments)
}

func (h *RoleHandler) handleAssignUsers(w http.ResponseWriter, r *http.Request) {
	var req roleModels.AssignUsersRequest
	if err := decodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	groupID := chi.URLParam(r, "groupID")
	if err := h.roles.AssignUsers(r.Context(), groupID, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, map[string]any{
		"group_id": groupID,
		"assigned": len(req.Users),
	})
}

func (h *RoleHandler) handleRemoveUsers(w http.ResponseWriter, r *http.Request) {
	var req roleModels.RemoveUsersRequest
	if err := decodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	groupID := chi.URLParam(r, "groupID")
	if err := h.roles.RemoveUsers(r.Context(), groupID, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, map[string]any{
		"group_id": groupID,
		"removed":  len(req.UserIDs),
	})
}
