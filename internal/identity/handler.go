package identity

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atlas-eam/atlas-eam/internal/platform/httpx"
	"github.com/atlas-eam/atlas-eam/internal/shared"
)

// Gate wraps guarded operations with a capability check.
type Gate interface {
	Require(capability string) func(http.Handler) http.Handler
}

// PermissionResolver computes a user's effective permission set.
type PermissionResolver interface {
	EffectivePermissionsForUser(ctx context.Context, userID int64) ([]string, error)
}

// Handler wires HTTP endpoints for user and role management.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	resolver  PermissionResolver
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, resolver PermissionResolver) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		resolver:  resolver,
		validator: validator.New(),
	}
}

// MountUserRoutes registers user management routes behind the gate.
func (h *Handler) MountUserRoutes(r chi.Router, gate Gate) {
	r.With(gate.Require(shared.CapUserCreate)).Post("/", h.createUser)
	r.With(gate.Require(shared.CapUserView)).Get("/{id}/effective-permissions", h.effectivePermissions)
	r.With(gate.Require(shared.CapUserAssignRole)).Post("/{id}/roles/{roleID}", h.assignRole)
	r.With(gate.Require(shared.CapUserGrantPerm)).Post("/{id}/permissions", h.assignPermissions)
	r.With(gate.Require(shared.CapUserView)).Get("/{id}/groups", h.listGroups)
	r.With(gate.Require(shared.CapGroupManage)).Post("/{id}/groups/{groupID}", h.addToGroup)
	r.With(gate.Require(shared.CapGroupManage)).Delete("/{id}/groups/{groupID}", h.removeFromGroup)
	r.With(gate.Require(shared.CapLocationAssign)).Post("/{id}/locations/{locationID}/roles/{roleID}", h.assignRoleAtLocation)
}

// MountRoleRoutes registers role management routes behind the gate.
func (h *Handler) MountRoleRoutes(r chi.Router, gate Gate) {
	r.With(gate.Require(shared.CapRoleManage)).Post("/{id}/permissions/{permissionID}", h.addPermissionToRole)
	r.With(gate.Require(shared.CapFeatureManage)).Post("/{id}/features/{featureID}", h.addFeatureToRole)
}

type createUserRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email" validate:"omitempty,email"`
	PhoneNumber string `json:"phoneNumber" validate:"omitempty,e164"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Password    string `json:"password" validate:"omitempty,min=8"`
}

type userResponse struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Enabled     bool   `json:"enabled"`
	Verified    bool   `json:"verified"`
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", "invalid json body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	user, err := h.service.CreateUser(r.Context(), CreateUserInput{
		Username:    req.Username,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Password:    req.Password,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *Handler) effectivePermissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	perms, err := h.resolver.EffectivePermissionsForUser(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	roleID, ok := pathID(w, r, "roleID")
	if !ok {
		return
	}
	if err := h.service.AssignRoleToUser(r.Context(), userID, roleID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assignPermissionsRequest struct {
	PermissionIDs []int64 `json:"permissionIds" validate:"required,min=1"`
}

func (h *Handler) assignPermissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req assignPermissionsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", "invalid json body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.AssignPermissionsToUser(r.Context(), userID, req.PermissionIDs); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type groupResponse struct {
	ID          int64  `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Active      bool   `json:"active"`
}

func (h *Handler) listGroups(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	groups, err := h.service.GroupsForUser(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]groupResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, groupResponse{
			ID:          g.ID,
			TenantID:    g.TenantID,
			Name:        g.Name,
			Description: g.Description,
			Active:      g.Active,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"groups": out})
}

func (h *Handler) addToGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	groupID, ok := pathID(w, r, "groupID")
	if !ok {
		return
	}
	if err := h.service.AddUserToGroup(r.Context(), groupID, userID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeFromGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	groupID, ok := pathID(w, r, "groupID")
	if !ok {
		return
	}
	if err := h.service.RemoveUserFromGroup(r.Context(), groupID, userID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) assignRoleAtLocation(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	locationID, ok := pathID(w, r, "locationID")
	if !ok {
		return
	}
	roleID, ok := pathID(w, r, "roleID")
	if !ok {
		return
	}
	assignment, err := h.service.AssignRoleAtLocation(r.Context(), userID, locationID, roleID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, assignment)
}

func (h *Handler) addPermissionToRole(w http.ResponseWriter, r *http.Request) {
	roleID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	permissionID, ok := pathID(w, r, "permissionID")
	if !ok {
		return
	}
	if err := h.service.AddPermissionToRole(r.Context(), roleID, permissionID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addFeatureToRole(w http.ResponseWriter, r *http.Request) {
	roleID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	featureID, ok := pathID(w, r, "featureID")
	if !ok {
		return
	}
	if err := h.service.AddFeatureToRole(r.Context(), roleID, featureID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toUserResponse(u *User) userResponse {
	return userResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Enabled:     u.Enabled,
		Verified:    u.Verified,
	}
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", "invalid "+param)
		return 0, false
	}
	return id, true
}
