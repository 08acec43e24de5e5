package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/scorekeep/arena/internal/domain"
	"github.com/scorekeep/arena/internal/handler"
	"github.com/scorekeep/arena/internal/service"
)

// UserAdminHandler handles account administration.
type UserAdminHandler struct {
	catalog *service.CatalogService
}

// NewUserAdminHandler creates a new UserAdminHandler.
func NewUserAdminHandler(catalog *service.CatalogService) *UserAdminHandler {
	return &UserAdminHandler{catalog: catalog}
}

// ListUsers handles GET /admin/users.
func (h *UserAdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	caller, ok := handler.CallerOrReject(w, r)
	if !ok {
		return
	}

	users, err := h.catalog.ListUsers(r.Context(), caller)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, users)
}

// GetUser handles GET /admin/users/{id}.
func (h *UserAdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := handler.CallerOrReject(w, r)
	if !ok {
		return
	}
	id, ok := userID(w, r)
	if !ok {
		return
	}

	user, err := h.catalog.GetUser(r.Context(), caller, id)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, user)
}

// UpdateRole handles PUT /admin/users/{id}/role.
func (h *UserAdminHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := handler.CallerOrReject(w, r)
	if !ok {
		return
	}
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var input struct {
		Role domain.Role `json:"role"`
	}
	if err := handler.DecodeJSON(r, &input); err != nil {
		handler.RespondError(w, errInvalidBody)
		return
	}

	user, err := h.catalog.SetRole(r.Context(), caller, id, input.Role)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, user)
}

// UpdateStatus handles PUT /admin/users/{id}/status.
func (h *UserAdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := handler.CallerOrReject(w, r)
	if !ok {
		return
	}
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var input struct {
		IsActive *bool `json:"is_active"`
	}
	if err := handler.DecodeJSON(r, &input); err != nil || input.IsActive == nil {
		handler.RespondError(w, domain.ErrValidation("is_active is required"))
		return
	}

	user, err := h.catalog.SetActive(r.Context(), caller, id, *input.IsActive)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, user)
}

func userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid user id"))
		return uuid.Nil, false
	}
	return id, true
}
