package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/scorekeep/arena/internal/domain"
	"github.com/scorekeep/arena/internal/handler"
	"github.com/scorekeep/arena/internal/service"
)

var errInvalidBody = domain.ErrValidation("invalid request body")

// ResultAdminHandler handles result moderation.
type ResultAdminHandler struct {
	results *service.ResultService
}

// NewResultAdminHandler creates a new ResultAdminHandler.
func NewResultAdminHandler(results *service.ResultService) *ResultAdminHandler {
	return &ResultAdminHandler{results: results}
}

// ListResults handles GET /admin/results?user_id=&team_id=&game_id=.
func (h *ResultAdminHandler) ListResults(w http.ResponseWriter, r *http.Request) {
	caller, ok := handler.CallerOrReject(w, r)
	if !ok {
		return
	}
	input, err := handler.ParseResultQuery(r)
	if err != nil {
		handler.RespondError(w, err)
		return
	}

	page, err := h.results.List(r.Context(), caller, input)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, page)
}

// CreateResult handles POST /admin/results. Admins may record a result for
// any user and verify it in the same request.
func (h *ResultAdminHandler) CreateResult(w http.ResponseWriter, r *http.Request) {
	caller, ok := handler.CallerOrReject(w, r)
	if !ok {
		return
	}
	var input service.CreateResultInput
	if err := handler.DecodeJSON(r, &input); err != nil {
		handler.RespondError(w, errInvalidBody)
		return
	}

	out, err := h.results.Create(r.Context(), caller, r.Header.Get("Idempotency-Key"), input)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondCommand(w, out, http.StatusCreated)
}

// UpdateResult handles PUT /admin/results/{result_id}.
func (h *ResultAdminHandler) UpdateResult(w http.ResponseWriter, r *http.Request) {
	caller, ok := handler.CallerOrReject(w, r)
	if !ok {
		return
	}
	var input service.AdminUpdateInput
	if err := handler.DecodeJSON(r, &input); err != nil {
		handler.RespondError(w, errInvalidBody)
		return
	}

	out, err := h.results.AdminUpdate(r.Context(), caller, chi.URLParam(r, "result_id"), input)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondCommand(w, out, http.StatusOK)
}
