package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/scorekeep/arena/internal/handler"
	"github.com/scorekeep/arena/internal/service"
)

// GameAdminHandler manages the game catalog.
type GameAdminHandler struct {
	catalog *service.CatalogService
}

// NewGameAdminHandler creates a new GameAdminHandler.
func NewGameAdminHandler(catalog *service.CatalogService) *GameAdminHandler {
	return &GameAdminHandler{catalog: catalog}
}

// ListGames handles GET /admin/games, inactive games included.
func (h *GameAdminHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	games, err := h.catalog.ListGames(r.Context(), true)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, games)
}

// CreateGame handles POST /admin/games.
func (h *GameAdminHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	caller, ok := handler.CallerOrReject(w, r)
	if !ok {
		return
	}
	var input service.GameInput
	if err := handler.DecodeJSON(r, &input); err != nil {
		handler.RespondError(w, errInvalidBody)
		return
	}

	game, err := h.catalog.CreateGame(r.Context(), caller, input)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusCreated, game)
}

// UpdateGame handles PUT /admin/games/{game_id}.
func (h *GameAdminHandler) UpdateGame(w http.ResponseWriter, r *http.Request) {
	caller, ok := handler.CallerOrReject(w, r)
	if !ok {
		return
	}
	var input service.GameUpdate
	if err := handler.DecodeJSON(r, &input); err != nil {
		handler.RespondError(w, errInvalidBody)
		return
	}

	game, err := h.catalog.UpdateGame(r.Context(), caller, chi.URLParam(r, "game_id"), input)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, game)
}

// DeleteGame handles DELETE /admin/games/{game_id} (soft delete).
func (h *GameAdminHandler) DeleteGame(w http.ResponseWriter, r *http.Request) {
	caller, ok := handler.CallerOrReject(w, r)
	if !ok {
		return
	}

	game, err := h.catalog.DeactivateGame(r.Context(), caller, chi.URLParam(r, "game_id"))
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, game)
}
