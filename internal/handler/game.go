package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/scorekeep/arena/internal/service"
)

// GameHandler serves the public game catalog.
type GameHandler struct {
	catalog *service.CatalogService
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(catalog *service.CatalogService) *GameHandler {
	return &GameHandler{catalog: catalog}
}

// List handles GET /games (active games only).
func (h *GameHandler) List(w http.ResponseWriter, r *http.Request) {
	games, err := h.catalog.ListGames(r.Context(), false)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, games)
}

// Get handles GET /games/{game_id}.
func (h *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	game, err := h.catalog.GetGame(r.Context(), chi.URLParam(r, "game_id"))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, game)
}
