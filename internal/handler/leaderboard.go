package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/scorekeep/arena/internal/domain"
	"github.com/scorekeep/arena/internal/infra"
	"github.com/scorekeep/arena/internal/service"
)

// LeaderboardHandler serves aggregates and the live leaderboard stream.
type LeaderboardHandler struct {
	board *service.LeaderboardService
	hub   *infra.WSHub
}

// NewLeaderboardHandler creates a new LeaderboardHandler. hub may be nil to
// disable the websocket stream.
func NewLeaderboardHandler(board *service.LeaderboardService, hub *infra.WSHub) *LeaderboardHandler {
	return &LeaderboardHandler{board: board, hub: hub}
}

// Leaderboard handles GET /leaderboard.
func (h *LeaderboardHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.board.Leaderboard(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, entries)
}

// GamesForUser handles GET /users/{user_id}/games.
func (h *LeaderboardHandler) GamesForUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid user id"))
		return
	}
	h.gamesFor(w, r, id)
}

// MyGames handles GET /me/games.
func (h *LeaderboardHandler) MyGames(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerOrReject(w, r)
	if !ok {
		return
	}
	h.gamesFor(w, r, caller.ID)
}

func (h *LeaderboardHandler) gamesFor(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	games, err := h.board.GamesForUser(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, games)
}

// Stream handles GET /ws/leaderboard. Subscribers receive a
// "leaderboard.changed" event whenever a result is created or updated and
// re-fetch the leaderboard.
func (h *LeaderboardHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		RespondError(w, domain.ErrNotFound("stream", "leaderboard"))
		return
	}
	h.hub.ServeRoom(w, r, service.LeaderboardRoom)
}
