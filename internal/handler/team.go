package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/scorekeep/arena/internal/service"
)

// TeamHandler handles team endpoints.
type TeamHandler struct {
	catalog *service.CatalogService
}

// NewTeamHandler creates a new TeamHandler.
func NewTeamHandler(catalog *service.CatalogService) *TeamHandler {
	return &TeamHandler{catalog: catalog}
}

// List handles GET /teams?all=&include_inactive=.
func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerOrReject(w, r)
	if !ok {
		return
	}

	teams, err := h.catalog.ListTeams(r.Context(), caller, QueryBool(r, "all"), QueryBool(r, "include_inactive"))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, teams)
}

// Create handles POST /teams.
func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerOrReject(w, r)
	if !ok {
		return
	}
	var input service.TeamInput
	if !decodeOrReject(w, r, &input) {
		return
	}

	team, err := h.catalog.CreateTeam(r.Context(), caller, input)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, team)
}

// Get handles GET /teams/{team_id}.
func (h *TeamHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerOrReject(w, r)
	if !ok {
		return
	}

	team, err := h.catalog.GetTeam(r.Context(), caller, chi.URLParam(r, "team_id"))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, team)
}

// Update handles PUT /teams/{team_id}.
func (h *TeamHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerOrReject(w, r)
	if !ok {
		return
	}
	var input service.TeamInput
	if !decodeOrReject(w, r, &input) {
		return
	}

	team, err := h.catalog.RenameTeam(r.Context(), caller, chi.URLParam(r, "team_id"), input)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, team)
}

// Delete handles DELETE /teams/{team_id}. The team is deactivated, not removed.
func (h *TeamHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerOrReject(w, r)
	if !ok {
		return
	}

	team, err := h.catalog.DeactivateTeam(r.Context(), caller, chi.URLParam(r, "team_id"))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, team)
}
