package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/scorekeep/arena/internal/ledger"
	"github.com/scorekeep/arena/internal/service"
)

// ResultHandler handles self-service result endpoints.
type ResultHandler struct {
	results *service.ResultService
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(results *service.ResultService) *ResultHandler {
	return &ResultHandler{results: results}
}

// Create handles POST /results. An Idempotency-Key header makes retries safe.
func (h *ResultHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerOrReject(w, r)
	if !ok {
		return
	}
	var input service.CreateResultInput
	if !decodeOrReject(w, r, &input) {
		return
	}

	out, err := h.results.Create(r.Context(), caller, r.Header.Get("Idempotency-Key"), input)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondCommand(w, out, http.StatusCreated)
}

// List handles GET /results?user_id=&team_id=&game_id=&limit=&offset=.
func (h *ResultHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerOrReject(w, r)
	if !ok {
		return
	}
	input, err := ParseResultQuery(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	page, err := h.results.List(r.Context(), caller, input)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, page)
}

// Get handles GET /results/{result_id}.
func (h *ResultHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerOrReject(w, r)
	if !ok {
		return
	}

	res, err := h.results.Get(r.Context(), caller, chi.URLParam(r, "result_id"))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, res)
}

// ParseResultQuery reads list filters from the query string.
func ParseResultQuery(r *http.Request) (service.ListResultsInput, error) {
	q := r.URL.Query()
	input := service.ListResultsInput{
		UserID: q.Get("user_id"),
		TeamID: q.Get("team_id"),
		GameID: q.Get("game_id"),
	}
	var err error
	if input.Limit, err = QueryInt(r, "limit", 0); err != nil {
		return input, err
	}
	if input.Offset, err = QueryInt(r, "offset", 0); err != nil {
		return input, err
	}
	return input, nil
}

// RespondCommand writes a ledger command's result. A replayed or no-op
// command answers 200 instead of created.
func RespondCommand(w http.ResponseWriter, out *ledger.CommandResult, created int) {
	status := created
	if out.Idempotent {
		w.Header().Set("Idempotent-Replayed", "true")
		status = http.StatusOK
	}
	RespondJSON(w, status, out.Result)
}
