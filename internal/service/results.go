package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/scorekeep/arena/internal/domain"
	"github.com/scorekeep/arena/internal/guard"
	"github.com/scorekeep/arena/internal/infra"
	"github.com/scorekeep/arena/internal/ledger"
	"github.com/scorekeep/arena/internal/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultResultLimit = 100
	maxResultLimit     = 500
)

// Admin update outcomes reported to metrics.
const (
	outcomeApplied    = "applied"
	outcomeIdempotent = "idempotent"
	outcomeRejected   = "rejected"
)

// CreateResultInput is the body of a result create.
//
// Field mapping: "team_id" (alias "team") -> TeamID, "game_id" (alias
// "game") -> GameID. When both spellings are sent the *_id form wins.
// UserID and VerifiedByAdmin are honoured for admins only.
type CreateResultInput struct {
	UserID          string `json:"user_id"`
	TeamID          string `json:"team_id"`
	GameID          string `json:"game_id"`
	PointsScored    *int   `json:"points_scored"`
	Notes           string `json:"notes"`
	VerifiedByAdmin bool   `json:"verified_by_admin"`
}

// UnmarshalJSON resolves the team/game aliases once at the boundary.
func (in *CreateResultInput) UnmarshalJSON(data []byte) error {
	type plain CreateResultInput
	var raw struct {
		plain
		Team string `json:"team"`
		Game string `json:"game"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*in = CreateResultInput(raw.plain)
	if in.TeamID == "" {
		in.TeamID = raw.Team
	}
	if in.GameID == "" {
		in.GameID = raw.Game
	}
	return nil
}

// AdminUpdateInput is the body of an admin result update.
type AdminUpdateInput struct {
	PointsScored    *int    `json:"points_scored"`
	Notes           *string `json:"notes"`
	VerifiedByAdmin *bool   `json:"verified_by_admin"`
}

// ListResultsInput narrows a result listing.
type ListResultsInput struct {
	UserID string
	TeamID string
	GameID string
	Limit  int
	Offset int
}

// ResultPage is a page of results.
type ResultPage struct {
	Count   int             `json:"count"`
	Results []domain.Result `json:"results"`
}

// ResultService runs the result lifecycle: create, admin update and reads.
type ResultService struct {
	pool    repository.TxBeginner
	engine  *ledger.Engine
	results repository.ResultRepository
	idem    *guard.IdempotencyGuard
	notify  Notifier
	logger  *slog.Logger
}

// NewResultService creates a ResultService.
func NewResultService(
	pool repository.TxBeginner,
	engine *ledger.Engine,
	results repository.ResultRepository,
	idem *guard.IdempotencyGuard,
	notify Notifier,
	logger *slog.Logger,
) *ResultService {
	if notify == nil {
		notify = NopNotifier{}
	}
	return &ResultService{
		pool:    pool,
		engine:  engine,
		results: results,
		idem:    idem,
		notify:  notify,
		logger:  logger,
	}
}

// Create records a result. With a non-empty idempotencyKey a retried request
// returns the result the first one created instead of writing a second row.
func (s *ResultService) Create(ctx context.Context, caller domain.Caller, idempotencyKey string, input CreateResultInput) (*ledger.CommandResult, error) {
	ctx, span := tracer.Start(ctx, "ResultService.Create")
	defer span.End()

	if input.PointsScored == nil {
		return nil, domain.ErrValidation("points_scored is required")
	}
	params := ledger.CreateParams{
		Caller:          caller,
		TeamID:          input.TeamID,
		GameID:          input.GameID,
		PointsScored:    *input.PointsScored,
		Notes:           input.Notes,
		VerifiedByAdmin: input.VerifiedByAdmin,
	}
	if input.UserID != "" {
		id, err := uuid.Parse(input.UserID)
		if err != nil {
			return nil, domain.ErrValidation("user_id must be a uuid")
		}
		params.UserID = id
	}

	key := ""
	if idempotencyKey != "" {
		key = caller.ID.String() + ":" + idempotencyKey
		prior, res := s.idem.Reserve(ctx, key)
		if prior != "" {
			return s.replay(ctx, prior)
		}
		if !res.Allowed {
			return nil, domain.ErrConflict("a request with this Idempotency-Key is still in progress")
		}
	}

	var out *ledger.CommandResult
	err := withTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		out, err = s.engine.ExecuteCreate(ctx, tx, params)
		return err
	})
	if err != nil {
		s.idem.Remove(key)
		s.observeRejection(err)
		span.RecordError(err)
		return nil, appError("create result", err)
	}
	s.idem.Complete(key, out.Result.ID)

	infra.ObserveResultCreated(out.Result.VerifiedByAdmin)
	annotate(span, out.Result)
	s.changed(out.Result)
	s.logger.Info("result created",
		"result_id", out.Result.ID,
		"user_id", out.Result.UserID,
		"points", out.Result.PointsScored,
		"verified", out.Result.VerifiedByAdmin,
	)
	return out, nil
}

func (s *ResultService) replay(ctx context.Context, id string) (*ledger.CommandResult, error) {
	res, err := s.results.FindByID(ctx, s.pool, id)
	if err != nil {
		return nil, domain.ErrInternal("find result", err)
	}
	if res == nil {
		return nil, domain.ErrInternal("replay result", fmt.Errorf("result %s recorded for idempotency key is missing", id))
	}
	return &ledger.CommandResult{Result: res, Idempotent: true}, nil
}

// AdminUpdate applies an admin's edit to a result, re-validating the score
// and stamping the admin in the same write.
func (s *ResultService) AdminUpdate(ctx context.Context, caller domain.Caller, resultID string, input AdminUpdateInput) (*ledger.CommandResult, error) {
	ctx, span := tracer.Start(ctx, "ResultService.AdminUpdate", trace.WithAttributes(attribute.String("result_id", resultID)))
	defer span.End()

	var out *ledger.CommandResult
	err := withTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		out, err = s.engine.ExecuteAdminUpdate(ctx, tx, ledger.AdminUpdateParams{
			Caller:          caller,
			ResultID:        resultID,
			PointsScored:    input.PointsScored,
			Notes:           input.Notes,
			VerifiedByAdmin: input.VerifiedByAdmin,
		})
		return err
	})
	if err != nil {
		infra.ObserveAdminUpdate(outcomeRejected)
		s.observeRejection(err)
		span.RecordError(err)
		return nil, appError("update result", err)
	}

	if out.Idempotent {
		infra.ObserveAdminUpdate(outcomeIdempotent)
		return out, nil
	}
	infra.ObserveAdminUpdate(outcomeApplied)
	annotate(span, out.Result)
	s.changed(out.Result)
	s.logger.Info("result updated by admin",
		"result_id", out.Result.ID,
		"admin_id", caller.ID,
		"points", out.Result.PointsScored,
		"verified", out.Result.VerifiedByAdmin,
	)
	return out, nil
}

// Get returns a result visible to the caller (owner or admin).
func (s *ResultService) Get(ctx context.Context, caller domain.Caller, id string) (*domain.Result, error) {
	res, err := s.results.FindByID(ctx, s.pool, id)
	if err != nil {
		return nil, domain.ErrInternal("find result", err)
	}
	if res == nil {
		return nil, domain.ErrNotFound("result", id)
	}
	if res.UserID != caller.ID && !caller.IsAdmin() {
		return nil, domain.ErrForbidden("result belongs to another user")
	}
	return res, nil
}

// List returns results newest first. Non-admins only see their own.
func (s *ResultService) List(ctx context.Context, caller domain.Caller, input ListResultsInput) (*ResultPage, error) {
	filter, err := s.filter(caller, input)
	if err != nil {
		return nil, err
	}
	results, err := s.results.List(ctx, s.pool, filter)
	if err != nil {
		return nil, domain.ErrInternal("list results", err)
	}
	return &ResultPage{Count: len(results), Results: results}, nil
}

func (s *ResultService) filter(caller domain.Caller, input ListResultsInput) (domain.ResultFilter, error) {
	f := domain.ResultFilter{Limit: input.Limit, Offset: input.Offset}
	if f.Limit <= 0 {
		f.Limit = defaultResultLimit
	}
	if f.Limit > maxResultLimit {
		f.Limit = maxResultLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	if input.UserID != "" {
		id, err := uuid.Parse(input.UserID)
		if err != nil {
			return f, domain.ErrValidation("user_id must be a uuid")
		}
		f.UserID = &id
	}
	if !caller.IsAdmin() {
		if f.UserID != nil && *f.UserID != caller.ID {
			return f, domain.ErrForbidden("only admins may list other users' results")
		}
		own := caller.ID
		f.UserID = &own
	}
	if input.TeamID != "" {
		f.TeamID = &input.TeamID
	}
	if input.GameID != "" {
		f.GameID = &input.GameID
	}
	return f, nil
}

func (s *ResultService) observeRejection(err error) {
	var appErr *domain.AppError
	if !errors.As(err, &appErr) || appErr.Details == nil {
		return
	}
	if reason, ok := appErr.Details["reason"].(string); ok {
		infra.ObserveScoreRejection(reason)
	}
}

// changed tells live leaderboard subscribers that totals moved.
func (s *ResultService) changed(r *domain.Result) {
	s.notify.Publish(LeaderboardRoom, EventLeaderboardChanged, map[string]string{
		"result_id": r.ID,
		"user_id":   r.UserID.String(),
	})
}

func annotate(span trace.Span, r *domain.Result) {
	span.SetAttributes(
		attribute.String("result_id", r.ID),
		attribute.String("user_id", r.UserID.String()),
		attribute.Int("points_scored", r.PointsScored),
		attribute.Bool("verified", r.VerifiedByAdmin),
	)
}

