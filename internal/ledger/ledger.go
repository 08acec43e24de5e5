package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/scorekeep/arena/internal/domain"
	"github.com/scorekeep/arena/internal/policy"
	"github.com/scorekeep/arena/internal/repository"
)

// Engine owns every write to the result ledger. Each command runs inside the
// caller's transaction and follows the same shape:
//
//	Lock/Resolve -> Validate -> single-row write + outbox event
//
// Results are never deleted; the only mutation after insert is the admin update.
type Engine struct {
	users   repository.UserRepository
	teams   repository.TeamRepository
	games   repository.GameRepository
	results repository.ResultRepository
	outbox  repository.OutboxRepository
	policy  policy.ScorePolicy
}

// NewEngine creates a ledger engine with the given repositories.
func NewEngine(
	users repository.UserRepository,
	teams repository.TeamRepository,
	games repository.GameRepository,
	results repository.ResultRepository,
	outbox repository.OutboxRepository,
	scorePolicy policy.ScorePolicy,
) *Engine {
	return &Engine{
		users:   users,
		teams:   teams,
		games:   games,
		results: results,
		outbox:  outbox,
		policy:  scorePolicy,
	}
}

// CommandResult is returned by every ledger command.
type CommandResult struct {
	Result     *domain.Result       `json:"result"`
	Events     []domain.OutboxDraft `json:"-"`
	Idempotent bool                 `json:"idempotent,omitempty"`
}

// Policy returns the score policy the engine validates against.
func (e *Engine) Policy() policy.ScorePolicy { return e.policy }

// LockResultForUpdate acquires a row-level lock and returns the result.
// Must be called within a transaction.
func (e *Engine) LockResultForUpdate(ctx context.Context, tx repository.DBTX, resultID string) (*domain.Result, error) {
	res, err := e.results.LockForUpdate(ctx, tx, resultID)
	if err != nil {
		return nil, fmt.Errorf("lock result: %w", err)
	}
	if res == nil {
		return nil, domain.ErrNotFound("result", resultID)
	}
	return res, nil
}

// ValidatePoints runs the score rules for points against game (nil for none).
func (e *Engine) ValidatePoints(points int, game *domain.Game) error {
	return policy.ValidateScore(e.policy, points, game)
}

// PostResult inserts a new result and its outbox events.
func (e *Engine) PostResult(ctx context.Context, tx repository.DBTX, r *domain.Result) (*domain.Result, []domain.OutboxDraft, error) {
	stored, err := e.results.Insert(ctx, tx, r)
	if err != nil {
		return nil, nil, fmt.Errorf("insert result: %w", err)
	}

	events := []domain.OutboxDraft{domain.NewResultEvent(domain.EventResultCreated, stored)}
	if stored.VerifiedByAdmin {
		events = append(events, domain.NewResultEvent(domain.EventResultVerified, stored))
	}
	if err := e.insertEvents(ctx, tx, events); err != nil {
		return nil, nil, err
	}
	return stored, events, nil
}

func (e *Engine) insertEvents(ctx context.Context, tx repository.DBTX, events []domain.OutboxDraft) error {
	if err := e.outbox.Insert(ctx, tx, events...); err != nil {
		return fmt.Errorf("record result events: %w", err)
	}
	return nil
}

// resolveGame loads a referenced game. Unknown ids are a validation failure
// because the id came from the client.
func (e *Engine) resolveGame(ctx context.Context, db repository.DBTX, gameID *string) (*domain.Game, error) {
	if gameID == nil {
		return nil, nil
	}
	game, err := e.games.FindByID(ctx, db, *gameID)
	if err != nil {
		return nil, fmt.Errorf("find game: %w", err)
	}
	if game == nil {
		return nil, domain.ErrValidation(fmt.Sprintf("game %s does not exist", *gameID))
	}
	return game, nil
}

// resolveTeam loads a referenced team and checks it is active and owned by ownerID.
func (e *Engine) resolveTeam(ctx context.Context, db repository.DBTX, teamID *string, ownerID uuid.UUID) (*domain.Team, error) {
	if teamID == nil {
		return nil, nil
	}
	team, err := e.teams.FindByID(ctx, db, *teamID)
	if err != nil {
		return nil, fmt.Errorf("find team: %w", err)
	}
	if team == nil {
		return nil, domain.ErrValidation(fmt.Sprintf("team %s does not exist", *teamID))
	}
	if !team.OwnedBy(ownerID) {
		return nil, domain.ErrValidation(fmt.Sprintf("team %s is not owned by the result's user", *teamID))
	}
	if !team.IsActive {
		return nil, domain.ErrValidation(fmt.Sprintf("team %s is inactive", *teamID))
	}
	return team, nil
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
