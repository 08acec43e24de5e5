package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/scorekeep/arena/internal/domain"
	"github.com/scorekeep/arena/internal/repository"
)

// CreateParams describes a new result. For self-service creates UserID is the
// caller; admins may record a result for any user and verify it at once.
type CreateParams struct {
	Caller          domain.Caller
	UserID          uuid.UUID
	TeamID          string
	GameID          string
	PointsScored    int
	Notes           string
	VerifiedByAdmin bool
}

// ExecuteCreate validates and inserts a result.
// Pattern: Resolve -> Validate -> PostResult
func (e *Engine) ExecuteCreate(ctx context.Context, tx repository.DBTX, p CreateParams) (*CommandResult, error) {
	if p.UserID == uuid.Nil {
		p.UserID = p.Caller.ID
	}
	if p.UserID != p.Caller.ID && !p.Caller.IsAdmin() {
		return nil, domain.ErrForbidden("only admins may record results for other users")
	}
	if err := domain.ValidateNotes(p.Notes); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	owner, err := e.users.FindByID(ctx, tx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("create result: find user: %w", err)
	}
	if owner == nil {
		return nil, domain.ErrValidation(fmt.Sprintf("user %s does not exist", p.UserID))
	}
	if !owner.IsActive {
		return nil, domain.ErrValidation(fmt.Sprintf("user %s is inactive", p.UserID))
	}

	teamID, gameID := strPtr(p.TeamID), strPtr(p.GameID)
	if _, err := e.resolveTeam(ctx, tx, teamID, owner.ID); err != nil {
		return nil, err
	}
	game, err := e.resolveGame(ctx, tx, gameID)
	if err != nil {
		return nil, err
	}
	if game != nil && !game.IsActive {
		return nil, domain.ErrValidation(fmt.Sprintf("game %s is inactive", game.ID))
	}

	if err := e.ValidatePoints(p.PointsScored, game); err != nil {
		return nil, err
	}

	r := &domain.Result{
		ID:           domain.NewResultID(),
		UserID:       owner.ID,
		TeamID:       teamID,
		GameID:       gameID,
		PointsScored: p.PointsScored,
		Notes:        p.Notes,
	}
	if p.Caller.IsAdmin() {
		adminID := p.Caller.ID
		r.AdminUserID = &adminID
		r.AdminName = p.Caller.Name
		r.VerifiedByAdmin = p.VerifiedByAdmin
	}

	stored, events, err := e.PostResult(ctx, tx, r)
	if err != nil {
		return nil, fmt.Errorf("create result: %w", err)
	}
	return &CommandResult{Result: stored, Events: events}, nil
}
