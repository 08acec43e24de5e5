package ledger

import (
	"context"
	"fmt"

	"github.com/scorekeep/arena/internal/domain"
	"github.com/scorekeep/arena/internal/repository"
)

// AdminUpdateParams carries an admin's partial update. Nil fields keep the
// stored value.
type AdminUpdateParams struct {
	Caller          domain.Caller
	ResultID        string
	PointsScored    *int
	Notes           *string
	VerifiedByAdmin *bool
}

// Empty reports whether no field was supplied.
func (p AdminUpdateParams) Empty() bool {
	return p.PointsScored == nil && p.Notes == nil && p.VerifiedByAdmin == nil
}

// ExecuteAdminUpdate re-validates and applies an admin update, stamping the
// admin in the same statement as the new score.
// Pattern: Lock -> Merge -> Validate -> Idempotency -> single UPDATE + outbox
func (e *Engine) ExecuteAdminUpdate(ctx context.Context, tx repository.DBTX, p AdminUpdateParams) (*CommandResult, error) {
	if !p.Caller.IsAdmin() {
		return nil, domain.ErrForbidden("admin role required")
	}
	if p.Empty() {
		return nil, domain.ErrValidation("at least one of points_scored, notes, verified_by_admin is required")
	}

	// Lock
	current, err := e.LockResultForUpdate(ctx, tx, p.ResultID)
	if err != nil {
		return nil, fmt.Errorf("admin update: %w", err)
	}

	// Merge
	next := repository.ResultAdminUpdate{
		PointsScored:    current.PointsScored,
		Notes:           current.Notes,
		VerifiedByAdmin: current.VerifiedByAdmin,
		AdminUserID:     p.Caller.ID,
		AdminName:       p.Caller.Name,
	}
	if p.PointsScored != nil {
		next.PointsScored = *p.PointsScored
	}
	if p.Notes != nil {
		next.Notes = *p.Notes
	}
	if p.VerifiedByAdmin != nil {
		// Verified is terminal.
		if current.VerifiedByAdmin && !*p.VerifiedByAdmin {
			return nil, domain.ErrValidation("verified results cannot return to pending")
		}
		next.VerifiedByAdmin = *p.VerifiedByAdmin
	}
	if err := domain.ValidateNotes(next.Notes); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	// Validate against the game's current range. A game that has since been
	// removed from the catalog leaves only the global rules.
	var game *domain.Game
	if current.GameID != nil {
		game, err = e.games.FindByID(ctx, tx, *current.GameID)
		if err != nil {
			return nil, fmt.Errorf("admin update: find game: %w", err)
		}
	}
	if err := e.ValidatePoints(next.PointsScored, game); err != nil {
		return nil, err
	}

	// Idempotency: the same payload from the same admin changes nothing.
	if unchanged(current, next) {
		return &CommandResult{Result: current, Idempotent: true}, nil
	}

	updated, err := e.results.ApplyAdminUpdate(ctx, tx, current.ID, next)
	if err != nil {
		return nil, fmt.Errorf("admin update: apply: %w", err)
	}
	if updated == nil {
		return nil, domain.ErrNotFound("result", p.ResultID)
	}

	events := []domain.OutboxDraft{domain.NewResultEvent(domain.EventResultUpdated, updated)}
	if updated.VerifiedByAdmin && !current.VerifiedByAdmin {
		events = append(events, domain.NewResultEvent(domain.EventResultVerified, updated))
	}
	if err := e.insertEvents(ctx, tx, events); err != nil {
		return nil, fmt.Errorf("admin update: %w", err)
	}

	return &CommandResult{Result: updated, Events: events}, nil
}

func unchanged(cur *domain.Result, next repository.ResultAdminUpdate) bool {
	return cur.PointsScored == next.PointsScored &&
		cur.Notes == next.Notes &&
		cur.VerifiedByAdmin == next.VerifiedByAdmin &&
		cur.AdminUserID != nil && *cur.AdminUserID == next.AdminUserID &&
		cur.AdminName == next.AdminName
}
