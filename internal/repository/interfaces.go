package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/scorekeep/arena/internal/domain"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// TxBeginner is a DBTX that can open transactions. *pgxpool.Pool satisfies it.
type TxBeginner interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Lookups return (nil, nil) when the row does not exist.

// UserRepository provides access to users.
type UserRepository interface {
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.User, error)
	FindByEmail(ctx context.Context, db DBTX, email string) (*domain.User, error)
	FindByQRID(ctx context.Context, db DBTX, qrID string) (*domain.User, error)

	// List returns every user ordered by created_at ASC, id ASC. This order is
	// the leaderboard tiebreak.
	List(ctx context.Context, db DBTX) ([]domain.User, error)

	// Create inserts a new user. Duplicate email or qr_id yields a CONFLICT AppError.
	Create(ctx context.Context, db DBTX, user *domain.User) error

	UpdateRole(ctx context.Context, db DBTX, id uuid.UUID, role domain.Role) (*domain.User, error)
	UpdateStatus(ctx context.Context, db DBTX, id uuid.UUID, active bool) (*domain.User, error)
	SetQRImageKey(ctx context.Context, db DBTX, id uuid.UUID, key string) error
	TouchLastLogin(ctx context.Context, db DBTX, id uuid.UUID) error
}

// TeamRepository provides access to teams.
type TeamRepository interface {
	FindByID(ctx context.Context, db DBTX, id string) (*domain.Team, error)

	// ListByOwner returns an owner's teams, newest first.
	ListByOwner(ctx context.Context, db DBTX, ownerID uuid.UUID, includeInactive bool) ([]domain.Team, error)
	ListAll(ctx context.Context, db DBTX, includeInactive bool) ([]domain.Team, error)

	Create(ctx context.Context, db DBTX, team *domain.Team) error
	Rename(ctx context.Context, db DBTX, id, name string) (*domain.Team, error)

	// Deactivate flips is_active to false. The row and its results stay.
	Deactivate(ctx context.Context, db DBTX, id string) (*domain.Team, error)
}

// GameRepository provides access to games.
type GameRepository interface {
	FindByID(ctx context.Context, db DBTX, id string) (*domain.Game, error)
	List(ctx context.Context, db DBTX, includeInactive bool) ([]domain.Game, error)
	Create(ctx context.Context, db DBTX, game *domain.Game) error

	// Update overwrites name, description, range and is_active.
	Update(ctx context.Context, db DBTX, game *domain.Game) (*domain.Game, error)
}

// ResultAdminUpdate is the full post-update state written by one UPDATE.
type ResultAdminUpdate struct {
	PointsScored    int
	Notes           string
	VerifiedByAdmin bool
	AdminUserID     uuid.UUID
	AdminName       string
}

// ResultRepository provides access to game_results.
type ResultRepository interface {
	FindByID(ctx context.Context, db DBTX, id string) (*domain.Result, error)

	// LockForUpdate acquires a row-level lock (SELECT FOR UPDATE) and returns the result.
	LockForUpdate(ctx context.Context, tx DBTX, id string) (*domain.Result, error)

	// Insert creates a result and returns the stored row.
	Insert(ctx context.Context, db DBTX, r *domain.Result) (*domain.Result, error)

	// ApplyAdminUpdate writes score, notes and the admin stamp in a single statement.
	ApplyAdminUpdate(ctx context.Context, db DBTX, id string, u ResultAdminUpdate) (*domain.Result, error)

	// List returns results matching filter, newest played_at first.
	List(ctx context.Context, db DBTX, filter domain.ResultFilter) ([]domain.Result, error)

	// ListChronological returns matching results oldest first, for aggregation.
	ListChronological(ctx context.Context, db DBTX, filter domain.ResultFilter) ([]domain.Result, error)
}

// OutboxRow is an outbox event together with its sequence id.
type OutboxRow struct {
	SeqID int64
	domain.OutboxDraft
}

// OutboxRepository provides access to the event_outbox table.
type OutboxRepository interface {
	// Insert writes events in the caller's transaction, alongside the mutation they describe.
	Insert(ctx context.Context, db DBTX, drafts ...domain.OutboxDraft) error

	// Claim locks up to limit unpublished events in sequence order,
	// skipping rows another relay already holds.
	Claim(ctx context.Context, db DBTX, limit int) ([]OutboxRow, error)

	MarkPublished(ctx context.Context, db DBTX, seqIDs []int64) error

	// Backlog counts events still waiting to be relayed.
	Backlog(ctx context.Context, db DBTX) (int64, error)

	// PurgePublished deletes events relayed before the cutoff.
	PurgePublished(ctx context.Context, db DBTX, before time.Time) (int64, error)
}
