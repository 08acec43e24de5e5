package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/scorekeep/arena/internal/domain"
)

const teamColumns = `team_id, team_name, owner_id, is_active, created_at, updated_at`

type teamRepo struct{}

// NewTeamRepository returns a pgx-backed TeamRepository.
func NewTeamRepository() TeamRepository {
	return &teamRepo{}
}

func (r *teamRepo) FindByID(ctx context.Context, db DBTX, id string) (*domain.Team, error) {
	row := db.QueryRow(ctx, `SELECT `+teamColumns+` FROM teams WHERE team_id = $1`, id)
	return scanTeam(row)
}

func (r *teamRepo) ListByOwner(ctx context.Context, db DBTX, ownerID uuid.UUID, includeInactive bool) ([]domain.Team, error) {
	rows, err := db.Query(ctx, `
		SELECT `+teamColumns+` FROM teams
		WHERE owner_id = $1 AND ($2 OR is_active)
		ORDER BY created_at DESC, team_id`, ownerID, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("list teams by owner: %w", err)
	}
	return collectTeams(rows)
}

func (r *teamRepo) ListAll(ctx context.Context, db DBTX, includeInactive bool) ([]domain.Team, error) {
	rows, err := db.Query(ctx, `
		SELECT `+teamColumns+` FROM teams
		WHERE $1 OR is_active
		ORDER BY created_at DESC, team_id`, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	return collectTeams(rows)
}

func (r *teamRepo) Create(ctx context.Context, db DBTX, t *domain.Team) error {
	row := db.QueryRow(ctx, `
		INSERT INTO teams (team_id, team_name, owner_id, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		t.ID, t.Name, t.OwnerID, t.IsActive,
	)
	if err := row.Scan(&t.CreatedAt, &t.UpdatedAt); err != nil {
		if IsUniqueViolation(err) {
			return domain.ErrConflict(fmt.Sprintf("team %s already exists", t.ID))
		}
		return fmt.Errorf("insert team: %w", err)
	}
	return nil
}

func (r *teamRepo) Rename(ctx context.Context, db DBTX, id, name string) (*domain.Team, error) {
	row := db.QueryRow(ctx, `
		UPDATE teams SET team_name = $2, updated_at = now()
		WHERE team_id = $1
		RETURNING `+teamColumns, id, name)
	return scanTeam(row)
}

func (r *teamRepo) Deactivate(ctx context.Context, db DBTX, id string) (*domain.Team, error) {
	row := db.QueryRow(ctx, `
		UPDATE teams SET is_active = false, updated_at = now()
		WHERE team_id = $1
		RETURNING `+teamColumns, id)
	return scanTeam(row)
}

func collectTeams(rows pgx.Rows) ([]domain.Team, error) {
	defer rows.Close()
	teams := []domain.Team{}
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, *t)
	}
	return teams, rows.Err()
}

func scanTeam(row pgx.Row) (*domain.Team, error) {
	var t domain.Team
	err := row.Scan(&t.ID, &t.Name, &t.OwnerID, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan team: %w", err)
	}
	return &t, nil
}
