package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/scorekeep/arena/internal/domain"
)

const gameColumns = `game_id, game_name, game_description, min_points, max_points, is_active, created_at, updated_at`

type gameRepo struct{}

// NewGameRepository returns a pgx-backed GameRepository.
func NewGameRepository() GameRepository {
	return &gameRepo{}
}

func (r *gameRepo) FindByID(ctx context.Context, db DBTX, id string) (*domain.Game, error) {
	row := db.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE game_id = $1`, id)
	return scanGame(row)
}

func (r *gameRepo) List(ctx context.Context, db DBTX, includeInactive bool) ([]domain.Game, error) {
	rows, err := db.Query(ctx, `
		SELECT `+gameColumns+` FROM games
		WHERE $1 OR is_active
		ORDER BY game_name`, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	games := []domain.Game{}
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, *g)
	}
	return games, rows.Err()
}

func (r *gameRepo) Create(ctx context.Context, db DBTX, g *domain.Game) error {
	row := db.QueryRow(ctx, `
		INSERT INTO games (game_id, game_name, game_description, min_points, max_points, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		g.ID, g.Name, g.Description, g.MinPoints, g.MaxPoints, g.IsActive,
	)
	if err := row.Scan(&g.CreatedAt, &g.UpdatedAt); err != nil {
		if IsUniqueViolation(err) {
			if constraintName(err) == "games_game_name_key" {
				return domain.ErrConflict(fmt.Sprintf("game name %q already exists", g.Name))
			}
			return domain.ErrConflict(fmt.Sprintf("game %s already exists", g.ID))
		}
		return fmt.Errorf("insert game: %w", err)
	}
	return nil
}

func (r *gameRepo) Update(ctx context.Context, db DBTX, g *domain.Game) (*domain.Game, error) {
	row := db.QueryRow(ctx, `
		UPDATE games
		SET game_name = $2, game_description = $3, min_points = $4, max_points = $5,
		    is_active = $6, updated_at = now()
		WHERE game_id = $1
		RETURNING `+gameColumns,
		g.ID, g.Name, g.Description, g.MinPoints, g.MaxPoints, g.IsActive)
	updated, err := scanGame(row)
	if err != nil && IsUniqueViolation(err) {
		return nil, domain.ErrConflict(fmt.Sprintf("game name %q already exists", g.Name))
	}
	return updated, err
}

func scanGame(row pgx.Row) (*domain.Game, error) {
	var g domain.Game
	err := row.Scan(&g.ID, &g.Name, &g.Description, &g.MinPoints, &g.MaxPoints, &g.IsActive, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan game: %w", err)
	}
	return &g, nil
}
