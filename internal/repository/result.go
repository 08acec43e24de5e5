package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/scorekeep/arena/internal/domain"
)

const resultColumns = `result_id, user_id, team_id, game_id, points_scored, played_at, notes,
	verified_by_admin, admin_user_id, admin_name, updated_at`

type resultRepo struct{}

// NewResultRepository returns a pgx-backed ResultRepository.
func NewResultRepository() ResultRepository {
	return &resultRepo{}
}

func (r *resultRepo) FindByID(ctx context.Context, db DBTX, id string) (*domain.Result, error) {
	row := db.QueryRow(ctx, `SELECT `+resultColumns+` FROM game_results WHERE result_id = $1`, id)
	return scanResult(row)
}

func (r *resultRepo) LockForUpdate(ctx context.Context, tx DBTX, id string) (*domain.Result, error) {
	row := tx.QueryRow(ctx, `SELECT `+resultColumns+` FROM game_results WHERE result_id = $1 FOR UPDATE`, id)
	return scanResult(row)
}

func (r *resultRepo) Insert(ctx context.Context, db DBTX, res *domain.Result) (*domain.Result, error) {
	row := db.QueryRow(ctx, `
		INSERT INTO game_results
		  (result_id, user_id, team_id, game_id, points_scored, notes, verified_by_admin, admin_user_id, admin_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+resultColumns,
		res.ID, res.UserID, res.TeamID, res.GameID, res.PointsScored, res.Notes,
		res.VerifiedByAdmin, res.AdminUserID, res.AdminName,
	)
	stored, err := scanResult(row)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, domain.ErrConflict(fmt.Sprintf("result %s already exists", res.ID))
		}
		return nil, fmt.Errorf("insert result: %w", err)
	}
	return stored, nil
}

func (r *resultRepo) ApplyAdminUpdate(ctx context.Context, db DBTX, id string, u ResultAdminUpdate) (*domain.Result, error) {
	row := db.QueryRow(ctx, `
		UPDATE game_results
		SET points_scored = $2, notes = $3, verified_by_admin = $4,
		    admin_user_id = $5, admin_name = $6, updated_at = now()
		WHERE result_id = $1
		RETURNING `+resultColumns,
		id, u.PointsScored, u.Notes, u.VerifiedByAdmin, u.AdminUserID, u.AdminName)
	return scanResult(row)
}

func (r *resultRepo) List(ctx context.Context, db DBTX, filter domain.ResultFilter) ([]domain.Result, error) {
	return r.list(ctx, db, filter, "played_at DESC, result_id DESC")
}

func (r *resultRepo) ListChronological(ctx context.Context, db DBTX, filter domain.ResultFilter) ([]domain.Result, error) {
	return r.list(ctx, db, filter, "played_at ASC, result_id ASC")
}

func (r *resultRepo) list(ctx context.Context, db DBTX, filter domain.ResultFilter, order string) ([]domain.Result, error) {
	where := []string{"TRUE"}
	args := []interface{}{}
	argIdx := 1

	if filter.UserID != nil {
		where = append(where, fmt.Sprintf("user_id = $%d", argIdx))
		args = append(args, *filter.UserID)
		argIdx++
	}
	if filter.TeamID != nil {
		where = append(where, fmt.Sprintf("team_id = $%d", argIdx))
		args = append(args, *filter.TeamID)
		argIdx++
	}
	if filter.GameID != nil {
		where = append(where, fmt.Sprintf("game_id = $%d", argIdx))
		args = append(args, *filter.GameID)
		argIdx++
	}

	query := fmt.Sprintf(`SELECT %s FROM game_results WHERE %s ORDER BY %s`,
		resultColumns, strings.Join(where, " AND "), order)
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	results := []domain.Result{}
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *res)
	}
	return results, rows.Err()
}

func scanResult(row pgx.Row) (*domain.Result, error) {
	var res domain.Result
	err := row.Scan(&res.ID, &res.UserID, &res.TeamID, &res.GameID, &res.PointsScored, &res.PlayedAt,
		&res.Notes, &res.VerifiedByAdmin, &res.AdminUserID, &res.AdminName, &res.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan result: %w", err)
	}
	return &res, nil
}
