package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/scorekeep/arena/internal/domain"
)

const userColumns = `id, email, name, role, qr_id, COALESCE(qr_image_key, ''), is_active,
	password_hash, last_login_at, created_at, updated_at`

type userRepo struct{}

// NewUserRepository returns a pgx-backed UserRepository.
func NewUserRepository() UserRepository {
	return &userRepo{}
}

func (r *userRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.User, error) {
	row := db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *userRepo) FindByEmail(ctx context.Context, db DBTX, email string) (*domain.User, error) {
	row := db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

func (r *userRepo) FindByQRID(ctx context.Context, db DBTX, qrID string) (*domain.User, error) {
	row := db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE qr_id = $1`, qrID)
	return scanUser(row)
}

func (r *userRepo) List(ctx context.Context, db DBTX) ([]domain.User, error) {
	rows, err := db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *userRepo) Create(ctx context.Context, db DBTX, u *domain.User) error {
	row := db.QueryRow(ctx, `
		INSERT INTO users (id, email, name, role, qr_id, is_active, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		u.ID, u.Email, u.Name, string(u.Role), u.QRID, u.IsActive, u.PasswordHash,
	)
	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		if IsUniqueViolation(err) {
			if constraintName(err) == "users_qr_id_key" {
				return domain.ErrQRIDTaken()
			}
			return domain.ErrConflict("email already registered")
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *userRepo) UpdateRole(ctx context.Context, db DBTX, id uuid.UUID, role domain.Role) (*domain.User, error) {
	row := db.QueryRow(ctx, `
		UPDATE users SET role = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns, id, string(role))
	return scanUser(row)
}

func (r *userRepo) UpdateStatus(ctx context.Context, db DBTX, id uuid.UUID, active bool) (*domain.User, error) {
	row := db.QueryRow(ctx, `
		UPDATE users SET is_active = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns, id, active)
	return scanUser(row)
}

func (r *userRepo) SetQRImageKey(ctx context.Context, db DBTX, id uuid.UUID, key string) error {
	tag, err := db.Exec(ctx, `UPDATE users SET qr_image_key = $2, updated_at = now() WHERE id = $1`, id, key)
	if err != nil {
		return fmt.Errorf("set qr image key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("user", id.String())
	}
	return nil
}

func (r *userRepo) TouchLastLogin(ctx context.Context, db DBTX, id uuid.UUID) error {
	_, err := db.Exec(ctx, `UPDATE users SET last_login_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.Name, &role, &u.QRID, &u.QRImageKey, &u.IsActive,
		&u.PasswordHash, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Role = domain.Role(role)
	return &u, nil
}
