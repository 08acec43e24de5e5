package guard

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/scorekeep/arena/internal/domain"
	"github.com/scorekeep/arena/internal/repository"
)

// Login lockout defaults: five failures inside fifteen minutes lock the email.
const (
	MaxLoginFailures = 5
	LockoutWindow    = 15 * time.Minute
)

// Lockout throttles password guessing per email using the login_attempts table,
// so the count is shared by every API instance. A successful login resets it.
type Lockout struct {
	maxFailures int
	window      time.Duration
	now         func() time.Time
}

// NewLockout returns a Lockout. maxFailures <= 0 disables locking.
func NewLockout(maxFailures int, window time.Duration) *Lockout {
	return &Lockout{maxFailures: maxFailures, window: window, now: time.Now}
}

// Check returns ErrAccountLocked once email has maxFailures failed attempts
// since the later of the window start and its last successful login.
// A failing count query lets the attempt through and returns the cause
// alongside an allowed result so callers can log it.
func (l *Lockout) Check(ctx context.Context, db repository.DBTX, email string) (domain.GuardResult, error) {
	if l.maxFailures <= 0 {
		return domain.GuardResult{Allowed: true}, nil
	}

	since := l.now().Add(-l.window)
	var failures int
	err := db.QueryRow(ctx, `
		SELECT count(*) FROM login_attempts
		WHERE email = $1 AND NOT success
		  AND created_at > GREATEST($2::timestamptz,
		        COALESCE((SELECT max(created_at) FROM login_attempts WHERE email = $1 AND success), $2::timestamptz))`,
		email, since).Scan(&failures)
	if err != nil {
		return domain.GuardResult{Allowed: true}, fmt.Errorf("count login failures: %w", err)
	}

	if failures >= l.maxFailures {
		minutes := int(math.Ceil(l.window.Minutes()))
		return domain.GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("too many failed login attempts, try again in %d minutes", minutes),
			Guard:   "lockout",
		}, nil
	}
	return domain.GuardResult{Allowed: true}, nil
}

// Record stores one login attempt.
func (l *Lockout) Record(ctx context.Context, db repository.DBTX, email, ip string, success bool) error {
	_, err := db.Exec(ctx, `
		INSERT INTO login_attempts (email, ip_address, success, created_at)
		VALUES ($1, $2, $3, $4)`,
		email, ip, success, l.now())
	if err != nil {
		return fmt.Errorf("record login attempt: %w", err)
	}
	return nil
}
