package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/scorekeep/arena/internal/domain"
	"github.com/scorekeep/arena/internal/repository"
	"go.opentelemetry.io/otel"
)

// Live-update room and event names pushed over the websocket hub.
const (
	LeaderboardRoom         = "leaderboard"
	EventLeaderboardChanged = "leaderboard.changed"
)

var tracer = otel.Tracer("github.com/scorekeep/arena/internal/service")

// Notifier pushes live events to subscribers. *infra.WSHub implements it.
type Notifier interface {
	Publish(room, event string, data interface{})
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) Publish(string, string, interface{}) {}

// appError passes AppErrors through and wraps anything else as INTERNAL_ERROR.
func appError(msg string, err error) error {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return domain.ErrInternal(msg, err)
}

// withTx runs fn in a transaction, committing only if fn succeeds.
func withTx(ctx context.Context, pool repository.TxBeginner, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func requireAdmin(caller domain.Caller) error {
	if !caller.IsAdmin() {
		return domain.ErrForbidden("admin role required")
	}
	return nil
}
