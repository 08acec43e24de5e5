package infra

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/stretchr/testify/assert"
)

type failingPinger struct{ err error }

func (p failingPinger) Ping(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("no deadline")
	}
	return p.err
}

func TestHealthCheck(t *testing.T) {
	assert.NoError(t, HealthCheck(context.Background(), failingPinger{}))

	down := errors.New("connection refused")
	assert.ErrorIs(t, HealthCheck(context.Background(), failingPinger{err: down}), down)
}

func TestQueryLoggerDropsArgs(t *testing.T) {
	var buf bytes.Buffer
	log := queryLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	log(context.Background(), tracelog.LogLevelError, "Query", map[string]any{
		"sql":  "UPDATE users SET password_hash = $1",
		"args": []any{"$2a$10$secret"},
		"err":  "deadlock detected",
	})

	out := buf.String()
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "postgres: Query")
	assert.Contains(t, out, "deadlock detected")
	assert.NotContains(t, out, "secret")
}
