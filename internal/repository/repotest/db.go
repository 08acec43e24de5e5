// Package repotest provides in-memory repositories and a no-op transactional
// DB for unit tests of code built on the repository interfaces.
package repotest

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var errNoSQL = errors.New("repotest: raw SQL is not supported")

// DB satisfies repository.TxBeginner. Raw SQL is not executed: Exec succeeds,
// Query fails and QueryRow scans return an error. Writes made through the
// in-memory repositories are visible immediately and are not rolled back.
type DB struct {
	Commits   atomic.Int64
	Rollbacks atomic.Int64
}

// NewDB returns a fresh DB.
func NewDB() *DB { return &DB{} }

func (d *DB) Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (d *DB) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, errNoSQL
}

func (d *DB) QueryRow(context.Context, string, ...interface{}) pgx.Row {
	return errRow{}
}

func (d *DB) Begin(context.Context) (pgx.Tx, error) {
	return &Tx{db: d}, nil
}

// Tx is the pgx.Tx returned by DB.Begin.
type Tx struct {
	db   *DB
	done bool
}

func (t *Tx) Begin(ctx context.Context) (pgx.Tx, error) { return &Tx{db: t.db}, nil }

func (t *Tx) Commit(context.Context) error {
	if !t.done {
		t.done = true
		t.db.Commits.Add(1)
	}
	return nil
}

func (t *Tx) Rollback(context.Context) error {
	if !t.done {
		t.done = true
		t.db.Rollbacks.Add(1)
	}
	return nil
}

func (t *Tx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, errNoSQL
}

func (t *Tx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }

func (t *Tx) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }

func (t *Tx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, errNoSQL
}

func (t *Tx) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	return t.db.Exec(ctx, sql, args...)
}

func (t *Tx) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return t.db.Query(ctx, sql, args...)
}

func (t *Tx) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return t.db.QueryRow(ctx, sql, args...)
}

func (t *Tx) Conn() *pgx.Conn { return nil }

type errRow struct{}

func (errRow) Scan(...interface{}) error { return errNoSQL }
