package guard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// attemptsDB answers the failure count query with a fixed number and records inserts.
type attemptsDB struct {
	failures int
	err      error
	args     [][]any
}

type countRow struct {
	n   int
	err error
}

func (r countRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int) = r.n
	return nil
}

func (d *attemptsDB) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	d.args = append(d.args, args)
	return pgconn.NewCommandTag("INSERT 0 1"), d.err
}

func (d *attemptsDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not supported")
}

func (d *attemptsDB) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	d.args = append(d.args, args)
	return countRow{n: d.failures, err: d.err}
}

func TestLockout_Check(t *testing.T) {
	ctx := context.Background()
	l := NewLockout(MaxLoginFailures, LockoutWindow)

	res, err := l.Check(ctx, &attemptsDB{failures: MaxLoginFailures - 1}, "ada@example.com")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = l.Check(ctx, &attemptsDB{failures: MaxLoginFailures}, "ada@example.com")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, "lockout", res.Guard)
	assert.Contains(t, res.Reason, "15 minutes")
}

func TestLockout_WindowStart(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewLockout(3, 10*time.Minute)
	l.now = func() time.Time { return now }
	db := &attemptsDB{}

	_, err := l.Check(context.Background(), db, "ada@example.com")
	require.NoError(t, err)
	require.Len(t, db.args, 1)
	assert.Equal(t, "ada@example.com", db.args[0][0])
	assert.Equal(t, now.Add(-10*time.Minute), db.args[0][1])
}

func TestLockout_FailsOpen(t *testing.T) {
	l := NewLockout(MaxLoginFailures, LockoutWindow)

	res, err := l.Check(context.Background(), &attemptsDB{err: errors.New("db down")}, "ada@example.com")
	assert.Error(t, err)
	assert.True(t, res.Allowed)
}

func TestLockout_Disabled(t *testing.T) {
	db := &attemptsDB{failures: 100}
	res, err := NewLockout(0, LockoutWindow).Check(context.Background(), db, "ada@example.com")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Empty(t, db.args)
}

func TestLockout_Record(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewLockout(MaxLoginFailures, LockoutWindow)
	l.now = func() time.Time { return now }
	db := &attemptsDB{}

	require.NoError(t, l.Record(context.Background(), db, "ada@example.com", "10.0.0.1", false))
	require.Len(t, db.args, 1)
	assert.Equal(t, []any{"ada@example.com", "10.0.0.1", false, now}, db.args[0])

	db.err = errors.New("db down")
	assert.Error(t, l.Record(context.Background(), db, "ada@example.com", "10.0.0.1", true))
}
