//go:build integration

package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/scorekeep/arena/internal/app"
	"github.com/scorekeep/arena/internal/auth"
	"github.com/scorekeep/arena/internal/infra"
	"github.com/scorekeep/arena/internal/policy"
	"github.com/scorekeep/arena/internal/projection"
)

// TestJWTSecret signs every token issued by the test router.
const TestJWTSecret = "integration-test-secret-0123456789abcdef"

// Defaults for the docker-compose test database. ARENA_TEST_DATABASE_URL
// overrides them.
const (
	testDBHost = "localhost"
	testDBPort = 5435
	testDBUser = "arena"
	testDBName = "arena_test"
)

// TestEnv holds all resources for an integration test.
type TestEnv struct {
	Server *httptest.Server
	Pool   *pgxpool.Pool
	JWTMgr *auth.JWTManager
	t      *testing.T
}

// Options tweak the router under test.
type Options struct {
	ScoreCeiling *int
}

var (
	sharedPool *pgxpool.Pool
	poolOnce   sync.Once
	poolErr    error
)

func testConfig() *infra.Config {
	return &infra.Config{
		DatabaseURL: os.Getenv("ARENA_TEST_DATABASE_URL"),
		PGHost:      testDBHost,
		PGPort:      testDBPort,
		PGUser:      testDBUser,
		PGPassword:  testDBUser,
		PGDatabase:  testDBName,
		PGMaxConns:  10,
		PGMinConns:  1,
	}
}

// ensureTestDB creates arena_test through the server's default database.
func ensureTestDB(ctx context.Context, cfg *infra.Config) error {
	if cfg.DatabaseURL != "" {
		return nil
	}
	admin := *cfg
	admin.PGDatabase = testDBUser
	conn, err := pgxpool.New(ctx, admin.DSN())
	if err != nil {
		return fmt.Errorf("connect bootstrap db: %w", err)
	}
	defer conn.Close()

	var exists bool
	if err := conn.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", cfg.PGDatabase).Scan(&exists); err != nil {
		return fmt.Errorf("check test db: %w", err)
	}
	if exists {
		return nil
	}
	if _, err := conn.Exec(ctx, "CREATE DATABASE "+cfg.PGDatabase); err != nil {
		return fmt.Errorf("create test db: %w", err)
	}
	return nil
}

func getSharedPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	poolOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		cfg := testConfig()
		quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
		if poolErr = ensureTestDB(ctx, cfg); poolErr != nil {
			return
		}
		if poolErr = infra.RunMigrations(cfg.DSN(), "", quiet); poolErr != nil {
			return
		}
		sharedPool, poolErr = infra.NewPostgresPool(ctx, cfg, quiet)
	})

	if poolErr != nil {
		t.Fatalf("integration database unavailable: %v", poolErr)
	}
	return sharedPool
}

// NewTestEnv creates a test environment with an httptest.Server backed by
// the real router and test DB.
func NewTestEnv(t *testing.T) *TestEnv {
	return NewTestEnvWith(t, Options{})
}

// NewTestEnvWith is NewTestEnv with router options.
func NewTestEnvWith(t *testing.T, opts Options) *TestEnv {
	t.Helper()

	pool := getSharedPool(t)
	jwtMgr := auth.NewJWTManager(TestJWTSecret, time.Hour, 24*time.Hour)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	router := app.NewRouter(app.RouterDeps{
		DB:              pool,
		Repos:           app.PostgresRepositories(),
		JWTMgr:          jwtMgr,
		Logger:          logger,
		ScorePolicy:     policy.NewScorePolicy(opts.ScoreCeiling),
		Cache:           projection.NewInMemoryStore(),
		CORSOrigins:     "*",
		LoginRateLimit:  1000,
		VerifyRateLimit: 1000,
		ReadyChecks:     map[string]infra.Pinger{"postgres": pool},
	})

	env := &TestEnv{
		Server: httptest.NewServer(router),
		Pool:   pool,
		JWTMgr: jwtMgr,
		t:      t,
	}
	t.Cleanup(func() {
		env.Server.Close()
		env.CleanAll()
	})

	env.CleanAll()
	return env
}
