package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/scorekeep/arena/internal/app"
	"github.com/scorekeep/arena/internal/auth"
	"github.com/scorekeep/arena/internal/handler"
	"github.com/scorekeep/arena/internal/infra"
	"github.com/scorekeep/arena/internal/policy"
	"github.com/scorekeep/arena/internal/projection"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	trusted, err := handler.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := infra.RunMigrations(cfg.DSN(), cfg.MigrationsDir, logger); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	pool, err := infra.NewPostgresPool(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to postgres")

	readyChecks := map[string]infra.Pinger{"postgres": pool}

	// QR identity cache: Redis when configured, in-process otherwise.
	var cache projection.Store = projection.NewInMemoryStore()
	if cfg.RedisURL != "" {
		rdb, err := infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		cache = projection.NewRedisStore(rdb, "arena:")
		readyChecks["redis"] = infra.RedisPinger{Client: rdb}
		logger.Info("connected to redis")
	}

	deps := app.RouterDeps{
		DB:              pool,
		Repos:           app.PostgresRepositories(),
		JWTMgr:          auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessExpiry, cfg.JWTRefreshExpiry),
		Logger:          logger,
		ScorePolicy:     policy.NewScorePolicy(cfg.ScoreCeiling),
		Cache:           cache,
		CORSOrigins:     cfg.CORSAllowedOrigins,
		LoginRateLimit:  cfg.LoginRateLimit,
		VerifyRateLimit: cfg.VerifyRateLimit,
		TrustedProxies:  trusted,
		ReadyChecks:     readyChecks,
	}

	if cfg.ObjectStoreEnabled() {
		store, err := infra.NewObjectStore(ctx, cfg)
		if err != nil {
			return fmt.Errorf("object store: %w", err)
		}
		deps.Blobs = store
		logger.Info("qr uploads enabled", "bucket", cfg.S3Bucket)
	}

	shutdownTracing, err := infra.InitTracing(ctx, cfg, "arena-api", logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(tctx); err != nil {
			logger.Warn("tracing shutdown", "error", err)
		}
	}()

	hub := infra.NewWSHub(logger, originChecker(cfg.CORSAllowedOrigins))
	deps.Hub = hub

	router := app.NewRouter(deps)

	addr := fmt.Sprintf(":%d", cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      otelhttp.NewHandler(router, "arena-api"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", addr, "score_ceiling", cfg.ScoreCeiling)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hub.Shutdown(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}

// originChecker admits websocket upgrades from the configured CORS origins.
// A wildcard, or a request without an Origin header, is always allowed.
func originChecker(origins string) func(*http.Request) bool {
	allowed := make(map[string]bool)
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = true
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed["*"] || allowed[origin]
	}
}
