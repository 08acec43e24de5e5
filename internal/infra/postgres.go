package infra

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
)

const readyTimeout = 3 * time.Second

// NewPostgresPool opens the arena database pool and verifies it answers.
// Failed statements are logged through logger.
func NewPostgresPool(ctx context.Context, cfg *Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	poolCfg.MaxConns = cfg.PGMaxConns
	poolCfg.MinConns = min(cfg.PGMinConns, cfg.PGMaxConns)
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second
	poolCfg.ConnConfig.Tracer = &tracelog.TraceLog{
		Logger:   queryLogger(logger),
		LogLevel: tracelog.LogLevelWarn,
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping %s:%d: %w", poolCfg.ConnConfig.Host, poolCfg.ConnConfig.Port, err)
	}

	logger.Info("postgres pool ready",
		"host", poolCfg.ConnConfig.Host, "database", poolCfg.ConnConfig.Database,
		"max_conns", poolCfg.MaxConns)
	return pool, nil
}

// queryLogger forwards pgx trace output to slog. SQL arguments are dropped
// because they may carry password hashes.
func queryLogger(logger *slog.Logger) tracelog.LoggerFunc {
	return func(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
		attrs := make([]any, 0, 2*len(data))
		for k, v := range data {
			if k == "args" {
				continue
			}
			attrs = append(attrs, k, v)
		}
		lvl := slog.LevelWarn
		if level == tracelog.LogLevelError {
			lvl = slog.LevelError
		}
		logger.Log(ctx, lvl, "postgres: "+msg, attrs...)
	}
}

// Pinger is a dependency /ready can probe: the pgx pool or a RedisPinger.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck pings p, giving up after readyTimeout.
func HealthCheck(ctx context.Context, p Pinger) error {
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	return p.Ping(ctx)
}
