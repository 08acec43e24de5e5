package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL   string `env:"DATABASE_URL"`
	PGHost        string `env:"PGHOST" envDefault:"localhost"`
	PGPort        int    `env:"PGPORT" envDefault:"5432"`
	PGUser        string `env:"PGUSER" envDefault:"arena"`
	PGPassword    string `env:"PGPASSWORD" envDefault:"arena"`
	PGDatabase    string `env:"PGDATABASE" envDefault:"arena"`
	PGMaxConns    int32  `env:"PG_MAX_CONNS" envDefault:"20"`
	PGMinConns    int32  `env:"PG_MIN_CONNS" envDefault:"2"`
	MigrationsDir string `env:"MIGRATIONS_DIR"`

	// Redis (QR identity cache). Empty disables Redis and uses an in-process cache.
	RedisURL string `env:"REDIS_URL"`

	// JWT
	JWTSecret        string        `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	JWTAccessExpiry  time.Duration `env:"JWT_ACCESS_EXPIRY" envDefault:"1h"`
	JWTRefreshExpiry time.Duration `env:"JWT_REFRESH_EXPIRY" envDefault:"168h"`

	// Scoring. Unset means no global ceiling.
	ScoreCeiling *int `env:"SCORE_CEILING"`

	// Server
	APIPort int `env:"API_PORT" envDefault:"8000"`

	// Kafka
	KafkaBrokers     string        `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled     bool          `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaTopicPrefix string        `env:"KAFKA_TOPIC_PREFIX" envDefault:"arena"`
	OutboxInterval   time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
	OutboxBatchSize  int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
	// Relayed events older than this are purged. Zero keeps them forever.
	OutboxRetention  time.Duration `env:"OUTBOX_RETENTION" envDefault:"168h"`
	// Port for the relay's /metrics and /health. Zero disables it.
	RelayMetricsPort int           `env:"RELAY_METRICS_PORT" envDefault:"9102"`

	// Object storage for QR images (S3 or any S3-compatible endpoint). Empty bucket disables uploads.
	S3Endpoint      string `env:"S3_ENDPOINT"`
	S3Region        string `env:"S3_REGION" envDefault:"auto"`
	S3AccessKeyID   string `env:"S3_ACCESS_KEY_ID"`
	S3SecretKey     string `env:"S3_SECRET_ACCESS_KEY"`
	S3Bucket        string `env:"S3_BUCKET"`
	S3PublicBaseURL string `env:"S3_PUBLIC_BASE_URL"`

	// Tracing. Empty endpoint disables the OTLP exporter.
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Environment  string `env:"ENVIRONMENT" envDefault:"development"`

	// CORS
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Rate limits
	LoginRateLimit  int `env:"LOGIN_RATE_LIMIT" envDefault:"10"`
	VerifyRateLimit int `env:"VERIFY_RATE_LIMIT" envDefault:"60"`
	// Proxies (CIDR or address) whose X-Forwarded-For is believed. Empty trusts none.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`
}

// LoadConfig loads an optional .env file, then parses environment variables
// into a Config struct. Variables already set in the environment win.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks for insecure configuration that must not run in production.
// Set ALLOW_INSECURE_DEFAULTS=true to bypass (local dev only).
func (c *Config) Validate() error {
	if c.ScoreCeiling != nil && *c.ScoreCeiling < 0 {
		return fmt.Errorf("SCORE_CEILING must be non-negative, got %d", *c.ScoreCeiling)
	}
	if c.AllowInsecureDefaults {
		return nil
	}
	if c.JWTSecret == "change-me-in-production" {
		return fmt.Errorf("JWT_SECRET is set to the insecure default; set a strong secret or set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET is too short (%d chars); minimum 32 characters required", len(c.JWTSecret))
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}

// ObjectStoreEnabled reports whether QR images should be uploaded.
func (c *Config) ObjectStoreEnabled() bool { return c.S3Bucket != "" }
