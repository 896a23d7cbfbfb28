package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8081"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Empty DATABASE_URL runs the service on the in-memory repository.
	DatabaseURL    string        `env:"DATABASE_URL"`
	DBMaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`
	AutoMigrate    bool          `env:"AUTO_MIGRATE" envDefault:"true"`

	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"local"` // "s3" or "local"

	LocalStoragePath    string `env:"LOCAL_STORAGE_PATH" envDefault:"./media-data"`
	LocalStorageBaseURL string `env:"LOCAL_STORAGE_BASE_URL" envDefault:"http://localhost:8081/files"`

	S3Endpoint      string `env:"S3_ENDPOINT"`
	S3PublicBaseURL string `env:"S3_PUBLIC_BASE_URL"`
	S3Region        string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Bucket        string `env:"S3_BUCKET"`
	S3AccessKeyID   string `env:"S3_ACCESS_KEY_ID"`
	S3SecretKey     string `env:"S3_SECRET_ACCESS_KEY"`
	S3UsePathStyle  bool   `env:"S3_USE_PATH_STYLE" envDefault:"true"`
	S3KeyPrefix     string `env:"S3_KEY_PREFIX" envDefault:"media"`

	JWTSecret string        `env:"JWT_SECRET"`
	JWTIssuer string        `env:"JWT_ISSUER" envDefault:"holograma"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`

	KafkaBrokers     []string      `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	KafkaTopic       string        `env:"KAFKA_TOPIC" envDefault:"holograma.media"`
	OutboxInterval   time.Duration `env:"OUTBOX_INTERVAL" envDefault:"2s"`
	OutboxBatchSize  int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
	OutboxMaxAttempt int           `env:"OUTBOX_MAX_ATTEMPTS" envDefault:"10"`

	UploadConcurrency  int64         `env:"UPLOAD_CONCURRENCY" envDefault:"3"`
	MaxUploadBytes     int64         `env:"MAX_UPLOAD_BYTES" envDefault:"52428800"`
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`
}

// Load reads an optional .env file and parses the environment into Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.StorageBackend = strings.ToLower(strings.TrimSpace(c.StorageBackend))
	switch c.StorageBackend {
	case "s3", "local":
	default:
		return fmt.Errorf("STORAGE_BACKEND must be s3 or local, got %q", c.StorageBackend)
	}
	if c.UploadConcurrency <= 0 {
		return fmt.Errorf("UPLOAD_CONCURRENCY must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.OutboxBatchSize <= 0 {
		c.OutboxBatchSize = 100
	}
	if c.OutboxMaxAttempt <= 0 {
		c.OutboxMaxAttempt = 10
	}
	return nil
}

// RequireAuth fails when the settings the HTTP API needs to verify tokens
// are missing. The outbox publisher never checks tokens and skips it.
func (c *Config) RequireAuth() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) UsesPostgres() bool {
	return strings.TrimSpace(c.DatabaseURL) != ""
}
