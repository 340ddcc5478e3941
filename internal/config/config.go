package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds the environment driven configuration for the file service.
type Config struct {
	// Service Configuration
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"file-api"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	HTTPPort        int           `env:"FILE_API_PORT" envDefault:"8380"`
	LogLevel        string        `env:"FILE_LOG_LEVEL" envDefault:"info"`
	EnableTracing   bool          `env:"ENABLE_TRACING" envDefault:"false"`
	OTLPEndpoint    string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTLPHeaders     string        `env:"OTEL_EXPORTER_OTLP_HEADERS" envDefault:""`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Database (required, no default)
	DBPostgresqlWriteDSN string `env:"DB_POSTGRESQL_WRITE_DSN,notEmpty"`

	// Database Connection Pool
	DBMaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBMaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"15"`
	DBConnLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`

	// Cache
	RedisURL      string        `env:"REDIS_URL" envDefault:""`
	ListCacheTTL  time.Duration `env:"CACHE_LIST_TTL" envDefault:"5m"`
	StatsCacheTTL time.Duration `env:"CACHE_STATS_TTL" envDefault:"1m"`

	// Storage Backend Selection
	StorageBackend string `env:"FILE_STORAGE_BACKEND" envDefault:"local"` // Options: "s3" or "local"

	// Local Storage Configuration
	LocalStoragePath string `env:"FILE_LOCAL_STORAGE_PATH" envDefault:"./file-data"`

	// S3 Storage Configuration
	S3Endpoint     string `env:"FILE_S3_ENDPOINT"`
	S3Region       string `env:"FILE_S3_REGION" envDefault:"us-west-2"`
	S3Bucket       string `env:"FILE_S3_BUCKET"`
	S3AccessKeyID  string `env:"FILE_S3_ACCESS_KEY_ID"`
	S3SecretKey    string `env:"FILE_S3_SECRET_ACCESS_KEY"`
	S3UsePathStyle bool   `env:"FILE_S3_USE_PATH_STYLE" envDefault:"true"`

	// Upload Configuration
	MaxFileBytes int64 `env:"FILE_MAX_BYTES" envDefault:"104857600"`

	// Listing / statistics
	DefaultPageSize    int `env:"FILE_DEFAULT_PAGE_SIZE" envDefault:"20"`
	MaxPageSize        int `env:"FILE_MAX_PAGE_SIZE" envDefault:"100"`
	StatsTopDuplicated int `env:"STATS_TOP_DUPLICATED" envDefault:"10"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	cfg.S3Bucket = strings.TrimSpace(cfg.S3Bucket)
	cfg.S3AccessKeyID = strings.TrimSpace(cfg.S3AccessKeyID)
	cfg.S3SecretKey = strings.TrimSpace(cfg.S3SecretKey)
	cfg.S3Endpoint = strings.TrimSpace(cfg.S3Endpoint)
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = 100 * 1024 * 1024
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 20
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		cfg.MaxPageSize = cfg.DefaultPageSize
	}
	if cfg.StatsTopDuplicated <= 0 {
		cfg.StatsTopDuplicated = 10
	}
	if cfg.IsS3Storage() && cfg.S3Bucket == "" {
		return nil, fmt.Errorf("FILE_S3_BUCKET is required when FILE_STORAGE_BACKEND is s3")
	}
	return cfg, nil
}

// GetDatabaseWriteDSN returns the write database connection string.
func (c *Config) GetDatabaseWriteDSN() string {
	return c.DBPostgresqlWriteDSN
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// IsLocalStorage returns true if local storage backend is configured.
func (c *Config) IsLocalStorage() bool {
	backend := strings.ToLower(strings.TrimSpace(c.StorageBackend))
	return backend == "" || backend == "local"
}

// IsS3Storage returns true if S3 storage backend is configured.
func (c *Config) IsS3Storage() bool {
	return strings.ToLower(strings.TrimSpace(c.StorageBackend)) == "s3"
}
