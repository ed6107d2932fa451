// Package container provides dependency injection and lifecycle management
// for the approval service following Clean Architecture principles.
package container

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Storage configuration
	Storage StorageConfig

	// Auth configuration
	Auth AuthConfig

	// Redis configuration for the action lock
	Redis RedisConfig

	// Server configuration
	Server ServerConfig

	// Signal configuration
	Signal SignalConfig

	// Worker configuration
	Worker WorkerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file, or a "file:" URI
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration

	// BusyTimeout is how long sqlite waits on a locked database
	BusyTimeout time.Duration

	// MigrationsDir overrides the embedded migrations when set
	MigrationsDir string
}

// StorageConfig holds file storage settings.
type StorageConfig struct {
	// BaseDir is the root directory; attachments live under BaseDir/uploads
	BaseDir string

	// MaxUploadSize caps a single attachment in bytes
	MaxUploadSize int
}

// AuthConfig holds access token settings.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// RedisConfig holds Redis settings. An empty Addr selects the in-process lock.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string

	// LockTTL bounds how long one action may hold a request
	LockTTL time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host to bind to
	Host string

	// Port to listen on
	Port int

	// ReadTimeout for HTTP server
	ReadTimeout time.Duration

	// WriteTimeout for HTTP server
	WriteTimeout time.Duration

	// AllowedOrigins enables CORS for these origins
	AllowedOrigins []string

	// RateLimitRPS and RateLimitBurst bound requests per client IP
	RateLimitRPS   float64
	RateLimitBurst int
}

// SignalConfig tunes the derived signal column.
type SignalConfig struct {
	// HighValue is the total above which a request is flagged
	HighValue decimal.Decimal
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	// Attachment sweeper settings
	SweepInterval  time.Duration
	SweepRetention time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/approvals.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			BusyTimeout:     5 * time.Second,
		},
		Storage: StorageConfig{
			BaseDir:       "data/files",
			MaxUploadSize: 10 << 20,
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		Redis: RedisConfig{
			KeyPrefix: "approvals:lock:",
			LockTTL:   15 * time.Second,
		},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			RateLimitRPS:   20,
			RateLimitBurst: 40,
		},
		Signal: SignalConfig{
			HighValue: decimal.NewFromInt(200000),
		},
		Worker: WorkerConfig{
			SweepInterval:  time.Hour,
			SweepRetention: 24 * time.Hour,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}
	if c.Storage.MaxUploadSize <= 0 {
		return fmt.Errorf("storage.max_upload_size must be positive")
	}

	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("auth.jwt_secret must be at least 16 characters")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}

	return nil
}
