// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/stewardhq/steward/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Auth          AuthConfig
	RateLimit     RateLimitConfig
	Files         FilesConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL        string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
}

// AuthConfig holds authentication and session configuration. The online
// capacity ceiling is not configured here; it tracks the registered-user
// count at login time.
type AuthConfig struct {
	JWTSecret      string
	TokenTTL       time.Duration
	CaptchaDefault bool
}

// RateLimitConfig holds login rate limiter configuration
type RateLimitConfig struct {
	LoginLimit  int
	LoginWindow time.Duration
}

// FilesConfig holds file storage configuration
type FilesConfig struct {
	Type           string // "filesystem" or "s3"
	FilesystemRoot string
	S3Endpoint     string
	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool
}

// ObservabilityConfig holds logging and metrics settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("STEWARD_HOST", "0.0.0.0"),
			Port:            getEnv("STEWARD_PORT", "8080"),
			ReadTimeout:     getEnvDuration("STEWARD_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("STEWARD_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("STEWARD_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("STEWARD_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("STEWARD_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			URL:          getEnv("STEWARD_POSTGRES_URL", ""),
			MaxOpenConns: getEnvInt("STEWARD_POSTGRES_MAX_CONNS", 25),
			MaxIdleConns: getEnvInt("STEWARD_POSTGRES_IDLE_CONNS", 5),
			ConnLifetime: getEnvDuration("STEWARD_POSTGRES_CONN_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:        getEnv("STEWARD_REDIS_URL", "redis://localhost:6379"),
			Password:   getEnv("STEWARD_REDIS_PASSWORD", ""),
			DB:         getEnvInt("STEWARD_REDIS_DB", 0),
			MaxRetries: getEnvInt("STEWARD_REDIS_MAX_RETRIES", 3),
			PoolSize:   getEnvInt("STEWARD_REDIS_POOL_SIZE", 10),
		},
		Auth: AuthConfig{
			JWTSecret:      getEnv("STEWARD_JWT_SECRET", ""),
			TokenTTL:       getEnvDuration("STEWARD_TOKEN_TTL", 24*time.Hour),
			CaptchaDefault: getEnvBool("STEWARD_CAPTCHA_DEFAULT", true),
		},
		RateLimit: RateLimitConfig{
			LoginLimit:  getEnvInt("STEWARD_LOGIN_RATE_LIMIT", 5),
			LoginWindow: getEnvDuration("STEWARD_LOGIN_RATE_WINDOW", time.Minute),
		},
		Files: FilesConfig{
			Type:           getEnv("STEWARD_FILES_TYPE", "filesystem"),
			FilesystemRoot: getEnv("STEWARD_FILES_ROOT", "/var/lib/steward/files"),
			S3Endpoint:     getEnv("STEWARD_S3_ENDPOINT", ""),
			S3Region:       getEnv("STEWARD_S3_REGION", "us-east-1"),
			S3Bucket:       getEnv("STEWARD_S3_BUCKET", ""),
			S3AccessKey:    getEnv("STEWARD_S3_ACCESS_KEY", ""),
			S3SecretKey:    getEnv("STEWARD_S3_SECRET_KEY", ""),
			S3UsePathStyle: getEnvBool("STEWARD_S3_USE_PATH_STYLE", true),
		},
		Observability: ObservabilityConfig{
			LogLevel:       parseLogLevel(getEnv("STEWARD_LOG_LEVEL", "info")),
			MetricsEnabled: getEnvBool("STEWARD_METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Redis.URL == "" {
		return fmt.Errorf("redis URL is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	if c.RateLimit.LoginLimit <= 0 || c.RateLimit.LoginWindow <= 0 {
		return fmt.Errorf("login rate limit and window must be positive")
	}

	switch c.Files.Type {
	case "filesystem":
		if c.Files.FilesystemRoot == "" {
			return fmt.Errorf("filesystem root is required for filesystem storage")
		}
	case "s3":
		if c.Files.S3Endpoint == "" || c.Files.S3Bucket == "" {
			return fmt.Errorf("S3 endpoint and bucket are required for s3 storage")
		}
	default:
		return fmt.Errorf("invalid files storage type: %s (must be filesystem or s3)", c.Files.Type)
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
