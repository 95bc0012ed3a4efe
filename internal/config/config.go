package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Billing  BillingConfig
	Secrets  SecretsConfig
	Logger   LoggerConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port        int
	Host        string
	MetricsPort int

	// CronSecret authenticates calls to the /cron endpoints. Loaded from the
	// secret backend when SecretsConfig.Backend is set, env otherwise.
	CronSecret string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
	MinConns int32

	// PasswordSecretPath overrides Password via the secret backend when set
	PasswordSecretPath string
}

// BillingConfig holds period and aggregation tuning
type BillingConfig struct {
	// PeriodLengthDays is the default length used when creating the next
	// period without an explicit end date
	PeriodLengthDays int

	// MaxConcurrency bounds parallel per-enterprise aggregation
	MaxConcurrency int

	// TripQueriesPerSecond rate-limits reads against the trip store
	TripQueriesPerSecond int

	// DefaultActor is recorded in the audit trail when a cron invocation
	// carries no actor header
	DefaultActor string
}

// SecretsConfig selects the secret management backend
type SecretsConfig struct {
	// Backend is one of "aws", "vault", "local", or "" to read credentials
	// from the environment directly
	Backend string

	AWSRegion   string
	AWSEndpoint string

	VaultAddress string
	VaultToken   string

	LocalPath string

	CacheTTL time.Duration
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnvAsInt("SERVER_PORT", 8080),
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			MetricsPort: getEnvAsInt("METRICS_PORT", 9090),
			CronSecret:  getEnv("CRON_SECRET", ""),
		},
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvAsInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "postgres"),
			Password:           getEnv("DB_PASSWORD", ""),
			Database:           getEnv("DB_NAME", "commission_service"),
			SSLMode:            getEnv("DB_SSL_MODE", "disable"),
			MaxConns:           int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:           int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			PasswordSecretPath: getEnv("DB_PASSWORD_SECRET_PATH", ""),
		},
		Billing: BillingConfig{
			PeriodLengthDays:     getEnvAsInt("BILLING_PERIOD_LENGTH_DAYS", 15),
			MaxConcurrency:       getEnvAsInt("BILLING_MAX_CONCURRENCY", 8),
			TripQueriesPerSecond: getEnvAsInt("BILLING_TRIP_QPS", 50),
			DefaultActor:         getEnv("BILLING_DEFAULT_ACTOR", "system"),
		},
		Secrets: SecretsConfig{
			Backend:      getEnv("SECRET_BACKEND", ""),
			AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
			AWSEndpoint:  getEnv("AWS_SECRETS_ENDPOINT", ""),
			VaultAddress: getEnv("VAULT_ADDR", ""),
			VaultToken:   getEnv("VAULT_TOKEN", ""),
			LocalPath:    getEnv("SECRET_LOCAL_PATH", ".secrets"),
			CacheTTL:     getEnvAsDuration("SECRET_CACHE_TTL", 5*time.Minute),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}

	// Validate required fields. The DB password may come from the secret
	// backend instead of the environment.
	if cfg.Database.Password == "" && cfg.Database.PasswordSecretPath == "" {
		return nil, fmt.Errorf("DB_PASSWORD or DB_PASSWORD_SECRET_PATH is required")
	}
	if cfg.Database.PasswordSecretPath != "" && cfg.Secrets.Backend == "" {
		return nil, fmt.Errorf("SECRET_BACKEND is required when DB_PASSWORD_SECRET_PATH is set")
	}
	if cfg.Billing.PeriodLengthDays <= 0 {
		return nil, fmt.Errorf("BILLING_PERIOD_LENGTH_DAYS must be positive")
	}

	return cfg, nil
}

// ConnectionString returns PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
