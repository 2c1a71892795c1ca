package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	S3        S3Config
	Pipeline  PipelineConfig
	Embedding EmbeddingConfig
	Notify    NotifyConfig
	Sentry    SentryConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// JWTConfig holds the service-to-service bearer token configuration used by
// the admin kick endpoints and the review endpoints. This is not a user
// session system: there is one signing secret and one token type.
type JWTConfig struct {
	ServiceSecret string
	TokenExpiry   time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// S3Config holds S3 storage configuration
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// PipelineConfig holds the tuning constants for the polling workers.
type PipelineConfig struct {
	TransformerBatchSize int
	MatcherBatchSize     int
	CRMPageSize          int
	MaxAttempts          int
	CandidateTTL         time.Duration
	ReaperInterval       time.Duration
	ReaperStuckAfter     time.Duration
	PollInterval         time.Duration
	CRMRequestTimeout    time.Duration
}

// EmbeddingConfig holds the outgoing embedding-provider client configuration.
type EmbeddingConfig struct {
	BaseURL       string
	APIKey        string
	Model         string
	BatchSize     int
	MaxBatchTexts int
	RequestTimeout time.Duration
}

// NotifyConfig holds the ops-alert email configuration.
type NotifyConfig struct {
	ResendAPIKey string
	FromAddress  string
	OpsAddress   string
}

// SentryConfig holds Sentry error-tracking configuration.
type SentryConfig struct {
	DSN         string
	Environment string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("SERVER_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "leadpipe"),
			Password:        getEnv("DB_PASSWORD", "leadpipe"),
			DBName:          getEnv("DB_NAME", "leadpipe"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			ServiceSecret: getEnv("JWT_SERVICE_SECRET", ""),
			TokenExpiry:   getEnvAsDuration("JWT_TOKEN_EXPIRY", 24*time.Hour),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		S3: S3Config{
			Endpoint:  getEnv("S3_ENDPOINT", ""),
			Bucket:    getEnv("S3_BUCKET", ""),
			Region:    getEnv("S3_REGION", "eu-central"),
			AccessKey: getEnv("S3_ACCESS_KEY", ""),
			SecretKey: getEnv("S3_SECRET_KEY", ""),
		},
		Pipeline: PipelineConfig{
			TransformerBatchSize: getEnvAsInt("PIPELINE_TRANSFORMER_BATCH_SIZE", 100),
			MatcherBatchSize:     getEnvAsInt("PIPELINE_MATCHER_BATCH_SIZE", 50),
			CRMPageSize:          getEnvAsInt("PIPELINE_CRM_PAGE_SIZE", 100),
			MaxAttempts:          getEnvAsInt("PIPELINE_MAX_ATTEMPTS", 3),
			CandidateTTL:         getEnvAsDuration("PIPELINE_CANDIDATE_TTL", 7*24*time.Hour),
			ReaperInterval:       getEnvAsDuration("PIPELINE_REAPER_INTERVAL", 5*time.Minute),
			ReaperStuckAfter:     getEnvAsDuration("PIPELINE_REAPER_STUCK_AFTER", 10*time.Minute),
			PollInterval:         getEnvAsDuration("PIPELINE_POLL_INTERVAL", 15*time.Second),
			CRMRequestTimeout:    getEnvAsDuration("PIPELINE_CRM_TIMEOUT", 30*time.Second),
		},
		Embedding: EmbeddingConfig{
			BaseURL:        getEnv("EMBEDDING_BASE_URL", ""),
			APIKey:         getEnv("EMBEDDING_API_KEY", ""),
			Model:          getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			BatchSize:      getEnvAsInt("EMBEDDING_BATCH_SIZE", 50),
			MaxBatchTexts:  getEnvAsInt("EMBEDDING_MAX_BATCH_TEXTS", 2048),
			RequestTimeout: getEnvAsDuration("EMBEDDING_TIMEOUT", 60*time.Second),
		},
		Notify: NotifyConfig{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			FromAddress:  getEnv("NOTIFY_FROM_ADDRESS", "pipeline@leadpipe.example.com"),
			OpsAddress:   getEnv("NOTIFY_OPS_ADDRESS", ""),
		},
		Sentry: SentryConfig{
			DSN:         getEnv("SENTRY_DSN", ""),
			Environment: getEnv("SENTRY_ENVIRONMENT", getEnv("SERVER_ENV", "development")),
		},
	}

	// Validate required fields
	if cfg.JWT.ServiceSecret == "" {
		return nil, fmt.Errorf("JWT_SERVICE_SECRET is required")
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Addr returns the Redis address
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
