// Package config loads the application configuration from the environment
// once at startup. The resulting Config is passed by reference to every
// component constructor — nothing reads the environment after Load returns.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the umbrella configuration object for the server.
type Config struct {
	HTTPPort string

	Model    ModelConfig
	Teamwork TeamworkConfig
	Database DatabaseConfig

	// AgentTimeout bounds a single model invocation.
	AgentTimeout time.Duration

	// DryRun makes the submission service log intended writes instead of
	// calling the Teamwork API. Per-item results still report success.
	DryRun bool
}

// ModelConfig configures the model invocation client.
type ModelConfig struct {
	APIKey  string
	BaseURL string // optional; empty means the provider default
	Model   string
}

// TeamworkConfig configures the external project-management API client.
type TeamworkConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN returns the pgx-compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// Load builds a Config from environment variables.
func Load() (*Config, error) {
	dbPort, err := strconv.Atoi(getEnvOrDefault("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	maxOpen, err := strconv.Atoi(getEnvOrDefault("DB_MAX_OPEN_CONNS", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %w", err)
	}

	maxIdle, err := strconv.Atoi(getEnvOrDefault("DB_MAX_IDLE_CONNS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_IDLE_CONNS: %w", err)
	}

	agentTimeout, err := time.ParseDuration(getEnvOrDefault("AGENT_TIMEOUT", "120s"))
	if err != nil {
		return nil, fmt.Errorf("invalid AGENT_TIMEOUT: %w", err)
	}

	teamworkTimeout, err := time.ParseDuration(getEnvOrDefault("TEAMWORK_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid TEAMWORK_TIMEOUT: %w", err)
	}

	cfg := &Config{
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),
		Model: ModelConfig{
			APIKey:  os.Getenv("MODEL_API_KEY"),
			BaseURL: os.Getenv("MODEL_BASE_URL"),
			Model:   getEnvOrDefault("MODEL_NAME", "gpt-4o-mini"),
		},
		Teamwork: TeamworkConfig{
			BaseURL: os.Getenv("TEAMWORK_BASE_URL"),
			APIKey:  os.Getenv("TEAMWORK_API_KEY"),
			Timeout: teamworkTimeout,
		},
		Database: DatabaseConfig{
			Host:            getEnvOrDefault("DB_HOST", "localhost"),
			Port:            dbPort,
			User:            getEnvOrDefault("DB_USER", "prowl"),
			Password:        os.Getenv("DB_PASSWORD"),
			Database:        getEnvOrDefault("DB_NAME", "prowl"),
			SSLMode:         getEnvOrDefault("DB_SSLMODE", "disable"),
			MaxOpenConns:    maxOpen,
			MaxIdleConns:    maxIdle,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
		AgentTimeout: agentTimeout,
		DryRun:       getEnvOrDefault("SUBMIT_DRY_RUN", "false") == "true",
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields. Called by Load; exported so tests and
// alternate loaders can reuse it.
func (c *Config) Validate() error {
	if c.Model.APIKey == "" {
		return fmt.Errorf("MODEL_API_KEY is required")
	}
	if c.Teamwork.BaseURL == "" {
		return fmt.Errorf("TEAMWORK_BASE_URL is required")
	}
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
