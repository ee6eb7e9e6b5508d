package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MODEL_API_KEY", "test-key")
	t.Setenv("TEAMWORK_BASE_URL", "https://example.teamwork.com")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "gpt-4o-mini", cfg.Model.Model)
	assert.Equal(t, 120*time.Second, cfg.AgentTimeout)
	assert.Equal(t, 30*time.Second, cfg.Teamwork.Timeout)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.False(t, cfg.DryRun)
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("AGENT_TIMEOUT", "45s")
	t.Setenv("SUBMIT_DRY_RUN", "true")
	t.Setenv("DB_PORT", "5433")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, 45*time.Second, cfg.AgentTimeout)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, 5433, cfg.Database.Port)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Run("model api key", func(t *testing.T) {
		t.Setenv("MODEL_API_KEY", "")
		t.Setenv("TEAMWORK_BASE_URL", "https://example.teamwork.com")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "MODEL_API_KEY")
	})

	t.Run("teamwork base url", func(t *testing.T) {
		t.Setenv("MODEL_API_KEY", "test-key")
		t.Setenv("TEAMWORK_BASE_URL", "")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "TEAMWORK_BASE_URL")
	})
}

func TestLoad_InvalidDuration(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("AGENT_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AGENT_TIMEOUT")
}

func TestLoad_InvalidPoolSize(t *testing.T) {
	t.Run("max open conns", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("DB_MAX_OPEN_CONNS", "lots")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DB_MAX_OPEN_CONNS")
	})

	t.Run("max idle conns", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("DB_MAX_IDLE_CONNS", "-")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DB_MAX_IDLE_CONNS")
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	dsn := DatabaseConfig{
		Host: "db.internal", Port: 5433, User: "prowl",
		Password: "secret", Database: "prowl", SSLMode: "require",
	}.DSN()

	assert.Equal(t, "host=db.internal port=5433 user=prowl password=secret dbname=prowl sslmode=require", dsn)
}
