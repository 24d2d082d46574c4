package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 9090
  host: "0.0.0.0"
  allowed_origins:
    - "https://app.example.com"

database:
  url: "postgres://localhost:5432/engage?sslmode=disable"
  max_open_conns: 50

redis:
  addr: "redis:6379"
  db: 2

sms:
  account_id: "AC123"
  api_key: "test-api-key"
  base_url: "https://sms.example.com/v1"
  timeout_seconds: 45

imports:
  s3_bucket: "engage-imports"
  batch_size: 250

journeys:
  enabled: true
  tick_interval_seconds: 10

sending:
  embed_processor: true
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.AllowedOrigins)

	assert.Equal(t, "postgres://localhost:5432/engage?sslmode=disable", cfg.Database.URL)
	assert.Equal(t, 50, cfg.Database.MaxOpenConns)

	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)

	assert.Equal(t, "AC123", cfg.SMS.AccountID)
	assert.Equal(t, "test-api-key", cfg.SMS.APIKey)
	assert.Equal(t, "https://sms.example.com/v1", cfg.SMS.BaseURL)
	assert.Equal(t, 45, cfg.SMS.TimeoutSeconds)

	assert.Equal(t, "engage-imports", cfg.Imports.S3Bucket)
	assert.Equal(t, 250, cfg.Imports.BatchSize)

	assert.True(t, cfg.Journeys.Enabled)
	assert.Equal(t, 10, cfg.Journeys.TickIntervalSeconds)

	assert.True(t, cfg.Sending.EmbedProcessor)
}

func TestLoadDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	err := os.WriteFile(configPath, []byte("server: {}\n"), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "engage_session", cfg.Auth.CookieName)
	assert.Equal(t, 30, cfg.SMS.TimeoutSeconds)
	assert.Equal(t, 3, cfg.SMS.MaxRetries)
	assert.Equal(t, 500, cfg.Imports.BatchSize)
	assert.Equal(t, 30, cfg.Journeys.TickIntervalSeconds)
	assert.Equal(t, 15, cfg.Segments.RefreshIntervalMinutes)
	assert.Equal(t, 10, cfg.Sending.RatePerSecond)
	assert.Equal(t, 100, cfg.Sending.BatchSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
database:
  url: "postgres://localhost/dev"
sms:
  api_key: "file-key"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	t.Setenv("DATABASE_URL", "postgres://prod-host/engage")
	t.Setenv("SMS_API_KEY", "env-key")
	t.Setenv("REDIS_URL", "prod-redis:6379")
	t.Setenv("GOOGLE_CLIENT_ID", "client-123")
	t.Setenv("SESSION_SECRET", "s3cret")

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	assert.Equal(t, "postgres://prod-host/engage", cfg.Database.URL)
	assert.Equal(t, "env-key", cfg.SMS.APIKey)
	assert.Equal(t, "prod-redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "client-123", cfg.Auth.GoogleClientID)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, "s3cret", cfg.Auth.SessionSecret)
}
