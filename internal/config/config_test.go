package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "completeness.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "yaml", cfg.Schema.Source)
	assert.Equal(t, "expectations.yaml", cfg.Schema.Path)
	assert.InDelta(t, 3.0, cfg.Notion.RateLimit, 0.001)
	assert.Equal(t, 4, cfg.Run.Concurrency)
	assert.Equal(t, 30, cfg.Ingest.FTPTimeoutSecs)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 0.25, cfg.Monitoring.MissingRateThreshold, 0.001)
	assert.InDelta(t, 0.10, cfg.Monitoring.NoAttemptThreshold, 0.001)
	assert.Equal(t, 20, cfg.Monitoring.MinApplicable)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("COMPLETENESS_STORE_DRIVER", "postgres")
	t.Setenv("COMPLETENESS_STORE_DATABASE_URL", "postgres://localhost/completeness")
	t.Setenv("COMPLETENESS_RUN_CONCURRENCY", "16")
	t.Setenv("COMPLETENESS_SCHEMA_SOURCE", "notion")
	t.Setenv("COMPLETENESS_NOTION_TOKEN", "secret-token")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/completeness", cfg.Store.DatabaseURL)
	assert.Equal(t, 16, cfg.Run.Concurrency)
	assert.Equal(t, "notion", cfg.Schema.Source)
	assert.Equal(t, "secret-token", cfg.Notion.Token)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "nonsense"}))
}
