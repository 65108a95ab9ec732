package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "port", "ENVIRONMENT", "LOG_LEVEL", "DB_CONFIG", "ADMIN_PASSWORD",
		"adminpassword", "ADMIN_PASSWORD_HASH", "UPSTREAM_TIMEOUT", "WALK_CONCURRENCY", "WRITE_TIMEOUT", "SHUTDOWN_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg := Load(zap.NewNop())
	require.Equal(t, "3001", cfg.Port)
	require.Equal(t, "development", cfg.Environment)
	require.Equal(t, "info", cfg.LogLevel)
	require.Empty(t, cfg.DBConfig)
	require.Empty(t, cfg.AdminPassword)
	require.Equal(t, 30*time.Second, cfg.UpstreamTimeout)
	require.Equal(t, 4, cfg.WalkConcurrency)
	require.Equal(t, 5*time.Minute, cfg.WriteTimeout)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("port", "4000")
	t.Setenv("ADMIN_PASSWORD", "")
	t.Setenv("adminpassword", "hunter2")
	t.Setenv("ADMIN_PASSWORD_HASH", "")
	t.Setenv("UPSTREAM_TIMEOUT", "5s")
	t.Setenv("WALK_CONCURRENCY", "1")
	t.Setenv("DB_CONFIG", `{"db_type":"memory"}`)

	cfg := Load(zap.NewNop())
	require.Equal(t, "4000", cfg.Port)
	require.Equal(t, "hunter2", cfg.AdminPassword)
	require.Equal(t, 5*time.Second, cfg.UpstreamTimeout)
	require.Equal(t, 1, cfg.WalkConcurrency)
	require.Equal(t, `{"db_type":"memory"}`, cfg.DBConfig)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("UPSTREAM_TIMEOUT", "soon")
	t.Setenv("WALK_CONCURRENCY", "-2")

	cfg := Load(zap.NewNop())
	require.Equal(t, 30*time.Second, cfg.UpstreamTimeout)
	require.Equal(t, 4, cfg.WalkConcurrency)
}
