package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shaibs3/canvascache/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:            "0",
		Environment:     "development",
		LogLevel:        "debug",
		DBConfig:        `{"db_type":"memory","extra_details":{}}`,
		AdminPassword:   "pw",
		UpstreamTimeout: time.Second,
		WalkConcurrency: 2,
		WriteTimeout:    time.Minute,
		ShutdownTimeout: time.Second,
	}
}

func TestNewApp(t *testing.T) {
	a, err := NewApp(testConfig(), zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, a.store)
	require.Equal(t, ":0", a.server.Addr)
	require.Equal(t, time.Minute, a.server.WriteTimeout)
	require.NoError(t, a.stop())
}

func TestNewApp_InvalidDBConfig(t *testing.T) {
	cfg := testConfig()
	cfg.DBConfig = `{"db_type":"mongo"}`
	_, err := NewApp(cfg, zap.NewNop())
	require.Error(t, err)
}

func TestNewApp_InvalidPasswordHash(t *testing.T) {
	cfg := testConfig()
	cfg.AdminPasswordHash = "not-a-bcrypt-hash"
	_, err := NewApp(cfg, zap.NewNop())
	require.Error(t, err)
}
