package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config holds everything read from the environment at start-up
type Config struct {
	Port              string
	Environment       string
	LogLevel          string
	DBConfig          string
	AdminPassword     string
	AdminPasswordHash string
	UpstreamTimeout   time.Duration
	WalkConcurrency   int
	WriteTimeout      time.Duration
	ShutdownTimeout   time.Duration
}

const (
	defaultPort            = "3001"
	defaultEnvironment     = "development"
	defaultLogLevel        = "info"
	defaultUpstreamTimeout = 30 * time.Second
	defaultWalkConcurrency = 4
	defaultWriteTimeout    = 5 * time.Minute
	defaultShutdownTimeout = 30 * time.Second
)

// Load reads an optional .env file and then the process environment.
// Invalid values are logged and replaced by defaults.
func Load(logger *zap.Logger) *Config {
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file loaded", zap.Error(err))
	}

	cfg := &Config{
		Port:              firstEnv(defaultPort, "PORT", "port"),
		Environment:       firstEnv(defaultEnvironment, "ENVIRONMENT"),
		LogLevel:          firstEnv(defaultLogLevel, "LOG_LEVEL"),
		DBConfig:          firstEnv("", "DB_CONFIG"),
		AdminPassword:     firstEnv("", "ADMIN_PASSWORD", "adminpassword"),
		AdminPasswordHash: firstEnv("", "ADMIN_PASSWORD_HASH"),
		UpstreamTimeout:   durationEnv(logger, "UPSTREAM_TIMEOUT", defaultUpstreamTimeout),
		WalkConcurrency:   intEnv(logger, "WALK_CONCURRENCY", defaultWalkConcurrency),
		WriteTimeout:      durationEnv(logger, "WRITE_TIMEOUT", defaultWriteTimeout),
		ShutdownTimeout:   durationEnv(logger, "SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
	}

	if cfg.AdminPassword == "" && cfg.AdminPasswordHash == "" {
		logger.Warn("no admin password configured; refresh and delete are disabled")
	}

	logger.Info("configuration loaded",
		zap.String("port", cfg.Port),
		zap.String("environment", cfg.Environment),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("custom_db_config", cfg.DBConfig != ""),
		zap.Duration("upstream_timeout", cfg.UpstreamTimeout),
		zap.Int("walk_concurrency", cfg.WalkConcurrency),
	)
	return cfg
}

// firstEnv returns the first non-empty variable among keys, or fallback
func firstEnv(fallback string, keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return fallback
}

func durationEnv(logger *zap.Logger, key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		logger.Warn("invalid duration, using default", zap.String("key", key), zap.String("value", raw), zap.Duration("default", fallback))
		return fallback
	}
	return d
}

func intEnv(logger *zap.Logger, key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		logger.Warn("invalid integer, using default", zap.String("key", key), zap.String("value", raw), zap.Int("default", fallback))
		return fallback
	}
	return n
}
