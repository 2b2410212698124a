package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://dealops@localhost:5432/dealops")
	t.Setenv("DEALOPS_BATCH_SIZE", "")
	t.Setenv("REDIS_URL", "")

	cfg := Load()
	assert.Equal(t, 1000, cfg.BatchSize)
	assert.Equal(t, 3, cfg.SampleSize)
	assert.Equal(t, 15*time.Minute, cfg.LockTTL)
	assert.Equal(t, 30*time.Second, cfg.StatementTimeout)
	assert.Equal(t, "get_dashboard_stats", cfg.DashboardRPC)
	assert.Empty(t, cfg.RedisURL)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://dealops@localhost:5432/dealops")
	t.Setenv("DEALOPS_BATCH_SIZE", "250")
	t.Setenv("DEALOPS_WRITE_RATE", "12.5")
	t.Setenv("DEALOPS_AUTO_MIGRATE", "true")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg := Load()
	assert.Equal(t, 250, cfg.BatchSize)
	assert.Equal(t, 12.5, cfg.WriteRate)
	assert.True(t, cfg.AutoMigrate)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("DEALOPS_BATCH_SIZE", "lots")
	t.Setenv("DEALOPS_WRITE_RATE", "fast")
	cfg := Load()
	assert.Equal(t, 1000, cfg.BatchSize)
	assert.Equal(t, 0.0, cfg.WriteRate)
}

func TestValidateRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DatabaseURL")
}

func TestValidateMinioNeedsCredentials(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://dealops@localhost:5432/dealops")
	t.Setenv("MINIO_ENDPOINT", "localhost:9000")
	t.Setenv("MINIO_ACCESS_KEY", "")
	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MinioAccessKey")
}
