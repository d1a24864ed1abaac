package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("TX_MAX_RETRIES", "")
	t.Setenv("RECONCILE_INTERVAL", "")
	t.Setenv("RATE_LIMIT_ENABLED", "")
	t.Setenv("DATABASE_URL", "")

	cfg := Load()
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "local", cfg.StorageDriver)
	assert.Equal(t, 5, cfg.TxMaxRetries)
	assert.Equal(t, time.Hour, cfg.ReconcileInterval)
	assert.True(t, cfg.RateLimitEnabled)
	assert.Contains(t, cfg.DSN(), "dbname=")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "S3")
	t.Setenv("TX_MAX_RETRIES", "9")
	t.Setenv("RECONCILE_INTERVAL", "10m")
	t.Setenv("RATE_LIMIT_ENABLED", "off")
	t.Setenv("DATABASE_URL", "postgres://u:p@db/fit")

	cfg := Load()
	assert.Equal(t, "s3", cfg.StorageDriver)
	assert.Equal(t, 9, cfg.TxMaxRetries)
	assert.Equal(t, 10*time.Minute, cfg.ReconcileInterval)
	assert.False(t, cfg.RateLimitEnabled)
	assert.Equal(t, "postgres://u:p@db/fit", cfg.DSN())

	t.Setenv("TX_MAX_RETRIES", "lots")
	assert.Equal(t, 5, Load().TxMaxRetries)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{JWTSecret: "dev-secret", StorageDriver: "local", TxMaxRetries: 3}
	}
	require.NoError(t, valid().Validate())

	cfg := valid()
	cfg.JWTSecret = ""
	assert.ErrorContains(t, cfg.Validate(), "JWT_SECRET")

	cfg = valid()
	cfg.AppEnv = "production"
	assert.ErrorContains(t, cfg.Validate(), "32 characters")

	cfg = valid()
	cfg.StorageDriver = "s3"
	assert.ErrorContains(t, cfg.Validate(), "S3_BUCKET")
	cfg.S3Bucket = "images"
	assert.NoError(t, cfg.Validate())

	cfg = valid()
	cfg.StorageDriver = "ftp"
	assert.ErrorContains(t, cfg.Validate(), "ftp")

	cfg = valid()
	cfg.TxMaxRetries = -1
	assert.Error(t, cfg.Validate())
}
