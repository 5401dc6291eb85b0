package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Load_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "file:test.db")
	t.Setenv("DB_TYPE", "sqlite")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE_PROVIDER", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBType)
	assert.Equal(t, "PHP", cfg.DefaultCurrency)
	assert.Equal(t, 5, cfg.MaxUploadFiles)
	assert.Equal(t, 5, cfg.PDFMaxAttempts)
	assert.Equal(t, 7*24*time.Hour, cfg.TokenTTL)
}

func Test_Load_RequiresSecrets(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://x")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func Test_Load_StorageProviderChecks(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://x")
	t.Setenv("JWT_SECRET", "secret")

	t.Setenv("STORAGE_PROVIDER", "s3")
	t.Setenv("S3_BUCKET_NAME", "")
	_, err := Load()
	assert.ErrorContains(t, err, "S3_BUCKET_NAME")

	t.Setenv("STORAGE_PROVIDER", "ftp")
	_, err = Load()
	assert.ErrorContains(t, err, "unsupported storage provider")
}

func Test_getEnvAsDuration(t *testing.T) {
	t.Setenv("X_DUR", "90s")
	assert.Equal(t, 90*time.Second, getEnvAsDuration("X_DUR", time.Second))

	t.Setenv("X_DUR", "30")
	assert.Equal(t, 30*time.Second, getEnvAsDuration("X_DUR", time.Second))

	t.Setenv("X_DUR", "soon")
	assert.Equal(t, time.Second, getEnvAsDuration("X_DUR", time.Second))
}
