package bootstrap

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aldoetobex/rentify-backend/internal/config"
	"github.com/aldoetobex/rentify-backend/internal/storage"
	"github.com/aldoetobex/rentify-backend/internal/testutil"
)

func Test_Logger(t *testing.T) {
	log := Logger(&config.Config{LogLevel: "debug", LogFormat: "json"})
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)

	log = Logger(&config.Config{LogLevel: "loud"})
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)
}

func Test_Blob_Selection(t *testing.T) {
	ctx := context.Background()

	b, err := Blob(ctx, &config.Config{StorageProvider: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &storage.Memory{}, b)

	b, err = Blob(ctx, &config.Config{StorageProvider: "supabase", SupabaseURL: "http://localhost:54321", SupabaseBucket: "docs"})
	require.NoError(t, err)
	assert.IsType(t, &storage.Supabase{}, b)

	_, err = Blob(ctx, &config.Config{StorageProvider: "ftp"})
	assert.Error(t, err)
}

func Test_Database_SQLite(t *testing.T) {
	db, err := Database(&config.Config{DBType: "sqlite", DatabaseURL: "file::memory:", DBLogLevel: "silent", DBMaxOpenConns: 1})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.NoError(t, sqlDB.Ping())
	_ = sqlDB.Close()
}

func Test_Contracts_Wiring(t *testing.T) {
	db := testutil.OpenDB(t)
	svc, worker := Contracts(&config.Config{AppName: "Rentify", PDFWorkers: 2, PDFMaxAttempts: 3}, db, storage.NewMemory(), logrus.New())
	require.NotNil(t, svc)
	require.NotNil(t, worker)

	n, err := worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
