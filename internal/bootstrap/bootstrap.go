// Package bootstrap wires configuration into the shared runtime pieces used
// by both the HTTP server and contractctl.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/aldoetobex/rentify-backend/internal/config"
	"github.com/aldoetobex/rentify-backend/internal/contractpdf"
	"github.com/aldoetobex/rentify-backend/internal/contracts"
	"github.com/aldoetobex/rentify-backend/internal/properties"
	"github.com/aldoetobex/rentify-backend/internal/storage"
	"github.com/aldoetobex/rentify-backend/pkg/database"
)

// Logger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func Logger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if strings.EqualFold(cfg.LogFormat, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

// Database opens the configured database.
func Database(cfg *config.Config) (*gorm.DB, error) {
	return database.Open(database.Options{
		Type:         cfg.DBType,
		DSN:          cfg.DatabaseURL,
		MaxOpenConns: cfg.DBMaxOpenConns,
		LogLevel:     cfg.DBLogLevel,
	})
}

// Blob selects the storage backend named by STORAGE_PROVIDER.
func Blob(ctx context.Context, cfg *config.Config) (storage.Blob, error) {
	switch cfg.StorageProvider {
	case "supabase":
		return storage.NewSupabase(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseBucket), nil
	case "s3":
		return storage.NewS3(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3Endpoint)
	case "memory":
		return storage.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.StorageProvider)
	}
}

// Contracts builds the contract service and its PDF worker.
func Contracts(cfg *config.Config, db *gorm.DB, blob storage.Blob, log logrus.FieldLogger) (*contracts.Service, *contracts.Worker) {
	svc := contracts.NewService(db, properties.NewDirectory(db), blob, contractpdf.NewRenderer(cfg.AppName), log,
		contracts.Options{
			DefaultCurrency: cfg.DefaultCurrency,
			SignedURLTTL:    cfg.SignedURLTTL,
			MaxUploadFiles:  cfg.MaxUploadFiles,
			MaxUploadBytes:  cfg.MaxUploadBytes,
		})
	worker := contracts.NewWorker(svc, contracts.WorkerConfig{
		Concurrency:  cfg.PDFWorkers,
		MaxAttempts:  cfg.PDFMaxAttempts,
		PollInterval: cfg.PDFPollInterval,
		RetryDelay:   cfg.PDFRetryDelay,
	})
	return svc, worker
}
