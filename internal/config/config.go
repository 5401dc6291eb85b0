package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port   string
	AppEnv string

	// Database configuration
	DBType         string // postgres, mysql, sqlite, sqlserver
	DatabaseURL    string // DSN, or the file path for sqlite
	DBMaxOpenConns int
	DBLogLevel     string // silent, error, warn, info

	// Logging
	LogLevel  string
	LogFormat string // text, json

	// Auth
	JWTSecret string
	TokenTTL  time.Duration

	// Blob storage
	StorageProvider    string // supabase, s3, memory
	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseBucket     string
	S3Bucket           string
	S3Region           string
	S3Endpoint         string // optional, for S3-compatible stores
	SignedURLTTL       time.Duration

	// Contracts
	DefaultCurrency string
	AppName         string
	MaxUploadFiles  int
	MaxUploadBytes  int64

	// PDF worker
	PDFWorkers      int
	PDFMaxAttempts  int
	PDFPollInterval time.Duration
	PDFRetryDelay   time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "3000"),
		AppEnv:             getEnv("APP_ENV", "dev"),
		DBType:             strings.ToLower(getEnv("DB_TYPE", "postgres")),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		DBMaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		DBLogLevel:         getEnv("DB_LOG_LEVEL", "warn"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		TokenTTL:           getEnvAsDuration("TOKEN_TTL", 7*24*time.Hour),
		StorageProvider:    strings.ToLower(getEnv("STORAGE_PROVIDER", "supabase")),
		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseBucket:     getEnv("SUPABASE_BUCKET", ""),
		S3Bucket:           getEnv("S3_BUCKET_NAME", ""),
		S3Region:           getEnv("AWS_REGION", ""),
		S3Endpoint:         getEnv("S3_ENDPOINT", ""),
		SignedURLTTL:       getEnvAsDuration("SIGNED_URL_TTL", time.Minute),
		DefaultCurrency:    strings.ToUpper(getEnv("DEFAULT_CURRENCY", "PHP")),
		AppName:            getEnv("APP_NAME", "Rentify"),
		MaxUploadFiles:     getEnvAsInt("MAX_UPLOAD_FILES", 5),
		MaxUploadBytes:     int64(getEnvAsInt("MAX_UPLOAD_BYTES", 10*1024*1024)),
		PDFWorkers:         getEnvAsInt("PDF_WORKERS", 2),
		PDFMaxAttempts:     getEnvAsInt("PDF_MAX_ATTEMPTS", 5),
		PDFPollInterval:    getEnvAsDuration("PDF_POLL_INTERVAL", 15*time.Second),
		PDFRetryDelay:      getEnvAsDuration("PDF_RETRY_DELAY", 10*time.Second),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	switch cfg.StorageProvider {
	case "supabase":
		if cfg.SupabaseURL == "" || cfg.SupabaseBucket == "" {
			return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_BUCKET are required for the supabase storage provider")
		}
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET_NAME is required for the s3 storage provider")
		}
	case "memory":
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.StorageProvider)
	}
	if cfg.MaxUploadFiles < 1 {
		cfg.MaxUploadFiles = 1
	}
	if cfg.PDFWorkers < 1 {
		cfg.PDFWorkers = 1
	}
	if cfg.PDFMaxAttempts < 1 {
		cfg.PDFMaxAttempts = 1
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("90s", "5m") or whole seconds
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
