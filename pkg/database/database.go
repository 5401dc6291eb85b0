package database

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/aldoetobex/rentify-backend/pkg/models"
)

// Options selects the driver and pool settings.
type Options struct {
	Type         string // postgres, mysql, sqlite, sqlserver
	DSN          string
	MaxOpenConns int
	LogLevel     string
}

// Open establishes a database connection based on the configured type
func Open(opts Options) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch strings.ToLower(opts.Type) {
	case "", "postgres", "postgresql":
		dialector = postgres.Open(opts.DSN)
	case "mysql", "mariadb":
		dialector = mysql.Open(opts.DSN)
	case "sqlite":
		// For SQLite the DSN is the file path (or file::memory:)
		dialector = sqlite.Open(opts.DSN)
	case "sqlserver", "mssql":
		dialector = sqlserver.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", opts.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel(opts.LogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying SQL DB for connection pool configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
		sqlDB.SetMaxIdleConns(max(opts.MaxOpenConns/2, 1))
	}

	return db, nil
}

// AutoMigrate runs automatic migrations for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(models.All()...)
}

// Close closes the database connection
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func logLevel(s string) logger.LogLevel {
	switch strings.ToLower(s) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
