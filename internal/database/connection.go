package database

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Options struct {
	LogLevel     string
	MaxOpenConns int
}

// Initialize opens postgres for postgres:// URLs and sqlite for anything
// else (a file path, "sqlite://path" or a "file:" DSN).
func Initialize(databaseURL string, opts Options) (*gorm.DB, error) {
	config := &gorm.Config{
		Logger: logger.New(
			log.New(os.Stdout, "", log.LstdFlags),
			logger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  parseLogLevel(opts.LogLevel),
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		),
	}

	isSQLite := !isPostgres(databaseURL)
	var dialector gorm.Dialector
	if isSQLite {
		dialector = sqlite.Open(strings.TrimPrefix(databaseURL, "sqlite://"))
	} else {
		dialector = postgres.Open(databaseURL)
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	if isSQLite {
		// sqlite has no row locks; one connection serializes transactions.
		sqlDB.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	} else {
		if opts.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
		}
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	log.Println("Database connected successfully")
	return db, nil
}

func isPostgres(databaseURL string) bool {
	return strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://")
}

func parseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
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
