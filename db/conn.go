// Package db contains the store connection and the schema migration runner
package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New opens the store selected by database.driver and brings its schema
// up to date. A migration failure is returned as-is and the caller is
// expected to treat it as fatal
func New() (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)

	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	switch viper.GetString("database.driver") {
	case "sqlite":
		path := viper.GetString("database.path")

		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory, %w", err)
			}
		}

		// Foreign keys are off by default in SQLite. WAL keeps readers
		// from blocking behind the writer
		dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL", path)

		db, err = gorm.Open(sqlite.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database, %w", err)
		}
	case "postgres":
		db, err = gorm.Open(postgres.Open(viper.GetString("database.dsn")), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open Postgres database, %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown database driver %q", viper.GetString("database.driver"))
	}

	if err := Migrate(db, viper.GetString("database.migrations_dir")); err != nil {
		return nil, fmt.Errorf("failed to migrate database, %w", err)
	}

	return db, nil
}
