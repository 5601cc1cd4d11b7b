package db

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"skygen/waitlist-api/internal/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Migrate applies every pending .sql script from dir in filename order.
// Each script runs in its own transaction and its version is recorded
// before the next one starts, so a script applies at most once. The first
// failure aborts the whole run with the partial state left as-is
func Migrate(db *gorm.DB, dir string) error {
	if err := db.AutoMigrate(model.SchemaMigration{}); err != nil {
		return fmt.Errorf("failed to create schema_migrations table, %w", err)
	}

	var applied []string
	if err := db.Model(model.SchemaMigration{}).Pluck("version", &applied).Error; err != nil {
		return fmt.Errorf("failed to read applied migrations, %w", err)
	}

	appliedSet := make(map[string]bool, len(applied))
	for _, v := range applied {
		appliedSet[v] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory %q, %w", dir, err)
	}

	var pending []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}

		if version := strings.TrimSuffix(e.Name(), ".sql"); !appliedSet[version] {
			pending = append(pending, e.Name())
		}
	}

	sort.Strings(pending)

	for _, name := range pending {
		version := strings.TrimSuffix(name, ".sql")

		script, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("failed to read migration %v, %w", name, err)
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(string(script)).Error; err != nil {
				return err
			}

			return tx.Create(&model.SchemaMigration{Version: version}).Error
		})
		if err != nil {
			return fmt.Errorf("migration %v failed, %w", version, err)
		}

		zap.L().Info("Applied migration", zap.String("version", version))
	}

	return nil
}
