package datastore

import (
	"time"

	"github.com/tphakala/brandforge-go/internal/errors"
	"gorm.io/gorm"
)

// performAutoMigration automates database migrations with error handling.
func performAutoMigration(db *gorm.DB, dbType string) error {
	migrationStart := time.Now()
	migrationLogger := getLogger().With("db_type", dbType)

	migrationLogger.Debug("Starting database migration")

	tableMappings := []struct {
		model any
		name  string
	}{
		{&Brand{}, "brands"},
		{&TrainingAsset{}, "training_assets"},
		{&TrainingJob{}, "training_jobs"},
		{&GeneratedImage{}, "generated_images"},
	}

	for _, table := range tableMappings {
		tableStart := time.Now()
		if err := db.AutoMigrate(table.model); err != nil {
			enhancedErr := errors.New(err).
				Component("datastore").
				Category(errors.CategoryDatabase).
				Context("operation", "auto_migrate_table").
				Context("db_type", dbType).
				Context("table", table.name).
				Build()

			migrationLogger.Error("Table migration failed",
				"table", table.name,
				"error", enhancedErr)
			return enhancedErr
		}
		migrationLogger.Debug("Table migration completed",
			"table", table.name,
			"duration", time.Since(tableStart))
	}

	migrationLogger.Debug("Database migration completed successfully",
		"total_duration", time.Since(migrationStart),
		"tables_migrated", len(tableMappings))

	return nil
}
