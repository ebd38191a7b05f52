package database

import (
	"statushub/internal/models"
	"statushub/pkg/logger"
)

// MODELS_TO_MIGRATE is shared with cmd/migration
var MODELS_TO_MIGRATE = []any{
	&models.RecoverySession{},
}

// MigrateModels runs GORM AutoMigrate for all models
func (db *DB) MigrateModels() error {
	log := logger.New("database").Function("MigrateModels")
	log.Info("Starting database migration")

	for _, model := range MODELS_TO_MIGRATE {
		if err := db.SQL.AutoMigrate(model); err != nil {
			return log.Err("failed to migrate model", err, "model", model)
		}
	}

	log.Info("Database migration completed successfully")
	return nil
}
