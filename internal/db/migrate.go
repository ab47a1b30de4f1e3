package db

import (
	"fmt"

	"github.com/KramerO/ollama-flow-sub002/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model managed by AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{
		&models.Message{},
		&models.Agent{},
		&models.Workflow{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
