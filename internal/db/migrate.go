package db

import (
	"fmt"

	"github.com/mkernan/questboard/internal/models"
	"gorm.io/gorm"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Quest{},
		&models.Objective{},
		&models.UserQuest{},
		&models.UserObjective{},
		&models.Member{},
		&models.PointAward{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
