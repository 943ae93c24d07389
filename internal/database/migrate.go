package database

import (
	"gorm.io/gorm"

	"github.com/noah-isme/hifz-api/internal/models"
)

// Migrate creates or updates the tables owned by the service.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.School{},
		&models.Class{},
		&models.Student{},
		&models.Guardian{},
		&models.Assignment{},
		&models.Homework{},
		&models.Target{},
		&models.TargetMilestone{},
		&models.TransitionLog{},
		&models.Notification{},
	)
}
