package repository

import (
	"github.com/isafetyrobo/safety-agent/internal/models"
	"gorm.io/gorm"
)

func AutoMigrate(db *gorm.DB, debug bool) error {
	instanceDB := db

	if debug {
		instanceDB = instanceDB.Debug()
	}

	return instanceDB.AutoMigrate(
		&models.CachedIncident{},
		&models.FeedState{},
		&models.InstanceState{},
		&models.Alert{},
	)
}
