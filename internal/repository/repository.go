package repository

import "gorm.io/gorm"

type Repository struct {
	DB *gorm.DB

	Snapshot *SnapshotRepository
	Instance *InstanceStateRepository
	Alert    *AlertRepository
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		DB:       db,
		Snapshot: NewSnapshotRepository(db),
		Instance: NewInstanceStateRepository(db),
		Alert:    NewAlertRepository(db),
	}
}
