package models

import (
	"time"

	"gorm.io/gorm"
)

// InstanceState is the persisted part of a vision instance's local state:
// whether it was left running and whether it runs the crowd module.
type InstanceState struct {
	gorm.Model

	InstanceID string `gorm:"uniqueIndex"`
	ModuleID   string
	Name       string

	IsCrowd bool
	Running bool

	StartedAt *time.Time
}
