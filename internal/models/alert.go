package models

import (
	"time"

	"gorm.io/gorm"
)

// Alert records that an incident was pushed to the alert webhook, so that a
// restarted agent does not alert on the same incident twice.
type Alert struct {
	gorm.Model

	// IncidentID is the numeric id of the incident that triggered the alert.
	IncidentID int64 `gorm:"uniqueIndex"`

	EventID  string
	Severity string

	// Zone is used to throttle HIGH severity alerts per zone.
	Zone string `gorm:"index"`

	AlertedAt *time.Time
}
