package models

import (
	"time"

	"github.com/isafetyrobo/safety-agent/pkg/incident"
	"gorm.io/gorm"
)

// CachedIncident is one row of the persisted incident snapshot. Position
// keeps the newest-first order of the feed.
type CachedIncident struct {
	gorm.Model

	Position   int   `gorm:"index"`
	IncidentID int64 `gorm:"uniqueIndex"`

	EventID       string `gorm:"index"`
	StreamID      string
	DetectionType string
	DetectedAt    *time.Time
	ImageURL      string

	Label      string
	ModelName  string
	Owner      string
	Status     string
	Severity   string
	Confidence float64
	Zone       string
}

func NewCachedIncident(rec incident.Record, position int) *CachedIncident {
	res := &CachedIncident{
		Position:      position,
		IncidentID:    rec.ID,
		EventID:       rec.EventID,
		StreamID:      rec.StreamID,
		DetectionType: rec.DetectionType,
		ImageURL:      rec.ImageURL,
		Label:         rec.Metadata.Label,
		ModelName:     rec.Metadata.ModelName,
		Owner:         rec.Metadata.Owner,
		Status:        rec.Metadata.Status,
		Severity:      rec.Metadata.Severity,
		Confidence:    rec.Metadata.Confidence,
		Zone:          rec.Metadata.Zone,
	}

	if !rec.DetectedAt.IsZero() {
		detectedAt := rec.DetectedAt.Time
		res.DetectedAt = &detectedAt
	}

	return res
}

func (c *CachedIncident) ToRecord() incident.Record {
	rec := incident.Record{
		ID:            c.IncidentID,
		EventID:       c.EventID,
		StreamID:      c.StreamID,
		DetectionType: c.DetectionType,
		ImageURL:      c.ImageURL,
		Metadata: incident.Metadata{
			Label:      c.Label,
			ModelName:  c.ModelName,
			Owner:      c.Owner,
			Status:     c.Status,
			Severity:   c.Severity,
			Confidence: c.Confidence,
			Zone:       c.Zone,
		},
	}

	if c.DetectedAt != nil {
		rec.DetectedAt = incident.Timestamp{Time: c.DetectedAt.UTC()}
	}

	return rec
}

// FeedState holds the scalar part of the snapshot: the total count reported
// by the violations API and the schema version the rows were written with.
type FeedState struct {
	gorm.Model

	FeedKey       string `gorm:"uniqueIndex"`
	SchemaVersion int
	TotalCount    int
	SavedAt       *time.Time
}
