package repository

import (
	"context"
	"errors"

	"github.com/isafetyrobo/safety-agent/internal/models"
	"github.com/isafetyrobo/safety-agent/pkg/feed"
	"github.com/isafetyrobo/safety-agent/pkg/incident"
	"gorm.io/gorm"
)

const incidentsFeedKey = "incidents"

// SnapshotRepository persists the incident feed snapshot as ordered rows
// plus one FeedState row. It implements feed.SnapshotCache.
type SnapshotRepository struct {
	db *gorm.DB
}

// NewSnapshotRepository returns pointer to repo along with the db
func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db}
}

func (r *SnapshotRepository) Load(ctx context.Context) (*feed.PersistedSnapshot, error) {
	state := &models.FeedState{}

	if err := r.db.WithContext(ctx).Where("feed_key = ?", incidentsFeedKey).First(state).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, err
	}

	if state.SchemaVersion != feed.SchemaVersion {
		return nil, feed.ErrSchemaVersion
	}

	var rows []*models.CachedIncident

	if err := r.db.WithContext(ctx).Order("position asc").Find(&rows).Error; err != nil {
		return nil, err
	}

	snap := &feed.PersistedSnapshot{
		Version:    state.SchemaVersion,
		TotalCount: state.TotalCount,
		Incidents:  make([]incident.Record, 0, len(rows)),
	}

	if state.SavedAt != nil {
		snap.SavedAt = *state.SavedAt
	}

	for _, row := range rows {
		snap.Incidents = append(snap.Incidents, row.ToRecord())
	}

	return snap, nil
}

// Save replaces the stored snapshot in a single transaction, so a failed
// save leaves the previous snapshot intact.
func (r *SnapshotRepository) Save(ctx context.Context, snap *feed.PersistedSnapshot) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("1 = 1").Delete(&models.CachedIncident{}).Error; err != nil {
			return err
		}

		rows := make([]*models.CachedIncident, 0, len(snap.Incidents))

		for i, rec := range snap.Incidents {
			rows = append(rows, models.NewCachedIncident(rec, i))
		}

		if len(rows) > 0 {
			if err := tx.CreateInBatches(rows, 500).Error; err != nil {
				return err
			}
		}

		state := &models.FeedState{}

		if err := tx.Where("feed_key = ?", incidentsFeedKey).First(state).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		savedAt := snap.SavedAt

		state.FeedKey = incidentsFeedKey
		state.SchemaVersion = snap.Version
		state.TotalCount = snap.TotalCount
		state.SavedAt = &savedAt

		return tx.Save(state).Error
	})
}

func (r *SnapshotRepository) Clear(ctx context.Context) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("1 = 1").Delete(&models.CachedIncident{}).Error; err != nil {
			return err
		}

		return tx.Unscoped().Where("feed_key = ?", incidentsFeedKey).Delete(&models.FeedState{}).Error
	})
}
