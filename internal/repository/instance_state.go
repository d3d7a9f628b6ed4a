package repository

import (
	"errors"

	"github.com/isafetyrobo/safety-agent/internal/models"
	"gorm.io/gorm"
)

type InstanceStateRepository struct {
	db *gorm.DB
}

// NewInstanceStateRepository returns pointer to repo along with the db
func NewInstanceStateRepository(db *gorm.DB) *InstanceStateRepository {
	return &InstanceStateRepository{db}
}

// SaveInstanceState upserts the row for state.InstanceID.
func (r *InstanceStateRepository) SaveInstanceState(state *models.InstanceState) (*models.InstanceState, error) {
	existing := &models.InstanceState{}

	err := r.db.Where("instance_id = ?", state.InstanceID).First(existing).Error

	switch {
	case err == nil:
		state.ID = existing.ID
		state.CreatedAt = existing.CreatedAt
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	if err := r.db.Save(state).Error; err != nil {
		return nil, err
	}

	return state, nil
}

func (r *InstanceStateRepository) ReadInstanceState(instanceID string) (*models.InstanceState, error) {
	state := &models.InstanceState{}

	if err := r.db.Where("instance_id = ?", instanceID).First(state).Error; err != nil {
		return nil, err
	}

	return state, nil
}

func (r *InstanceStateRepository) ListRunningInstanceStates() ([]*models.InstanceState, error) {
	states := make([]*models.InstanceState, 0)

	if err := r.db.Where("running = ?", true).Order("instance_id asc").Find(&states).Error; err != nil {
		return nil, err
	}

	return states, nil
}

func (r *InstanceStateRepository) DeleteInstanceState(instanceID string) error {
	return r.db.Unscoped().Where("instance_id = ?", instanceID).Delete(&models.InstanceState{}).Error
}
