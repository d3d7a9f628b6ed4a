package repository

import (
	"errors"
	"time"

	"github.com/isafetyrobo/safety-agent/internal/models"
	"github.com/isafetyrobo/safety-agent/internal/utils"
	"gorm.io/gorm"
)

type AlertRepository struct {
	db *gorm.DB
}

// NewAlertRepository returns pointer to repo along with the db
func NewAlertRepository(db *gorm.DB) *AlertRepository {
	return &AlertRepository{db}
}

func (r *AlertRepository) CreateAlert(alert *models.Alert) (*models.Alert, error) {
	if err := r.db.Create(alert).Error; err != nil {
		return nil, err
	}

	return alert, nil
}

func (r *AlertRepository) AlertExists(incidentID int64) (bool, error) {
	alert := &models.Alert{}

	if err := r.db.Where("incident_id = ?", incidentID).First(alert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

// LatestAlertForZone returns the most recent alert of the given severity in
// zone, or nil if there is none.
func (r *AlertRepository) LatestAlertForZone(zone, severity string) (*models.Alert, error) {
	alert := &models.Alert{}

	if err := r.db.Where("zone = ? AND severity = ?", zone, severity).
		Order("alerted_at desc").
		First(alert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, err
	}

	return alert, nil
}

func (r *AlertRepository) ListAlerts(
	filter *utils.ListAlertsFilter,
	opts ...utils.QueryOption,
) ([]*models.Alert, *utils.PaginatedResult, error) {
	var alerts []*models.Alert

	scope := func(db *gorm.DB) *gorm.DB {
		if filter.Severity != nil {
			db = db.Where("severity = ?", *filter.Severity)
		}

		if filter.Zone != nil {
			db = db.Where("zone = ?", *filter.Zone)
		}

		return db
	}

	var count int64

	if err := r.db.Model(&models.Alert{}).Scopes(scope).Count(&count).Error; err != nil {
		return nil, nil, err
	}

	paginatedResult := &utils.PaginatedResult{}

	db := r.db.Model(&models.Alert{}).Scopes(scope, utils.Paginate(opts, count, paginatedResult))

	if err := db.Find(&alerts).Error; err != nil {
		return nil, nil, err
	}

	return alerts, paginatedResult, nil
}

// DeleteAlertsBefore removes alert history older than t.
func (r *AlertRepository) DeleteAlertsBefore(t time.Time) (int64, error) {
	res := r.db.Unscoped().Where("alerted_at < ?", t).Delete(&models.Alert{})

	return res.RowsAffected, res.Error
}
