package types

import (
	"fmt"
	"time"
)

type ListAlertsRequest struct {
	Severity string `schema:"severity"`
	Zone     string `schema:"zone"`
	Page     uint   `schema:"page"`
	Limit    uint   `schema:"limit"`
}

func (r *ListAlertsRequest) Validate() error {
	if r.Limit > MaxPageLimit {
		return fmt.Errorf("limit must not exceed %d", MaxPageLimit)
	}

	return nil
}

type Alert struct {
	IncidentID int64      `json:"incident_id"`
	EventID    string     `json:"event_id"`
	Severity   string     `json:"severity"`
	Zone       string     `json:"zone"`
	AlertedAt  *time.Time `json:"alerted_at"`
}

type ListAlertsResponse struct {
	Pagination *PaginationResponse `json:"pagination"`
	Alerts     []Alert             `json:"alerts"`
}
