package types

import (
	"fmt"
	"time"

	"github.com/isafetyrobo/safety-agent/pkg/feed"
	"github.com/isafetyrobo/safety-agent/pkg/incident"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 1000
)

type PaginationResponse struct {
	NumPages    int64 `json:"num_pages"`
	CurrentPage int64 `json:"current_page"`
	NextPage    int64 `json:"next_page"`
}

// NewPaginationResponse describes the zero-indexed page of numPages.
func NewPaginationResponse(page, numPages int) *PaginationResponse {
	res := &PaginationResponse{
		NumPages:    int64(numPages),
		CurrentPage: int64(page),
	}

	if page+1 < numPages {
		res.NextPage = int64(page + 1)
	}

	return res
}

type ListIncidentsRequest struct {
	Status   string    `schema:"status"`
	Severity string    `schema:"severity"`
	Zone     string    `schema:"zone"`
	Type     string    `schema:"type"`
	From     time.Time `schema:"from"`
	To       time.Time `schema:"to"`
	Shift    string    `schema:"shift"`
	Page     int       `schema:"page"`
	Limit    int       `schema:"limit"`
}

func (r *ListIncidentsRequest) Validate() error {
	if r.Page < 0 {
		return fmt.Errorf("page must not be negative")
	}

	if r.Limit < 0 || r.Limit > MaxPageLimit {
		return fmt.Errorf("limit must be between 0 and %d", MaxPageLimit)
	}

	if r.Shift != "" {
		if _, ok := incident.ParseShift(r.Shift); !ok {
			return fmt.Errorf("unknown shift %q", r.Shift)
		}
	}

	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return fmt.Errorf("to must not be before from")
	}

	return nil
}

func (r *ListIncidentsRequest) ToFilter() feed.ViewFilter {
	res := feed.ViewFilter{
		Status:        r.Status,
		Severity:      r.Severity,
		Zone:          r.Zone,
		DetectionType: r.Type,
		Shift:         r.Shift,
	}

	if !r.From.IsZero() {
		from := r.From
		res.From = &from
	}

	if !r.To.IsZero() {
		to := r.To
		res.To = &to
	}

	return res
}

type ListIncidentsResponse struct {
	Pagination *PaginationResponse `json:"pagination"`
	Matched    int                 `json:"matched"`
	TotalCount int                 `json:"total_count"`
	Loading    bool                `json:"loading"`
	Incidents  []incident.Record   `json:"incidents"`
}

type GetIncidentResponse struct {
	Incident incident.Record `json:"incident"`
	Shift    incident.Shift  `json:"shift,omitempty"`
}

type IncidentSummaryResponse struct {
	*feed.Summary

	Loading     bool       `json:"loading"`
	LastRefresh *time.Time `json:"last_refresh"`
}

type ListNotificationsRequest struct {
	Limit int `schema:"limit"`
}

func (r *ListNotificationsRequest) Validate() error {
	if r.Limit < 0 || r.Limit > MaxPageLimit {
		return fmt.Errorf("limit must be between 0 and %d", MaxPageLimit)
	}

	return nil
}

type ListNotificationsResponse struct {
	Open          int               `json:"open"`
	Notifications []incident.Record `json:"notifications"`
}
