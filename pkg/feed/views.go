package feed

import (
	"strings"
	"time"

	"github.com/isafetyrobo/safety-agent/pkg/incident"
	"github.com/samber/lo"
)

// ViewFilter narrows the cached list for a dashboard view. Zero values match
// everything; string comparisons are case-insensitive.
type ViewFilter struct {
	Status        string
	Severity      string
	Zone          string
	DetectionType string
	From          *time.Time
	To            *time.Time
	Shift         string
}

func (vf ViewFilter) Match(rec incident.Record) bool {
	if vf.Status != "" && rec.Status() != incident.ParseStatus(vf.Status) {
		return false
	}

	if vf.Severity != "" && rec.Severity() != incident.ParseSeverity(vf.Severity) {
		return false
	}

	if vf.Zone != "" && !strings.EqualFold(strings.TrimSpace(rec.Metadata.Zone), strings.TrimSpace(vf.Zone)) {
		return false
	}

	if vf.DetectionType != "" && !strings.EqualFold(rec.DetectionType, vf.DetectionType) {
		return false
	}

	if vf.From != nil && rec.DetectedAt.Before(*vf.From) {
		return false
	}

	if vf.To != nil && rec.DetectedAt.After(*vf.To) {
		return false
	}

	if vf.Shift != "" {
		shift, ok := incident.ParseShift(vf.Shift)

		if !ok || rec.DetectedAt.IsZero() || incident.ShiftOf(rec.DetectedAt.Hour()) != shift {
			return false
		}
	}

	return true
}

func Filter(list []incident.Record, vf ViewFilter) []incident.Record {
	return lo.Filter(list, func(rec incident.Record, _ int) bool {
		return vf.Match(rec)
	})
}

// Page returns the zero-indexed page of the given size and the total number
// of pages.
func Page(list []incident.Record, page, size int) ([]incident.Record, int) {
	if size <= 0 {
		return list, 1
	}

	numPages := (len(list) + size - 1) / size

	if page < 0 || page >= numPages {
		return []incident.Record{}, numPages
	}

	end := (page + 1) * size

	if end > len(list) {
		end = len(list)
	}

	return list[page*size : end], numPages
}

// Summary is the executive KPI block.
type Summary struct {
	TotalCount     int            `json:"total_count"`
	Cached         int            `json:"cached"`
	ActiveCritical int            `json:"active_critical"`
	ByStatus       map[string]int `json:"by_status"`
	BySeverity     map[string]int `json:"by_severity"`
	ByZone         map[string]int `json:"by_zone"`
}

func Summarize(list []incident.Record, totalCount int) *Summary {
	res := &Summary{
		TotalCount: totalCount,
		Cached:     len(list),
		ByStatus:   make(map[string]int),
		BySeverity: make(map[string]int),
		ByZone:     make(map[string]int),
	}

	for _, rec := range list {
		status := rec.Status()
		severity := rec.Severity()

		res.ByStatus[string(status)]++
		res.BySeverity[string(severity)]++

		zone := strings.TrimSpace(rec.Metadata.Zone)

		if zone == "" {
			zone = "unassigned"
		}

		res.ByZone[zone]++

		if status == incident.StatusActive && severity == incident.SeverityCritical {
			res.ActiveCritical++
		}
	}

	return res
}

// Notifications returns the n most recent open (ACTIVE or PENDING)
// incidents, as shown by the header notification panel.
func Notifications(list []incident.Record, n int) []incident.Record {
	open := lo.Filter(list, func(rec incident.Record, _ int) bool {
		return rec.Status().IsOpen()
	})

	if n > 0 && len(open) > n {
		open = open[:n]
	}

	return open
}

func FindByEventID(list []incident.Record, eventID string) (incident.Record, bool) {
	return lo.Find(list, func(rec incident.Record) bool {
		return rec.EventID == eventID
	})
}
