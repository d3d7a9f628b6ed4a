package incident

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/isafetyrobo/safety-agent/api/server/config"
	"github.com/isafetyrobo/safety-agent/api/server/types"
	"github.com/isafetyrobo/safety-agent/internal/logger"
	"github.com/isafetyrobo/safety-agent/pkg/feed"
	"github.com/isafetyrobo/safety-agent/pkg/incident"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopFetcher struct{}

func (noopFetcher) Fetch(ctx context.Context, page, limit int) (*incident.Envelope, error) {
	return &incident.Envelope{}, nil
}

func record(id int64, status, severity, zone string, hour int) incident.Record {
	return incident.Record{
		ID:            id,
		EventID:       "evt-" + string(rune('a'+id)),
		DetectionType: "ppe",
		DetectedAt:    incident.Timestamp{Time: time.Date(2024, 3, 1, hour, 0, 0, 0, time.UTC)},
		Metadata: incident.Metadata{
			Status:   status,
			Severity: severity,
			Zone:     zone,
		},
	}
}

func newTestRouter(t *testing.T, records ...incident.Record) http.Handler {
	t.Helper()

	cache := feed.NewMemoryCache()

	require.NoError(t, cache.Save(context.Background(), &feed.PersistedSnapshot{
		Version:    feed.SchemaVersion,
		TotalCount: 42,
		Incidents:  records,
	}))

	f := feed.New(noopFetcher{}, cache, logger.NewNop(), feed.Options{})
	require.NoError(t, f.LoadInitial(context.Background()))

	conf := &config.Config{
		Logger:  logger.NewNop(),
		Context: context.Background(),
		Feed:    f,
	}

	r := chi.NewRouter()

	r.Method(http.MethodGet, "/incidents", NewListIncidentsHandler(conf))
	r.Method(http.MethodGet, "/incidents/summary", NewGetSummaryHandler(conf))
	r.Method(http.MethodGet, "/incidents/notifications", NewListNotificationsHandler(conf))
	r.Method(http.MethodGet, "/incidents/{event_id}", NewGetIncidentHandler(conf))

	return r
}

func serve(t *testing.T, h http.Handler, target string, out interface{}) int {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	if out != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}

	return rec.Code
}

func TestListIncidentsFiltersAndPaginates(t *testing.T) {
	r := newTestRouter(t,
		record(1, "active", "critical", "Dock A", 8),
		record(2, "resolved", "low", "Dock A", 9),
		record(3, "ACTIVE", "high", "dock a", 10),
		record(4, "active", "critical", "Yard", 23),
	)

	res := &types.ListIncidentsResponse{}

	require.Equal(t, http.StatusOK, serve(t, r, "/incidents?status=active&zone=DOCK%20A&limit=1", res))

	assert.Equal(t, 2, res.Matched)
	assert.Equal(t, 42, res.TotalCount)
	assert.False(t, res.Loading)
	require.Len(t, res.Incidents, 1)
	assert.Equal(t, int64(1), res.Incidents[0].ID)
	assert.Equal(t, int64(2), res.Pagination.NumPages)
	assert.Equal(t, int64(1), res.Pagination.NextPage)

	res = &types.ListIncidentsResponse{}

	require.Equal(t, http.StatusOK, serve(t, r, "/incidents?status=active&zone=dock%20a&limit=1&page=1", res))
	require.Len(t, res.Incidents, 1)
	assert.Equal(t, int64(3), res.Incidents[0].ID)
}

func TestListIncidentsRejectsBadQueries(t *testing.T) {
	r := newTestRouter(t)

	assert.Equal(t, http.StatusBadRequest, serve(t, r, "/incidents?shift=lunch", nil))
	assert.Equal(t, http.StatusBadRequest, serve(t, r, "/incidents?limit=5000", nil))
}

func TestGetIncident(t *testing.T) {
	rec := record(1, "active", "critical", "Dock A", 8)
	r := newTestRouter(t, rec)

	res := &types.GetIncidentResponse{}

	require.Equal(t, http.StatusOK, serve(t, r, "/incidents/"+rec.EventID, res))
	assert.Equal(t, rec.ID, res.Incident.ID)
	assert.Equal(t, incident.ShiftOf(8), res.Shift)

	assert.Equal(t, http.StatusNotFound, serve(t, r, "/incidents/missing", nil))
}

func TestSummaryAndNotifications(t *testing.T) {
	r := newTestRouter(t,
		record(1, "active", "critical", "Dock A", 8),
		record(2, "pending", "medium", "", 9),
		record(3, "resolved", "critical", "Yard", 10),
	)

	summary := &types.IncidentSummaryResponse{}

	require.Equal(t, http.StatusOK, serve(t, r, "/incidents/summary", summary))
	assert.Equal(t, 42, summary.TotalCount)
	assert.Equal(t, 3, summary.Cached)
	assert.Equal(t, 1, summary.ActiveCritical)
	assert.Equal(t, 1, summary.ByZone["unassigned"])

	notifications := &types.ListNotificationsResponse{}

	require.Equal(t, http.StatusOK, serve(t, r, "/incidents/notifications", notifications))
	assert.Equal(t, 2, notifications.Open)
	require.Len(t, notifications.Notifications, 2)
	assert.Equal(t, int64(1), notifications.Notifications[0].ID)
}
