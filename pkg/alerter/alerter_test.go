package alerter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/isafetyrobo/safety-agent/internal/adapter"
	"github.com/isafetyrobo/safety-agent/internal/envconf"
	"github.com/isafetyrobo/safety-agent/internal/logger"
	"github.com/isafetyrobo/safety-agent/internal/repository"
	"github.com/isafetyrobo/safety-agent/pkg/feed"
	"github.com/isafetyrobo/safety-agent/pkg/httpclient"
	"github.com/isafetyrobo/safety-agent/pkg/incident"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type webhook struct {
	mu       sync.Mutex
	payloads []Payload
	status   int
	calls    int
}

func (h *webhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.calls++

	if h.status != 0 {
		w.WriteHeader(h.status)
		return
	}

	p := Payload{}

	if err := json.NewDecoder(r.Body).Decode(&p); err == nil {
		h.payloads = append(h.payloads, p)
	}
}

func (h *webhook) SetStatus(status int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.status = status
}

func (h *webhook) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.calls
}

func (h *webhook) Received() []Payload {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]Payload(nil), h.payloads...)
}

func setupAlerter(t *testing.T) (*Alerter, *webhook, *repository.Repository) {
	t.Helper()

	db, err := adapter.New(&envconf.DBConf{
		SQLLite:     true,
		SQLLitePath: filepath.Join(t.TempDir(), "alerter_test.db"),
	})
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(db, false))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	hook := &webhook{}
	server := httptest.NewServer(hook)
	t.Cleanup(server.Close)

	repo := repository.NewRepository(db)

	return New(NewWebhookNotifier(&httpclient.HTTPClientConf{}, server.URL), repo.Alert, logger.NewNop(), nil), hook, repo
}

func record(id int64, severity, status, zone string) incident.Record {
	return incident.Record{
		ID:      id,
		EventID: "evt-" + severity,
		Metadata: incident.Metadata{
			Severity: severity,
			Status:   status,
			Zone:     zone,
		},
	}
}

func TestCriticalAlertsOncePerIncident(t *testing.T) {
	a, hook, _ := setupAlerter(t)

	rec := record(1, "critical", "active", "Blast Furnace")

	require.NoError(t, a.HandleIncident(context.Background(), rec))
	require.NoError(t, a.HandleIncident(context.Background(), rec))
	require.NoError(t, a.HandleIncident(context.Background(), record(2, "CRITICAL", "ACTIVE", "Blast Furnace")))

	received := hook.Received()

	require.Len(t, received, 2)
	assert.Equal(t, int64(1), received[0].IncidentID)
	assert.Equal(t, "CRITICAL", received[0].Severity)
	assert.NotEmpty(t, received[0].AlertID)
	assert.NotEqual(t, received[0].AlertID, received[1].AlertID)
}

func TestHighAlertsThrottledPerZone(t *testing.T) {
	a, hook, _ := setupAlerter(t)

	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	require.NoError(t, a.HandleIncident(context.Background(), record(1, "high", "ACTIVE", "Yard")))
	require.NoError(t, a.HandleIncident(context.Background(), record(2, "HIGH", "PENDING", " yard ")))
	require.NoError(t, a.HandleIncident(context.Background(), record(3, "HIGH", "ACTIVE", "Dock")))

	assert.Len(t, hook.Received(), 2, "second yard alert within the hour is throttled")

	now = now.Add(time.Hour)

	require.NoError(t, a.HandleIncident(context.Background(), record(4, "HIGH", "ACTIVE", "Yard")))

	received := hook.Received()

	require.Len(t, received, 3)
	assert.Equal(t, int64(4), received[2].IncidentID)
}

func TestLowSeverityAndResolvedAreIgnored(t *testing.T) {
	a, hook, _ := setupAlerter(t)

	require.NoError(t, a.HandleIncident(context.Background(), record(1, "MEDIUM", "ACTIVE", "Yard")))
	require.NoError(t, a.HandleIncident(context.Background(), record(2, "LOW", "ACTIVE", "Yard")))
	require.NoError(t, a.HandleIncident(context.Background(), record(3, "CRITICAL", "resolved", "Yard")))

	assert.Empty(t, hook.Received())
}

// batchFetcher serves the same incident page on every fetch.
type batchFetcher struct {
	mu    sync.Mutex
	batch []incident.Record
}

func (f *batchFetcher) Fetch(ctx context.Context, page, limit int) (*incident.Envelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return &incident.Envelope{Page: page, Limit: limit, Count: len(f.batch), Incidents: f.batch}, nil
}

func (f *batchFetcher) Set(batch ...incident.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.batch = batch
}

func newFeed(t *testing.T, fetcher feed.Fetcher, cached ...incident.Record) *feed.Feed {
	t.Helper()

	cache := feed.NewMemoryCache()

	if len(cached) > 0 {
		require.NoError(t, cache.Save(context.Background(), &feed.PersistedSnapshot{
			Version:    feed.SchemaVersion,
			TotalCount: len(cached),
			Incidents:  cached,
		}))
	}

	f := feed.New(fetcher, cache, logger.NewNop(), feed.Options{PageSize: 100})
	require.NoError(t, f.LoadInitial(context.Background()))

	return f
}

func TestFailedWebhookIsRetriedOnNextFeedUpdate(t *testing.T) {
	a, hook, repo := setupAlerter(t)

	old := record(1, "LOW", "ACTIVE", "Yard")
	critical := record(2, "CRITICAL", "ACTIVE", "Yard")

	fetcher := &batchFetcher{}
	fetcher.Set(critical, old)

	f := newFeed(t, fetcher, old)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, unsubscribe := f.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})

	go func() {
		defer close(done)
		a.Run(ctx, updates)
	}()

	hook.SetStatus(http.StatusServiceUnavailable)

	require.NoError(t, f.Refresh(ctx))

	require.Eventually(t, func() bool { return hook.Calls() == 1 }, 5*time.Second, 10*time.Millisecond)

	exists, err := repo.Alert.AlertExists(2)
	require.NoError(t, err)
	assert.False(t, exists, "a failed alert is not recorded")

	hook.SetStatus(0)

	// the same batch again: nothing is added, the failed alert is retried
	require.NoError(t, f.Refresh(ctx))

	require.Eventually(t, func() bool { return len(hook.Received()) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(2), hook.Received()[0].IncidentID)

	require.Eventually(t, func() bool {
		exists, err := repo.Alert.AlertExists(2)
		return err == nil && exists
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	// a later sighting of the delivered incident is not alerted again
	a.handleUpdate(context.Background(), feed.Update{Added: []incident.Record{critical}})

	assert.Equal(t, 2, hook.Calls())
	assert.Empty(t, a.pending)
}

func TestRetryIsDroppedWhenIncidentResolvesOrLeavesTheFeed(t *testing.T) {
	a, hook, _ := setupAlerter(t)

	hook.SetStatus(http.StatusServiceUnavailable)

	a.handleUpdate(context.Background(), feed.Update{
		Added: []incident.Record{
			record(3, "CRITICAL", "ACTIVE", "Yard"),
			record(2, "CRITICAL", "ACTIVE", "Dock"),
		},
	})

	assert.Len(t, a.pending, 2)
	assert.Equal(t, 2, hook.Calls())

	hook.SetStatus(0)

	a.handleUpdate(context.Background(), feed.Update{
		Snapshot: feed.Snapshot{
			Incidents: []incident.Record{record(3, "CRITICAL", "RESOLVED", "Yard")},
		},
	})

	assert.Empty(t, a.pending)
	assert.Empty(t, hook.Received())
}

func TestSeedingMergeDoesNotAlert(t *testing.T) {
	a, hook, repo := setupAlerter(t)

	fetcher := &batchFetcher{}
	fetcher.Set(
		record(3, "CRITICAL", "ACTIVE", "Yard"),
		record(2, "HIGH", "ACTIVE", "Dock"),
		record(1, "CRITICAL", "PENDING", "Dock"),
	)

	f := newFeed(t, fetcher)

	updates, unsubscribe := f.Subscribe()
	defer unsubscribe()

	require.NoError(t, f.Refresh(context.Background()))

	u := <-updates
	require.True(t, u.Seeded)
	a.handleUpdate(context.Background(), u)

	assert.Zero(t, hook.Calls(), "the backlog loaded into an empty cache is not alerted")

	exists, err := repo.Alert.AlertExists(3)
	require.NoError(t, err)
	assert.False(t, exists)

	fetcher.Set(
		record(4, "CRITICAL", "ACTIVE", "Yard"),
		record(3, "CRITICAL", "ACTIVE", "Yard"),
		record(2, "HIGH", "ACTIVE", "Dock"),
		record(1, "CRITICAL", "PENDING", "Dock"),
	)

	require.NoError(t, f.Refresh(context.Background()))
	a.handleUpdate(context.Background(), <-updates)

	received := hook.Received()

	require.Len(t, received, 1)
	assert.Equal(t, int64(4), received[0].IncidentID)
}

func TestRunConsumesFeedUpdates(t *testing.T) {
	a, hook, _ := setupAlerter(t)

	updates := make(chan feed.Update, 1)
	done := make(chan struct{})

	go func() {
		defer close(done)
		a.Run(context.Background(), updates)
	}()

	updates <- feed.Update{
		Added: []incident.Record{
			record(2, "CRITICAL", "ACTIVE", "Yard"),
			record(1, "LOW", "ACTIVE", "Yard"),
		},
	}

	close(updates)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("alerter did not stop")
	}

	received := hook.Received()

	require.Len(t, received, 1)
	assert.Equal(t, int64(2), received[0].IncidentID)
}
