package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/isafetyrobo/safety-agent/pkg/feed"
	"github.com/isafetyrobo/safety-agent/pkg/incident"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ feed.SnapshotCache = (*Client)(nil)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client := NewClient("localhost", "6379", "", "", 0, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		client.Close()
		t.Skipf("no redis server available: %v", err)
	}

	client.key = fmt.Sprintf("%s:test:%d", snapshotKey, time.Now().UnixNano())

	t.Cleanup(func() {
		client.Clear(context.Background())
		client.Close()
	})

	return client
}

func TestLoadMissingSnapshot(t *testing.T) {
	client := newTestClient(t)

	snap, err := client.Load(context.Background())

	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestSaveAndLoadSnapshot(t *testing.T) {
	client := newTestClient(t)

	err := client.Save(context.Background(), &feed.PersistedSnapshot{
		Version:    feed.SchemaVersion,
		TotalCount: 42,
		SavedAt:    time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC),
		Incidents: []incident.Record{
			{ID: 5, EventID: "evt-5", Metadata: incident.Metadata{Severity: "HIGH"}},
			{ID: 4, EventID: "evt-4"},
		},
	})
	require.NoError(t, err)

	snap, err := client.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap)

	assert.Equal(t, 42, snap.TotalCount)
	require.Len(t, snap.Incidents, 2)
	assert.Equal(t, int64(5), snap.Incidents[0].ID)
	assert.Equal(t, incident.SeverityHigh, snap.Incidents[0].Severity())

	ttl, err := client.client.TTL(context.Background(), client.key).Result()
	require.NoError(t, err)
	assert.True(t, ttl > 0, "snapshot should expire")
}

func TestLoadSnapshotWithOtherVersion(t *testing.T) {
	client := newTestClient(t)

	require.NoError(t, client.Save(context.Background(), &feed.PersistedSnapshot{Version: feed.SchemaVersion + 1}))

	_, err := client.Load(context.Background())

	assert.ErrorIs(t, err, feed.ErrSchemaVersion)
}
