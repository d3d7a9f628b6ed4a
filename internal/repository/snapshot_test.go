package repository

import (
	"context"
	"testing"
	"time"

	"github.com/isafetyrobo/safety-agent/internal/models"
	"github.com/isafetyrobo/safety-agent/pkg/feed"
	"github.com/isafetyrobo/safety-agent/pkg/incident"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ feed.SnapshotCache = (*SnapshotRepository)(nil)

func TestLoadEmptySnapshot(t *testing.T) {
	tester := &tester{
		dbFileName: "./snapshot_empty_test.db",
	}

	setupTestEnv(tester, t)
	defer cleanup(tester, t)

	snap, err := tester.repo.Snapshot.Load(context.Background())

	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestSaveAndLoadSnapshotKeepsOrder(t *testing.T) {
	tester := &tester{
		dbFileName: "./snapshot_test.db",
	}

	setupTestEnv(tester, t)
	defer cleanup(tester, t)

	detectedAt := time.Date(2026, 10, 18, 9, 12, 45, 0, time.UTC)
	savedAt := time.Date(2026, 10, 18, 9, 13, 0, 0, time.UTC)

	snap := &feed.PersistedSnapshot{
		Version:    feed.SchemaVersion,
		TotalCount: 250,
		SavedAt:    savedAt,
		Incidents: []incident.Record{
			{
				ID:            9,
				EventID:       "evt-9",
				StreamID:      "cam-07",
				DetectionType: "no_helmet",
				DetectedAt:    incident.Timestamp{Time: detectedAt},
				Metadata: incident.Metadata{
					Label:      "No Helmet",
					Status:     "ACTIVE",
					Severity:   "critical",
					Confidence: 0.91,
					Zone:       "Blast Furnace",
				},
			},
			{ID: 3, EventID: "evt-3"},
			{ID: 7, EventID: "evt-7"},
		},
	}

	require.NoError(t, tester.repo.Snapshot.Save(context.Background(), snap))

	loaded, err := tester.repo.Snapshot.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, 250, loaded.TotalCount)
	assert.Equal(t, feed.SchemaVersion, loaded.Version)
	assert.Equal(t, savedAt.Unix(), loaded.SavedAt.Unix())
	require.Len(t, loaded.Incidents, 3)

	assert.Equal(t, int64(9), loaded.Incidents[0].ID)
	assert.Equal(t, int64(3), loaded.Incidents[1].ID)
	assert.Equal(t, int64(7), loaded.Incidents[2].ID)

	first := loaded.Incidents[0]

	assert.Equal(t, "evt-9", first.EventID)
	assert.Equal(t, "Blast Furnace", first.Metadata.Zone)
	assert.Equal(t, 0.91, first.Metadata.Confidence)
	assert.Equal(t, detectedAt.Unix(), first.DetectedAt.Unix())
	assert.True(t, loaded.Incidents[1].DetectedAt.IsZero())

	// a second save replaces the first one
	snap.Incidents = snap.Incidents[1:]
	snap.TotalCount = 2

	require.NoError(t, tester.repo.Snapshot.Save(context.Background(), snap))

	loaded, err = tester.repo.Snapshot.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, loaded.TotalCount)
	require.Len(t, loaded.Incidents, 2)
	assert.Equal(t, int64(3), loaded.Incidents[0].ID)
}

func TestLoadSnapshotWithOtherSchemaVersion(t *testing.T) {
	tester := &tester{
		dbFileName: "./snapshot_version_test.db",
	}

	setupTestEnv(tester, t)
	defer cleanup(tester, t)

	require.NoError(t, tester.db.Create(&models.FeedState{
		FeedKey:       "incidents",
		SchemaVersion: feed.SchemaVersion + 1,
	}).Error)

	_, err := tester.repo.Snapshot.Load(context.Background())

	assert.ErrorIs(t, err, feed.ErrSchemaVersion)
}

func TestClearSnapshot(t *testing.T) {
	tester := &tester{
		dbFileName: "./snapshot_clear_test.db",
	}

	setupTestEnv(tester, t)
	defer cleanup(tester, t)

	require.NoError(t, tester.repo.Snapshot.Save(context.Background(), &feed.PersistedSnapshot{
		Version:   feed.SchemaVersion,
		Incidents: []incident.Record{{ID: 1}},
	}))

	require.NoError(t, tester.repo.Snapshot.Clear(context.Background()))

	snap, err := tester.repo.Snapshot.Load(context.Background())

	require.NoError(t, err)
	assert.Nil(t, snap)
}
