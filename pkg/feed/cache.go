package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/isafetyrobo/safety-agent/pkg/incident"
)

// SchemaVersion is bumped whenever the shape of incident.Record changes in a
// way that makes previously persisted snapshots unreadable.
const SchemaVersion = 1

var ErrSchemaVersion = errors.New("persisted snapshot has an unsupported schema version")

// PersistedSnapshot is what a SnapshotCache stores between agent restarts.
type PersistedSnapshot struct {
	Version    int               `json:"version"`
	TotalCount int               `json:"total_count"`
	SavedAt    time.Time         `json:"saved_at"`
	Incidents  []incident.Record `json:"incidents"`
}

// SnapshotCache is the typed accessor for the persisted incident list. Load
// returns (nil, nil) when nothing has been saved yet and ErrSchemaVersion
// when the stored snapshot was written by an incompatible version.
type SnapshotCache interface {
	Load(ctx context.Context) (*PersistedSnapshot, error)
	Save(ctx context.Context, snap *PersistedSnapshot) error
	Clear(ctx context.Context) error
}

// CheckVersion is shared by the SnapshotCache implementations.
func CheckVersion(snap *PersistedSnapshot) error {
	if snap != nil && snap.Version != SchemaVersion {
		return ErrSchemaVersion
	}

	return nil
}

// MemoryCache keeps the snapshot in process memory.
type MemoryCache struct {
	mu   sync.Mutex
	snap *PersistedSnapshot
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) Load(ctx context.Context) (*PersistedSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snap == nil {
		return nil, nil
	}

	if err := CheckVersion(c.snap); err != nil {
		return nil, err
	}

	return copySnapshot(c.snap), nil
}

func (c *MemoryCache) Save(ctx context.Context, snap *PersistedSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snap = copySnapshot(snap)

	return nil
}

func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snap = nil

	return nil
}

func copySnapshot(snap *PersistedSnapshot) *PersistedSnapshot {
	res := *snap
	res.Incidents = append([]incident.Record(nil), snap.Incidents...)

	return &res
}
