package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/isafetyrobo/safety-agent/internal/logger"
	"github.com/isafetyrobo/safety-agent/pkg/incident"
	"github.com/isafetyrobo/safety-agent/pkg/metrics"
	"github.com/isafetyrobo/safety-agent/pkg/pulsar"
)

const (
	DefaultPageSize     = 10000
	DefaultPollInterval = 5 * time.Second
)

// PersistError is returned by Refresh when the merge succeeded in memory but
// the snapshot could not be saved.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("error persisting incident snapshot: %v", e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// Snapshot is an immutable view of the feed at one point in time.
type Snapshot struct {
	Incidents   []incident.Record
	TotalCount  int
	Loading     bool
	Running     bool
	LastRefresh time.Time
	LastError   string
}

// Update is delivered to subscribers after every successful merge. Added
// holds the records that were new in that merge, newest first. When a
// subscriber falls behind, pending updates are coalesced so that no added
// record is lost. Seeded is set when the merge filled an empty cache, so
// Added holds the backlog rather than newly detected incidents.
type Update struct {
	Snapshot Snapshot
	Added    []incident.Record
	Seeded   bool
}

type Options struct {
	PageSize     int
	PollInterval time.Duration
	Metrics      *metrics.Metrics
}

// Feed is the single owner of the incident polling loop. Every view of the
// agent reads from one Feed so that there is exactly one fetch/merge cycle
// against the persisted snapshot.
type Feed struct {
	fetcher  Fetcher
	cache    SnapshotCache
	logger   *logger.Logger
	metrics  *metrics.Metrics
	pageSize int
	interval time.Duration

	// refreshMu serializes refreshes coming from the poller and manual calls.
	refreshMu sync.Mutex

	mu          sync.RWMutex
	incidents   []incident.Record
	totalCount  int
	hasData     bool
	lastRefresh time.Time
	lastErr     error

	subMu       sync.Mutex
	subscribers map[int]chan Update
	nextSubID   int

	runMu  sync.Mutex
	pulsar *pulsar.Pulsar
	done   chan struct{}
}

func New(fetcher Fetcher, cache SnapshotCache, l *logger.Logger, opts Options) *Feed {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	return &Feed{
		fetcher:     fetcher,
		cache:       cache,
		logger:      l,
		metrics:     opts.Metrics,
		pageSize:    opts.PageSize,
		interval:    opts.PollInterval,
		subscribers: make(map[int]chan Update),
	}
}

// LoadInitial reads the persisted snapshot. A missing or incompatible
// snapshot leaves the feed empty and in the loading state.
func (f *Feed) LoadInitial(ctx context.Context) error {
	snap, err := f.cache.Load(ctx)

	if err != nil {
		if errors.Is(err, ErrSchemaVersion) {
			f.logger.Warn().Caller().Msgf("discarding persisted incident snapshot: %v", err)
			return nil
		}

		return fmt.Errorf("error loading persisted incident snapshot: %w", err)
	}

	if snap == nil {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.incidents = snap.Incidents
	f.totalCount = snap.TotalCount
	f.hasData = len(snap.Incidents) > 0
	f.lastRefresh = snap.SavedAt

	return nil
}

// Refresh fetches one page and merges it into the cache. On any failure the
// in-memory list and the persisted snapshot are left untouched.
func (f *Feed) Refresh(ctx context.Context) error {
	f.refreshMu.Lock()
	defer f.refreshMu.Unlock()

	env, err := f.fetcher.Fetch(ctx, 1, f.pageSize)

	if err != nil {
		f.mu.Lock()
		f.lastErr = err
		f.mu.Unlock()

		f.metrics.ObserveRefresh(false, 0, 0)

		return err
	}

	f.mu.RLock()
	current := f.incidents
	f.mu.RUnlock()

	added := Unseen(current, env.Incidents)
	merged := Merge(current, env.Incidents, f.pageSize)
	now := time.Now()

	persistErr := f.cache.Save(ctx, &PersistedSnapshot{
		Version:    SchemaVersion,
		TotalCount: env.Count,
		SavedAt:    now,
		Incidents:  merged,
	})

	f.mu.Lock()
	f.incidents = merged
	f.totalCount = env.Count
	f.hasData = true
	f.lastRefresh = now
	f.lastErr = nil
	f.mu.Unlock()

	f.metrics.ObserveRefresh(true, len(merged), len(added))

	f.publish(Update{
		Snapshot: f.Snapshot(),
		Added:    added,
		Seeded:   len(current) == 0,
	})

	if persistErr != nil {
		return &PersistError{Err: persistErr}
	}

	return nil
}

// Start begins periodic refreshes; the first refresh happens immediately.
// Starting a running feed is a no-op. The loop also ends when ctx is done.
func (f *Feed) Start(ctx context.Context) {
	f.runMu.Lock()
	defer f.runMu.Unlock()

	if f.pulsar != nil {
		return
	}

	p := pulsar.NewPulsarWithPeriod(f.interval)
	done := make(chan struct{})

	f.pulsar = p
	f.done = done

	go func() {
		defer close(done)

		defer func() {
			f.runMu.Lock()
			if f.pulsar == p {
				f.pulsar, f.done = nil, nil
			}
			f.runMu.Unlock()
		}()

		f.tick(ctx)

		pulses := p.Pulsate()

		for {
			select {
			case <-ctx.Done():
				p.Stop()
				return
			case _, ok := <-pulses:
				if !ok {
					return
				}

				f.tick(ctx)
			}
		}
	}()

	f.logger.Info().Caller().Msgf("incident feed polling started every %s", f.interval)
}

// Stop suspends periodic refreshes without clearing cached data and waits
// for an in-flight refresh to finish.
func (f *Feed) Stop() {
	f.runMu.Lock()
	p, done := f.pulsar, f.done
	f.pulsar, f.done = nil, nil
	f.runMu.Unlock()

	if p == nil {
		return
	}

	p.Stop()
	<-done

	f.logger.Info().Caller().Msg("incident feed polling stopped")
}

func (f *Feed) Running() bool {
	f.runMu.Lock()
	defer f.runMu.Unlock()

	return f.pulsar != nil
}

func (f *Feed) tick(ctx context.Context) {
	if err := f.Refresh(ctx); err != nil {
		f.logger.Error().Caller().Msgf("incident feed refresh failed, retrying next tick: %v", err)
	}
}

// Snapshot returns a copy of the current feed state.
func (f *Feed) Snapshot() Snapshot {
	running := f.Running()

	f.mu.RLock()
	defer f.mu.RUnlock()

	snap := Snapshot{
		Incidents:   append([]incident.Record(nil), f.incidents...),
		TotalCount:  f.totalCount,
		Loading:     !f.hasData,
		Running:     running,
		LastRefresh: f.lastRefresh,
	}

	if f.lastErr != nil {
		snap.LastError = f.lastErr.Error()
	}

	return snap
}

// Len returns the number of cached incidents.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return len(f.incidents)
}

// Window returns a copy of at most n cached incidents starting at first.
func (f *Feed) Window(first, n int) []incident.Record {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if first < 0 {
		first = 0
	}

	if first >= len(f.incidents) || n <= 0 {
		return []incident.Record{}
	}

	last := first + n

	if last > len(f.incidents) {
		last = len(f.incidents)
	}

	return append([]incident.Record(nil), f.incidents[first:last]...)
}

// Subscribe registers an observer of successful merges. The returned
// function unsubscribes and closes the channel.
func (f *Feed) Subscribe() (<-chan Update, func()) {
	f.subMu.Lock()
	defer f.subMu.Unlock()

	id := f.nextSubID
	f.nextSubID++

	ch := make(chan Update, 1)
	f.subscribers[id] = ch

	var once sync.Once

	return ch, func() {
		once.Do(func() {
			f.subMu.Lock()
			defer f.subMu.Unlock()

			delete(f.subscribers, id)
			close(ch)
		})
	}
}

func (f *Feed) publish(u Update) {
	f.subMu.Lock()
	defer f.subMu.Unlock()

	for _, ch := range f.subscribers {
		select {
		case ch <- u:
			continue
		default:
		}

		// the subscriber is behind: fold the pending update into this one
		select {
		case prev := <-ch:
			coalesced := u
			coalesced.Added = append(append([]incident.Record(nil), u.Added...), prev.Added...)
			coalesced.Seeded = u.Seeded || prev.Seeded
			ch <- coalesced
		default:
			ch <- u
		}
	}
}
