package instance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/isafetyrobo/safety-agent/internal/logger"
	"github.com/isafetyrobo/safety-agent/internal/models"
	"github.com/isafetyrobo/safety-agent/pkg/detection"
	"github.com/isafetyrobo/safety-agent/pkg/metrics"
	"github.com/isafetyrobo/safety-agent/pkg/vision"
)

// Controller is the part of the vision control API the manager drives.
type Controller interface {
	Start(ctx context.Context, moduleID, instanceID string, cfg vision.StartConfig) error
	Stop(ctx context.Context, moduleID, instanceID string) error
	GetInstance(ctx context.Context, moduleID, instanceID string) (*vision.Instance, error)
}

// StateStore persists which instances were left running.
type StateStore interface {
	SaveInstanceState(state *models.InstanceState) (*models.InstanceState, error)
	ListRunningInstanceStates() ([]*models.InstanceState, error)
	DeleteInstanceState(instanceID string) error
}

// Subscriber hands out per-instance detection frames.
type Subscriber interface {
	Subscribe(instanceID string) (<-chan *detection.Frame, func())
}

// Ref identifies the instance to start.
type Ref struct {
	ModuleID   string
	InstanceID string
	Name       string
	Kind       vision.ModuleKind
}

// LastDetection summarizes the most recent frame of a running instance.
type LastDetection struct {
	Severity      string    `json:"severity"`
	PeopleCount   int       `json:"people_count"`
	IsOvercrowded bool      `json:"is_overcrowded"`
	Detections    int       `json:"detections"`
	Timestamp     time.Time `json:"timestamp"`
}

// Tracked is the local view of one instance.
type Tracked struct {
	InstanceID    string            `json:"instance_id"`
	ModuleID      string            `json:"module_id"`
	Name          string            `json:"name"`
	Kind          vision.ModuleKind `json:"kind"`
	State         State             `json:"state"`
	VideoURL      string            `json:"video_url"`
	LastError     string            `json:"last_error,omitempty"`
	StartedAt     *time.Time        `json:"started_at,omitempty"`
	UpdatedAt     time.Time         `json:"updated_at"`
	LastDetection *LastDetection    `json:"last_detection,omitempty"`
}

type tracked struct {
	Tracked

	unsubscribe func()
}

// Manager owns the lifecycle of vision instances. Local state only changes
// on confirmed responses from the control API.
type Manager struct {
	controller Controller
	store      StateStore
	stream     Subscriber
	logger     *logger.Logger
	metrics    *metrics.Metrics

	mu        sync.Mutex
	instances map[string]*tracked
}

func NewManager(controller Controller, store StateStore, stream Subscriber, l *logger.Logger, m *metrics.Metrics) *Manager {
	return &Manager{
		controller: controller,
		store:      store,
		stream:     stream,
		logger:     l,
		metrics:    m,
		instances:  make(map[string]*tracked),
	}
}

// Start asks the control API to start ref. On success the instance is
// RUNNING, persisted, subscribed to the detection stream and its detail is
// resolved. The detail supplies the video URL and, when it names the module,
// the module kind. A failed resolution only leaves the URL empty.
func (m *Manager) Start(ctx context.Context, ref Ref, cfg vision.StartConfig) (Tracked, error) {
	m.mu.Lock()

	entry, ok := m.instances[ref.InstanceID]

	from := StateStopped

	if ok {
		from = entry.State
	}

	if !from.CanTransition(StateStarting) {
		m.mu.Unlock()
		return Tracked{}, &TransitionError{InstanceID: ref.InstanceID, From: from, To: StateStarting}
	}

	if !ok {
		entry = &tracked{}
		m.instances[ref.InstanceID] = entry
	}

	entry.InstanceID = ref.InstanceID
	entry.ModuleID = ref.ModuleID
	entry.Name = ref.Name
	entry.Kind = ref.Kind
	entry.LastError = ""

	m.setStateLocked(entry, StateStarting)
	m.mu.Unlock()

	if err := m.controller.Start(ctx, ref.ModuleID, ref.InstanceID, cfg); err != nil {
		m.mu.Lock()
		entry.LastError = err.Error()
		m.setStateLocked(entry, StateStartFailed)
		res := entry.Tracked
		m.mu.Unlock()

		m.logger.Error().Caller().Msgf("%v", err)

		return res, err
	}

	now := time.Now()

	m.mu.Lock()
	entry.StartedAt = &now
	m.setStateLocked(entry, StateRunning)
	m.persist(entry.Tracked, true)
	m.mu.Unlock()

	inst := m.resolveDetail(ctx, ref.ModuleID, ref.InstanceID)

	m.mu.Lock()
	if inst != nil {
		entry.VideoURL = inst.VideoURL

		// the module name reported by the control API decides the kind
		if inst.ModuleName != "" && inst.Kind != entry.Kind {
			entry.Kind = inst.Kind

			if m.instances[ref.InstanceID] == entry && entry.State == StateRunning {
				m.persist(entry.Tracked, true)
			}
		}
	}
	m.mu.Unlock()

	m.watch(entry)

	return m.snapshot(entry), nil
}

// Stop asks the control API to stop an instance. Success forgets every
// piece of local state about it.
func (m *Manager) Stop(ctx context.Context, instanceID string) error {
	m.mu.Lock()

	entry, ok := m.instances[instanceID]

	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, instanceID)
	}

	if !entry.State.CanTransition(StateStopping) {
		from := entry.State
		m.mu.Unlock()

		return &TransitionError{InstanceID: instanceID, From: from, To: StateStopping}
	}

	m.setStateLocked(entry, StateStopping)
	moduleID := entry.ModuleID
	m.mu.Unlock()

	if err := m.controller.Stop(ctx, moduleID, instanceID); err != nil {
		m.mu.Lock()
		entry.LastError = err.Error()
		m.setStateLocked(entry, StateStopFailed)
		m.mu.Unlock()

		m.logger.Error().Caller().Msgf("%v", err)

		return err
	}

	m.forget(instanceID)

	return nil
}

// Restore reconciles the persisted running instances against the control
// API. Instances that cannot be fetched or are no longer running are
// dropped; the rest are tracked as RUNNING again.
func (m *Manager) Restore(ctx context.Context) error {
	if m.store == nil {
		return nil
	}

	states, err := m.store.ListRunningInstanceStates()

	if err != nil {
		return fmt.Errorf("error listing persisted instance states: %w", err)
	}

	for _, state := range states {
		inst, err := m.controller.GetInstance(ctx, state.ModuleID, state.InstanceID)

		if inst == nil || !inst.IsRunning() {
			m.logger.Info().Caller().Msgf("dropping persisted instance %s: not running remotely (%v)", state.InstanceID, err)

			if err := m.store.DeleteInstanceState(state.InstanceID); err != nil {
				m.logger.Error().Caller().Msgf("error deleting instance state %s: %v", state.InstanceID, err)
			}

			continue
		}

		if err != nil {
			m.logger.Warn().Caller().Msgf("restored instance %s without video: %v", state.InstanceID, err)
		}

		kind := inst.Kind

		if state.IsCrowd {
			kind = vision.ModuleCrowd
		}

		entry := &tracked{
			Tracked: Tracked{
				InstanceID: state.InstanceID,
				ModuleID:   state.ModuleID,
				Name:       state.Name,
				Kind:       kind,
				VideoURL:   inst.VideoURL,
				StartedAt:  state.StartedAt,
			},
		}

		m.mu.Lock()
		if _, exists := m.instances[state.InstanceID]; exists {
			m.mu.Unlock()
			continue
		}

		m.instances[state.InstanceID] = entry
		m.setStateLocked(entry, StateRunning)
		m.mu.Unlock()

		m.watch(entry)

		m.logger.Info().Caller().Msgf("restored running instance %s", state.InstanceID)
	}

	return nil
}

// List returns the tracked instances ordered by id.
func (m *Manager) List() []Tracked {
	m.mu.Lock()
	defer m.mu.Unlock()

	res := make([]Tracked, 0, len(m.instances))

	for _, entry := range m.instances {
		res = append(res, copyTracked(entry.Tracked))
	}

	sort.Slice(res, func(i, j int) bool {
		return res[i].InstanceID < res[j].InstanceID
	})

	return res
}

func (m *Manager) Get(instanceID string) (Tracked, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.instances[instanceID]

	if !ok {
		return Tracked{}, fmt.Errorf("%w: %s", ErrNotFound, instanceID)
	}

	return copyTracked(entry.Tracked), nil
}

// Close drops every detection subscription without touching remote or
// persisted state.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, entry := range m.instances {
		if entry.unsubscribe != nil {
			entry.unsubscribe()
			entry.unsubscribe = nil
		}
	}
}

// resolveDetail fetches the instance detail. The result may be nil, or
// carry no video URL, when the detail could not be fully resolved.
func (m *Manager) resolveDetail(ctx context.Context, moduleID, instanceID string) *vision.Instance {
	inst, err := m.controller.GetInstance(ctx, moduleID, instanceID)

	if err != nil {
		if errors.Is(err, vision.ErrNoVideo) {
			m.logger.Warn().Caller().Msgf("%v", err)
		} else {
			m.logger.Error().Caller().Msgf("error resolving video for instance %s: %v", instanceID, err)
		}
	}

	return inst
}

func (m *Manager) watch(entry *tracked) {
	if m.stream == nil {
		return
	}

	frames, unsubscribe := m.stream.Subscribe(entry.InstanceID)

	m.mu.Lock()

	if m.instances[entry.InstanceID] != entry || entry.State != StateRunning {
		m.mu.Unlock()
		unsubscribe()

		return
	}

	if entry.unsubscribe != nil {
		entry.unsubscribe()
	}

	entry.unsubscribe = unsubscribe
	m.mu.Unlock()

	go func() {
		for frame := range frames {
			m.mu.Lock()
			entry.LastDetection = &LastDetection{
				Severity:      string(frame.NormalizedSeverity()),
				PeopleCount:   frame.PeopleCount,
				IsOvercrowded: frame.IsOvercrowded,
				Detections:    len(frame.Detections) + len(frame.Details),
				Timestamp:     frame.Timestamp,
			}
			m.mu.Unlock()
		}
	}()
}

func (m *Manager) forget(instanceID string) {
	m.mu.Lock()

	entry, ok := m.instances[instanceID]

	if ok {
		delete(m.instances, instanceID)
	}

	m.reportLocked()
	m.mu.Unlock()

	if ok && entry.unsubscribe != nil {
		entry.unsubscribe()
	}

	if m.store != nil {
		if err := m.store.DeleteInstanceState(instanceID); err != nil {
			m.logger.Error().Caller().Msgf("error deleting instance state %s: %v", instanceID, err)
		}
	}
}

func (m *Manager) persist(t Tracked, running bool) {
	if m.store == nil {
		return
	}

	_, err := m.store.SaveInstanceState(&models.InstanceState{
		InstanceID: t.InstanceID,
		ModuleID:   t.ModuleID,
		Name:       t.Name,
		IsCrowd:    t.Kind == vision.ModuleCrowd,
		Running:    running,
		StartedAt:  t.StartedAt,
	})

	if err != nil {
		m.logger.Error().Caller().Msgf("error persisting instance state %s: %v", t.InstanceID, err)
	}
}

func (m *Manager) snapshot(entry *tracked) Tracked {
	m.mu.Lock()
	defer m.mu.Unlock()

	return copyTracked(entry.Tracked)
}

func (m *Manager) setStateLocked(entry *tracked, state State) {
	entry.State = state
	entry.UpdatedAt = time.Now()

	m.reportLocked()
}

func (m *Manager) reportLocked() {
	counts := make(map[string]int, len(AllStates))

	for _, state := range AllStates {
		counts[string(state)] = 0
	}

	for _, entry := range m.instances {
		counts[string(entry.State)]++
	}

	m.metrics.SetInstanceStates(counts)
}

func copyTracked(t Tracked) Tracked {
	if t.LastDetection != nil {
		last := *t.LastDetection
		t.LastDetection = &last
	}

	return t
}
