package instance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/isafetyrobo/safety-agent/api/server/config"
	"github.com/isafetyrobo/safety-agent/api/server/types"
	"github.com/isafetyrobo/safety-agent/internal/logger"
	"github.com/isafetyrobo/safety-agent/pkg/instance"
	"github.com/isafetyrobo/safety-agent/pkg/logstore"
	"github.com/isafetyrobo/safety-agent/pkg/logstore/memorystore"
	"github.com/isafetyrobo/safety-agent/pkg/vision"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVision struct {
	mu        sync.Mutex
	remote    []vision.Instance
	listErr   error
	startErr  error
	started   map[string]vision.StartConfig
	stopCalls int
}

func (f *fakeVision) ListAllInstances(ctx context.Context, accountIDs []string) ([]vision.Instance, error) {
	return f.remote, f.listErr
}

func (f *fakeVision) Start(ctx context.Context, moduleID, instanceID string, cfg vision.StartConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.startErr != nil {
		return f.startErr
	}

	f.started[instanceID] = cfg

	return nil
}

func (f *fakeVision) Stop(ctx context.Context, moduleID, instanceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stopCalls++

	return nil
}

func (f *fakeVision) GetInstance(ctx context.Context, moduleID, instanceID string) (*vision.Instance, error) {
	return &vision.Instance{
		InstanceID: instanceID,
		ModuleID:   moduleID,
		VideoURL:   "https://videos.example.com/" + instanceID + ".mp4",
	}, nil
}

type tester struct {
	vision *fakeVision
	store  *memorystore.MemoryStore
	router http.Handler
}

func setup(t *testing.T) *tester {
	t.Helper()

	fv := &fakeVision{started: make(map[string]vision.StartConfig)}

	store, err := memorystore.New("detections", memorystore.Options{Dir: t.TempDir()})
	require.NoError(t, err)

	manager := instance.NewManager(fv, nil, nil, logger.NewNop(), nil)

	conf := &config.Config{
		Logger:     logger.NewNop(),
		Context:    context.Background(),
		Instances:  manager,
		Vision:     fv,
		AccountIDs: []string{"1"},
		LogStore:   store,
	}

	r := chi.NewRouter()

	r.Method(http.MethodGet, "/instances", NewListInstancesHandler(conf))
	r.Method(http.MethodPost, "/instances/{module_id}/{instance_id}/start", NewStartInstanceHandler(conf))
	r.Method(http.MethodPost, "/instances/{instance_id}/stop", NewStopInstanceHandler(conf))
	r.Method(http.MethodGet, "/instances/{instance_id}/events", NewListInstanceEventsHandler(conf))

	return &tester{vision: fv, store: store, router: r}
}

func (tr *tester) do(method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	tr.router.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))

	return rec
}

func TestStartInstanceAppliesDefaults(t *testing.T) {
	tr := setup(t)

	rec := tr.do(http.MethodPost, "/instances/m1/i1/start", `{"people_threshold": 4, "module_name": "Crowd Detection"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	res := &types.InstanceResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), res))

	assert.Equal(t, instance.StateRunning, res.Instance.State)
	assert.Equal(t, vision.ModuleCrowd, res.Instance.Kind)
	assert.Equal(t, "https://videos.example.com/i1.mp4", res.Instance.VideoURL)

	cfg := tr.vision.started["i1"]

	assert.Equal(t, 4, cfg.PeopleThreshold)
	assert.Equal(t, vision.DefaultStartConfig().Conf, cfg.Conf)
	assert.Equal(t, vision.DefaultStartConfig().SkipFrames, cfg.SkipFrames)
}

func TestStartInstanceTwiceConflicts(t *testing.T) {
	tr := setup(t)

	require.Equal(t, http.StatusOK, tr.do(http.MethodPost, "/instances/m1/i1/start", `{}`).Code)
	assert.Equal(t, http.StatusConflict, tr.do(http.MethodPost, "/instances/m1/i1/start", `{}`).Code)
}

func TestStartInstanceRejectsInvalidConfig(t *testing.T) {
	tr := setup(t)

	assert.Equal(t, http.StatusBadRequest, tr.do(http.MethodPost, "/instances/m1/i1/start", `{"conf": 3}`).Code)
	assert.Empty(t, tr.vision.started)
}

func TestStartInstanceUpstreamFailure(t *testing.T) {
	tr := setup(t)
	tr.vision.startErr = errors.New("vision api unavailable")

	assert.Equal(t, http.StatusBadGateway, tr.do(http.MethodPost, "/instances/m1/i1/start", `{}`).Code)
}

func TestStopInstance(t *testing.T) {
	tr := setup(t)

	assert.Equal(t, http.StatusNotFound, tr.do(http.MethodPost, "/instances/i1/stop", "").Code)

	require.Equal(t, http.StatusOK, tr.do(http.MethodPost, "/instances/m1/i1/start", `{}`).Code)
	assert.Equal(t, http.StatusNoContent, tr.do(http.MethodPost, "/instances/i1/stop", "").Code)
	assert.Equal(t, 1, tr.vision.stopCalls)

	// stopped instances are forgotten
	assert.Equal(t, http.StatusNotFound, tr.do(http.MethodPost, "/instances/i1/stop", "").Code)
}

func TestListInstancesJoinsLocalState(t *testing.T) {
	tr := setup(t)
	tr.vision.remote = []vision.Instance{
		{InstanceID: "i1", ModuleID: "m1", Name: "Gate"},
		{InstanceID: "i2", ModuleID: "m1", Name: "Dock"},
	}

	require.Equal(t, http.StatusOK, tr.do(http.MethodPost, "/instances/m1/i2/start", `{}`).Code)
	require.Equal(t, http.StatusOK, tr.do(http.MethodPost, "/instances/m9/i9/start", `{}`).Code)

	rec := tr.do(http.MethodGet, "/instances", "")
	require.Equal(t, http.StatusOK, rec.Code)

	res := &types.ListInstancesResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), res))

	require.Len(t, res.Instances, 3)

	assert.Equal(t, instance.StateStopped, res.Instances[0].State)
	assert.Equal(t, instance.StateRunning, res.Instances[1].State)
	assert.Equal(t, "i9", res.Instances[2].InstanceID)
	assert.Equal(t, instance.StateRunning, res.Instances[2].State)

	tr.vision.listErr = errors.New("timeout")

	assert.Equal(t, http.StatusBadGateway, tr.do(http.MethodGet, "/instances", "").Code)
}

func TestListInstanceEvents(t *testing.T) {
	tr := setup(t)
	labels := map[string]string{logstore.InstanceLabel: "i1"}
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, tr.store.Push(labels, `{"severity":"high"}`, base))
	require.NoError(t, tr.store.Push(labels, `not json`, base.Add(time.Second)))
	require.NoError(t, tr.store.Push(labels, `{"severity":"low"}`, base.Add(2*time.Second)))

	rec := tr.do(http.MethodGet, "/instances/i1/events?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	res := &types.ListInstanceEventsResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), res))

	require.Len(t, res.Events, 2)
	assert.JSONEq(t, `"not json"`, string(res.Events[0].Event))
	assert.JSONEq(t, `{"severity":"low"}`, string(res.Events[1].Event))
}
