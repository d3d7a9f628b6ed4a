package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/isafetyrobo/safety-agent/api/server/config"
	"github.com/isafetyrobo/safety-agent/api/server/types"
	"github.com/isafetyrobo/safety-agent/internal/logger"
	"github.com/isafetyrobo/safety-agent/pkg/autoscroll"
	"github.com/isafetyrobo/safety-agent/pkg/feed"
	"github.com/isafetyrobo/safety-agent/pkg/incident"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopFetcher struct{}

func (noopFetcher) Fetch(ctx context.Context, page, limit int) (*incident.Envelope, error) {
	return &incident.Envelope{}, nil
}

func newConfig(t *testing.T, n int) *config.Config {
	t.Helper()

	records := make([]incident.Record, 0, n)

	for i := 0; i < n; i++ {
		records = append(records, incident.Record{ID: int64(i + 1)})
	}

	cache := feed.NewMemoryCache()

	require.NoError(t, cache.Save(context.Background(), &feed.PersistedSnapshot{
		Version:   feed.SchemaVersion,
		Incidents: records,
	}))

	f := feed.New(noopFetcher{}, cache, logger.NewNop(), feed.Options{})
	require.NoError(t, f.LoadInitial(context.Background()))

	return &config.Config{
		Logger:    logger.NewNop(),
		Feed:      f,
		LiveBoard: autoscroll.New(autoscroll.Options{}),
	}
}

func getBoard(t *testing.T, h *GetBoardHandler, now time.Time) *types.LiveBoardResponse {
	t.Helper()

	h.now = func() time.Time { return now }

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	res := &types.LiveBoardResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), res))

	return res
}

func TestBoardScrollsThroughRows(t *testing.T) {
	conf := newConfig(t, 30)
	h := NewGetBoardHandler(conf)
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	res := getBoard(t, h, start)

	assert.Equal(t, autoscroll.AutoScrolling, res.State)
	assert.Equal(t, 0, res.FirstRow)
	require.NotEmpty(t, res.Rows)
	assert.Equal(t, int64(1), res.Rows[0].ID)

	// 0.03 px/ms for 3.5s moves a little over two rows down
	res = getBoard(t, h, start.Add(3500*time.Millisecond))

	assert.Equal(t, 2, res.FirstRow)
	assert.Equal(t, int64(3), res.Rows[0].ID)
	assert.LessOrEqual(t, len(res.Rows), VisibleRows+1)
}

func TestBoardFitsInViewportDoesNotScroll(t *testing.T) {
	conf := newConfig(t, 3)
	h := NewGetBoardHandler(conf)
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	getBoard(t, h, start)
	res := getBoard(t, h, start.Add(time.Minute))

	assert.Equal(t, 0, res.FirstRow)
	assert.Len(t, res.Rows, 3)
}

func TestInteractHandsControlToUser(t *testing.T) {
	conf := newConfig(t, 30)
	board := NewGetBoardHandler(conf)
	interact := NewInteractHandler(conf)
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	getBoard(t, board, now)

	interact.now = func() time.Time { return now }

	rec := httptest.NewRecorder()
	interact.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/live/interact", strings.NewReader(`{}`)))

	require.Equal(t, http.StatusNoContent, rec.Code)

	res := getBoard(t, board, now.Add(time.Second))
	assert.Equal(t, autoscroll.UserControlled, res.State)
	assert.Equal(t, 0, res.FirstRow)
}
