package feed

import (
	"net/http"

	"github.com/isafetyrobo/safety-agent/api/server/config"
	"github.com/isafetyrobo/safety-agent/api/server/shared"
	"github.com/isafetyrobo/safety-agent/api/server/types"
	"github.com/isafetyrobo/safety-agent/pkg/feed"
)

type GetStatusHandler struct {
	resultWriter shared.ResultWriter
	config       *config.Config
}

func NewGetStatusHandler(config *config.Config) *GetStatusHandler {
	return &GetStatusHandler{
		resultWriter: shared.NewDefaultResultWriter(config.Logger),
		config:       config,
	}
}

func (h *GetStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.resultWriter.WriteResult(w, r, statusOf(h.config.Feed.Snapshot()))
}

func statusOf(snap feed.Snapshot) *types.FeedStatusResponse {
	res := &types.FeedStatusResponse{
		Running:    snap.Running,
		Loading:    snap.Loading,
		Cached:     len(snap.Incidents),
		TotalCount: snap.TotalCount,
		LastError:  snap.LastError,
	}

	if !snap.LastRefresh.IsZero() {
		lastRefresh := snap.LastRefresh
		res.LastRefresh = &lastRefresh
	}

	return res
}
