package incident

import (
	"net/http"

	"github.com/isafetyrobo/safety-agent/api/server/config"
	"github.com/isafetyrobo/safety-agent/api/server/shared"
	"github.com/isafetyrobo/safety-agent/api/server/types"
	"github.com/isafetyrobo/safety-agent/pkg/feed"
)

type GetSummaryHandler struct {
	resultWriter shared.ResultWriter
	config       *config.Config
}

func NewGetSummaryHandler(config *config.Config) *GetSummaryHandler {
	return &GetSummaryHandler{
		resultWriter: shared.NewDefaultResultWriter(config.Logger),
		config:       config,
	}
}

func (h *GetSummaryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snap := h.config.Feed.Snapshot()

	res := &types.IncidentSummaryResponse{
		Summary: feed.Summarize(snap.Incidents, snap.TotalCount),
		Loading: snap.Loading,
	}

	if !snap.LastRefresh.IsZero() {
		lastRefresh := snap.LastRefresh
		res.LastRefresh = &lastRefresh
	}

	h.resultWriter.WriteResult(w, r, res)
}
