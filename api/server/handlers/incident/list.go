package incident

import (
	"net/http"

	"github.com/isafetyrobo/safety-agent/api/server/config"
	"github.com/isafetyrobo/safety-agent/api/server/shared"
	"github.com/isafetyrobo/safety-agent/api/server/types"
	"github.com/isafetyrobo/safety-agent/pkg/feed"
)

type ListIncidentsHandler struct {
	decoderValidator shared.RequestDecoderValidator
	resultWriter     shared.ResultWriter
	config           *config.Config
}

func NewListIncidentsHandler(config *config.Config) *ListIncidentsHandler {
	return &ListIncidentsHandler{
		resultWriter:     shared.NewDefaultResultWriter(config.Logger),
		decoderValidator: shared.NewDefaultRequestDecoderValidator(config.Logger),
		config:           config,
	}
}

func (h *ListIncidentsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := &types.ListIncidentsRequest{}

	if ok := h.decoderValidator.DecodeAndValidate(w, r, req); !ok {
		return
	}

	limit := req.Limit

	if limit == 0 {
		limit = types.DefaultPageLimit
	}

	snap := h.config.Feed.Snapshot()
	matched := feed.Filter(snap.Incidents, req.ToFilter())
	page, numPages := feed.Page(matched, req.Page, limit)

	h.resultWriter.WriteResult(w, r, &types.ListIncidentsResponse{
		Pagination: types.NewPaginationResponse(req.Page, numPages),
		Matched:    len(matched),
		TotalCount: snap.TotalCount,
		Loading:    snap.Loading,
		Incidents:  page,
	})
}
