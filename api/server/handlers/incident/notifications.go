package incident

import (
	"net/http"

	"github.com/isafetyrobo/safety-agent/api/server/config"
	"github.com/isafetyrobo/safety-agent/api/server/shared"
	"github.com/isafetyrobo/safety-agent/api/server/types"
	"github.com/isafetyrobo/safety-agent/pkg/feed"
)

const defaultNotifications = 5

type ListNotificationsHandler struct {
	decoderValidator shared.RequestDecoderValidator
	resultWriter     shared.ResultWriter
	config           *config.Config
}

func NewListNotificationsHandler(config *config.Config) *ListNotificationsHandler {
	return &ListNotificationsHandler{
		resultWriter:     shared.NewDefaultResultWriter(config.Logger),
		decoderValidator: shared.NewDefaultRequestDecoderValidator(config.Logger),
		config:           config,
	}
}

func (h *ListNotificationsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := &types.ListNotificationsRequest{}

	if ok := h.decoderValidator.DecodeAndValidate(w, r, req); !ok {
		return
	}

	limit := req.Limit

	if limit == 0 {
		limit = defaultNotifications
	}

	incidents := h.config.Feed.Snapshot().Incidents

	h.resultWriter.WriteResult(w, r, &types.ListNotificationsResponse{
		Open:          len(feed.Notifications(incidents, 0)),
		Notifications: feed.Notifications(incidents, limit),
	})
}
