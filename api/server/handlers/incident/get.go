package incident

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/isafetyrobo/safety-agent/api/server/config"
	"github.com/isafetyrobo/safety-agent/api/server/shared"
	"github.com/isafetyrobo/safety-agent/api/server/shared/apierrors"
	"github.com/isafetyrobo/safety-agent/api/server/types"
	"github.com/isafetyrobo/safety-agent/pkg/feed"
	"github.com/isafetyrobo/safety-agent/pkg/incident"
)

type GetIncidentHandler struct {
	resultWriter shared.ResultWriter
	config       *config.Config
}

func NewGetIncidentHandler(config *config.Config) *GetIncidentHandler {
	return &GetIncidentHandler{
		resultWriter: shared.NewDefaultResultWriter(config.Logger),
		config:       config,
	}
}

func (h *GetIncidentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "event_id")

	if eventID == "" {
		apierrors.HandleAPIError(h.config.Logger, w, r, apierrors.NewErrPassThroughToClient(
			fmt.Errorf("empty event id"),
			http.StatusBadRequest,
		), true)
		return
	}

	rec, ok := feed.FindByEventID(h.config.Feed.Snapshot().Incidents, eventID)

	if !ok {
		apierrors.HandleAPIError(h.config.Logger, w, r, apierrors.NewErrNotFound(
			fmt.Errorf("no incident with event id %s", eventID),
		), true)
		return
	}

	res := &types.GetIncidentResponse{
		Incident: rec,
	}

	if !rec.DetectedAt.IsZero() {
		res.Shift = incident.ShiftOf(rec.DetectedAt.Hour())
	}

	h.resultWriter.WriteResult(w, r, res)
}
