package feed

import (
	"errors"
	"net/http"

	"github.com/isafetyrobo/safety-agent/api/server/config"
	"github.com/isafetyrobo/safety-agent/api/server/shared"
	"github.com/isafetyrobo/safety-agent/api/server/shared/apierrors"
	"github.com/isafetyrobo/safety-agent/pkg/feed"
)

type RefreshHandler struct {
	resultWriter shared.ResultWriter
	config       *config.Config
}

func NewRefreshHandler(config *config.Config) *RefreshHandler {
	return &RefreshHandler{
		resultWriter: shared.NewDefaultResultWriter(config.Logger),
		config:       config,
	}
}

func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.config.Feed.Refresh(r.Context()); err != nil {
		var persistErr *feed.PersistError

		if errors.As(err, &persistErr) {
			apierrors.HandleAPIError(h.config.Logger, w, r, apierrors.NewErrInternal(err), true)
			return
		}

		apierrors.HandleAPIError(h.config.Logger, w, r, apierrors.NewErrBadGateway(err), true)
		return
	}

	h.resultWriter.WriteResult(w, r, statusOf(h.config.Feed.Snapshot()))
}
