package instance

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/isafetyrobo/safety-agent/api/server/config"
)

type StopInstanceHandler struct {
	config *config.Config
}

func NewStopInstanceHandler(config *config.Config) *StopInstanceHandler {
	return &StopInstanceHandler{
		config: config,
	}
}

func (h *StopInstanceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instance_id")

	if err := h.config.Instances.Stop(r.Context(), instanceID); err != nil {
		handleTransitionError(h.config, w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
