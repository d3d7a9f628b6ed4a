package feed

import (
	"net/http"

	"github.com/isafetyrobo/safety-agent/api/server/config"
	"github.com/isafetyrobo/safety-agent/api/server/shared"
)

// StartHandler resumes periodic refreshes; starting a running feed is a no-op.
type StartHandler struct {
	resultWriter shared.ResultWriter
	config       *config.Config
}

func NewStartHandler(config *config.Config) *StartHandler {
	return &StartHandler{
		resultWriter: shared.NewDefaultResultWriter(config.Logger),
		config:       config,
	}
}

func (h *StartHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.config.Feed.Start(h.config.Context)

	h.resultWriter.WriteResult(w, r, statusOf(h.config.Feed.Snapshot()))
}

// StopHandler suspends periodic refreshes and keeps the cached incidents.
type StopHandler struct {
	resultWriter shared.ResultWriter
	config       *config.Config
}

func NewStopHandler(config *config.Config) *StopHandler {
	return &StopHandler{
		resultWriter: shared.NewDefaultResultWriter(config.Logger),
		config:       config,
	}
}

func (h *StopHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.config.Feed.Stop()

	h.resultWriter.WriteResult(w, r, statusOf(h.config.Feed.Snapshot()))
}
