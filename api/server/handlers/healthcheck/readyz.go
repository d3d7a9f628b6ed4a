package healthcheck

import (
	"fmt"
	"net/http"

	"github.com/isafetyrobo/safety-agent/api/server/config"
	"github.com/isafetyrobo/safety-agent/api/server/shared/apierrors"
)

type ReadyzHandler struct {
	config *config.Config
}

func NewReadyzHandler(config *config.Config) *ReadyzHandler {
	return &ReadyzHandler{
		config: config,
	}
}

func (h *ReadyzHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	db := h.config.Repository.DB

	switch db.Dialector.Name() {
	case "sqlite", "postgres":
		sqlDB, err := db.DB()

		if err != nil {
			apierrors.HandleAPIError(h.config.Logger, w, r, apierrors.NewErrInternal(err), true)
			return
		}

		if err := sqlDB.PingContext(r.Context()); err != nil {
			apierrors.HandleAPIError(h.config.Logger, w, r, apierrors.NewErrPassThroughToClient(
				fmt.Errorf("database is not reachable"),
				http.StatusServiceUnavailable,
			), true)
			return
		}

		writeHealthy(w)
		return
	}

	apierrors.HandleAPIError(h.config.Logger, w, r, apierrors.NewErrPassThroughToClient(
		fmt.Errorf("database is not supported"),
		http.StatusBadRequest,
	), true)
}

func writeHealthy(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("."))
}
