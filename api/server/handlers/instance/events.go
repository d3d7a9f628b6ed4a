package instance

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/isafetyrobo/safety-agent/api/server/config"
	"github.com/isafetyrobo/safety-agent/api/server/shared"
	"github.com/isafetyrobo/safety-agent/api/server/shared/apierrors"
	"github.com/isafetyrobo/safety-agent/api/server/types"
	"github.com/isafetyrobo/safety-agent/pkg/logstore"
)

const defaultEventLimit = 100

type ListInstanceEventsHandler struct {
	decoderValidator shared.RequestDecoderValidator
	resultWriter     shared.ResultWriter
	config           *config.Config
}

func NewListInstanceEventsHandler(config *config.Config) *ListInstanceEventsHandler {
	return &ListInstanceEventsHandler{
		resultWriter:     shared.NewDefaultResultWriter(config.Logger),
		decoderValidator: shared.NewDefaultRequestDecoderValidator(config.Logger),
		config:           config,
	}
}

func (h *ListInstanceEventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instance_id")

	req := &types.ListInstanceEventsRequest{}

	if ok := h.decoderValidator.DecodeAndValidate(w, r, req); !ok {
		return
	}

	limit := req.Limit

	if limit == 0 {
		limit = defaultEventLimit
	}

	res := &types.ListInstanceEventsResponse{
		InstanceID: instanceID,
		Events:     make([]types.EventLine, 0),
	}

	collect := logstore.WriterFunc(func(timestamp *time.Time, log string) error {
		event := json.RawMessage(log)

		if !json.Valid(event) {
			quoted, err := json.Marshal(log)

			if err != nil {
				return err
			}

			event = quoted
		}

		res.Events = append(res.Events, types.EventLine{
			Timestamp: timestamp,
			Event:     event,
		})

		return nil
	})

	err := h.config.LogStore.Query(logstore.QueryOptions{
		Labels: map[string]string{logstore.InstanceLabel: instanceID},
		Start:  req.Since,
		Limit:  limit,
	}, collect, r.Context().Done())

	if err != nil {
		apierrors.HandleAPIError(h.config.Logger, w, r, apierrors.NewErrInternal(err), true)
		return
	}

	h.resultWriter.WriteResult(w, r, res)
}
