package instance

import (
	"net/http"

	"github.com/isafetyrobo/safety-agent/api/server/config"
	"github.com/isafetyrobo/safety-agent/api/server/shared"
	"github.com/isafetyrobo/safety-agent/api/server/shared/apierrors"
	"github.com/isafetyrobo/safety-agent/api/server/types"
	"github.com/isafetyrobo/safety-agent/pkg/instance"
	"github.com/isafetyrobo/safety-agent/pkg/vision"
)

type ListInstancesHandler struct {
	resultWriter shared.ResultWriter
	config       *config.Config
}

func NewListInstancesHandler(config *config.Config) *ListInstancesHandler {
	return &ListInstancesHandler{
		resultWriter: shared.NewDefaultResultWriter(config.Logger),
		config:       config,
	}
}

// ServeHTTP lists the remote instances of every configured account joined
// with local state. Tracked instances the remote list no longer returns are
// appended so that failed transitions stay visible.
func (h *ListInstancesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	remote, err := h.config.Vision.ListAllInstances(r.Context(), h.config.AccountIDs)

	if err != nil {
		apierrors.HandleAPIError(h.config.Logger, w, r, apierrors.NewErrBadGateway(err), true)
		return
	}

	local := h.config.Instances.List()
	tracked := make(map[string]instance.Tracked, len(local))

	for _, t := range local {
		tracked[t.InstanceID] = t
	}

	res := &types.ListInstancesResponse{
		Instances: make([]types.InstanceView, 0, len(remote)),
	}

	for _, inst := range remote {
		view := types.InstanceView{
			Instance: inst,
			State:    instance.StateStopped,
		}

		if t, ok := tracked[inst.InstanceID]; ok {
			joinTracked(&view, t)
			delete(tracked, inst.InstanceID)
		}

		res.Instances = append(res.Instances, view)
	}

	for _, t := range local {
		if _, ok := tracked[t.InstanceID]; !ok {
			continue
		}

		view := types.InstanceView{
			Instance: vision.Instance{
				InstanceID: t.InstanceID,
				ModuleID:   t.ModuleID,
				Name:       t.Name,
				Kind:       t.Kind,
			},
		}

		joinTracked(&view, t)

		res.Instances = append(res.Instances, view)
	}

	h.resultWriter.WriteResult(w, r, res)
}

func joinTracked(view *types.InstanceView, t instance.Tracked) {
	view.State = t.State
	view.LastError = t.LastError
	view.LastDetection = t.LastDetection
	view.VideoURL = t.VideoURL
}
