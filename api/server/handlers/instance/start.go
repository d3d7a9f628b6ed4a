package instance

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/isafetyrobo/safety-agent/api/server/config"
	"github.com/isafetyrobo/safety-agent/api/server/shared"
	"github.com/isafetyrobo/safety-agent/api/server/shared/apierrors"
	"github.com/isafetyrobo/safety-agent/api/server/types"
	"github.com/isafetyrobo/safety-agent/pkg/instance"
	"github.com/isafetyrobo/safety-agent/pkg/vision"
)

type StartInstanceHandler struct {
	decoderValidator shared.RequestDecoderValidator
	resultWriter     shared.ResultWriter
	config           *config.Config
}

func NewStartInstanceHandler(config *config.Config) *StartInstanceHandler {
	return &StartInstanceHandler{
		resultWriter:     shared.NewDefaultResultWriter(config.Logger),
		decoderValidator: shared.NewDefaultRequestDecoderValidator(config.Logger),
		config:           config,
	}
}

func (h *StartInstanceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	moduleID := chi.URLParam(r, "module_id")
	instanceID := chi.URLParam(r, "instance_id")

	if moduleID == "" || instanceID == "" {
		apierrors.HandleAPIError(h.config.Logger, w, r, apierrors.NewErrPassThroughToClient(
			fmt.Errorf("module id and instance id are required"),
			http.StatusBadRequest,
		), true)
		return
	}

	req := &types.StartInstanceRequest{}

	if ok := h.decoderValidator.DecodeAndValidate(w, r, req); !ok {
		return
	}

	tracked, err := h.config.Instances.Start(r.Context(), instance.Ref{
		ModuleID:   moduleID,
		InstanceID: instanceID,
		Name:       req.Name,
		Kind:       vision.ParseModuleKind(req.ModuleName),
	}, req.StartConfig())

	if err != nil {
		handleTransitionError(h.config, w, r, err)
		return
	}

	h.resultWriter.WriteResult(w, r, &types.InstanceResponse{Instance: tracked})
}

func handleTransitionError(config *config.Config, w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, instance.ErrNotFound):
		apierrors.HandleAPIError(config.Logger, w, r, apierrors.NewErrNotFound(err), true)
	case errors.Is(err, instance.ErrInvalidTransition):
		apierrors.HandleAPIError(config.Logger, w, r, apierrors.NewErrPassThroughToClient(err, http.StatusConflict), true)
	default:
		apierrors.HandleAPIError(config.Logger, w, r, apierrors.NewErrBadGateway(err), true)
	}
}
