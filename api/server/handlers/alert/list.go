package alert

import (
	"net/http"
	"strings"

	"github.com/isafetyrobo/safety-agent/api/server/config"
	"github.com/isafetyrobo/safety-agent/api/server/shared"
	"github.com/isafetyrobo/safety-agent/api/server/shared/apierrors"
	"github.com/isafetyrobo/safety-agent/api/server/types"
	"github.com/isafetyrobo/safety-agent/internal/utils"
	"github.com/isafetyrobo/safety-agent/pkg/incident"
)

type ListAlertsHandler struct {
	decoderValidator shared.RequestDecoderValidator
	resultWriter     shared.ResultWriter
	config           *config.Config
}

func NewListAlertsHandler(config *config.Config) *ListAlertsHandler {
	return &ListAlertsHandler{
		resultWriter:     shared.NewDefaultResultWriter(config.Logger),
		decoderValidator: shared.NewDefaultRequestDecoderValidator(config.Logger),
		config:           config,
	}
}

func (h *ListAlertsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := &types.ListAlertsRequest{}

	if ok := h.decoderValidator.DecodeAndValidate(w, r, req); !ok {
		return
	}

	limit := req.Limit

	if limit == 0 {
		limit = types.DefaultPageLimit
	}

	filter := &utils.ListAlertsFilter{}

	if req.Severity != "" {
		severity := string(incident.ParseSeverity(req.Severity))
		filter.Severity = &severity
	}

	if req.Zone != "" {
		zone := strings.ToLower(strings.TrimSpace(req.Zone))
		filter.Zone = &zone
	}

	alerts, paginatedResult, err := h.config.Repository.Alert.ListAlerts(
		filter,
		utils.WithSortBy("alerted_at"),
		utils.WithOrder(utils.OrderDesc),
		utils.WithLimit(limit),
		utils.WithOffset(req.Page*limit),
	)

	if err != nil {
		apierrors.HandleAPIError(h.config.Logger, w, r, apierrors.NewErrInternal(err), true)
		return
	}

	res := &types.ListAlertsResponse{
		Pagination: &types.PaginationResponse{
			NumPages:    paginatedResult.NumPages,
			CurrentPage: paginatedResult.CurrentPage,
			NextPage:    paginatedResult.NextPage,
		},
		Alerts: make([]types.Alert, 0, len(alerts)),
	}

	for _, alert := range alerts {
		res.Alerts = append(res.Alerts, types.Alert{
			IncidentID: alert.IncidentID,
			EventID:    alert.EventID,
			Severity:   alert.Severity,
			Zone:       alert.Zone,
			AlertedAt:  alert.AlertedAt,
		})
	}

	h.resultWriter.WriteResult(w, r, res)
}
