package types

import (
	"github.com/isafetyrobo/safety-agent/pkg/autoscroll"
	"github.com/isafetyrobo/safety-agent/pkg/incident"
)

type LiveBoardRequest struct {
	Live *bool `json:"live"`
}

type LiveBoardResponse struct {
	State    autoscroll.State  `json:"state"`
	Offset   float64           `json:"offset"`
	FirstRow int               `json:"first_row"`
	Rows     []incident.Record `json:"rows"`
}
