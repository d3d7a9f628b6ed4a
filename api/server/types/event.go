package types

import (
	"encoding/json"
	"fmt"
	"time"
)

const MaxEventLimit = 5000

type ListInstanceEventsRequest struct {
	Limit uint32    `schema:"limit"`
	Since time.Time `schema:"since"`
}

func (r *ListInstanceEventsRequest) Validate() error {
	if r.Limit > MaxEventLimit {
		return fmt.Errorf("limit must not exceed %d", MaxEventLimit)
	}

	return nil
}

type EventLine struct {
	Timestamp *time.Time      `json:"timestamp"`
	Event     json.RawMessage `json:"event"`
}

type ListInstanceEventsResponse struct {
	InstanceID string      `json:"instance_id"`
	Events     []EventLine `json:"events"`
}
