package detection

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/isafetyrobo/safety-agent/pkg/incident"
	"github.com/isafetyrobo/safety-agent/pkg/vision"
)

var ErrMissingInstance = errors.New("detection frame has no instance_id")

// Frame is one message of the detection WebSocket.
type Frame struct {
	InstanceID    string            `json:"instance_id"`
	Detections    []json.RawMessage `json:"detections"`
	Details       []json.RawMessage `json:"details"`
	Severity      string            `json:"severity"`
	PeopleCount   int               `json:"people_count"`
	IsOvercrowded bool              `json:"is_overcrowded"`
	Timestamp     time.Time         `json:"timestamp"`
}

// ParseFrame decodes a raw message. Frames without a timestamp are stamped
// with receivedAt.
func ParseFrame(data []byte, receivedAt time.Time) (*Frame, error) {
	aux := &struct {
		InstanceID    vision.ID          `json:"instance_id"`
		Detections    []json.RawMessage  `json:"detections"`
		Details       []json.RawMessage  `json:"details"`
		Severity      string             `json:"severity"`
		PeopleCount   *float64           `json:"people_count"`
		IsOvercrowded bool               `json:"is_overcrowded"`
		Timestamp     incident.Timestamp `json:"timestamp"`
	}{}

	if err := json.Unmarshal(data, aux); err != nil {
		return nil, fmt.Errorf("error decoding detection frame: %w", err)
	}

	if aux.InstanceID == "" {
		return nil, ErrMissingInstance
	}

	frame := &Frame{
		InstanceID:    string(aux.InstanceID),
		Detections:    aux.Detections,
		Details:       aux.Details,
		Severity:      aux.Severity,
		IsOvercrowded: aux.IsOvercrowded,
		Timestamp:     aux.Timestamp.Time,
	}

	if aux.PeopleCount != nil {
		frame.PeopleCount = int(*aux.PeopleCount)
	}

	if frame.Timestamp.IsZero() {
		frame.Timestamp = receivedAt
	}

	return frame, nil
}

// NormalizedSeverity parses the free-text severity like incident severities.
func (f *Frame) NormalizedSeverity() incident.Severity {
	return incident.ParseSeverity(f.Severity)
}
