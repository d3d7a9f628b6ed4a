package types

import (
	"fmt"

	"github.com/isafetyrobo/safety-agent/pkg/instance"
	"github.com/isafetyrobo/safety-agent/pkg/vision"
)

// InstanceView joins a remote vision instance with the agent's local state.
type InstanceView struct {
	vision.Instance

	State         instance.State          `json:"state"`
	LastError     string                  `json:"last_error,omitempty"`
	LastDetection *instance.LastDetection `json:"last_detection,omitempty"`
}

type ListInstancesResponse struct {
	Instances []InstanceView `json:"instances"`
}

// StartInstanceRequest carries the processing configuration; omitted fields
// fall back to the defaults.
type StartInstanceRequest struct {
	Conf            *float64 `json:"conf"`
	SkipFrames      *int     `json:"skip_frames"`
	PeopleThreshold *int     `json:"people_threshold"`
	Detections      []string `json:"detections"`

	Name       string `json:"name"`
	ModuleName string `json:"module_name"`
}

func (r *StartInstanceRequest) StartConfig() vision.StartConfig {
	res := vision.DefaultStartConfig()

	if r.Conf != nil {
		res.Conf = *r.Conf
	}

	if r.SkipFrames != nil {
		res.SkipFrames = *r.SkipFrames
	}

	if r.PeopleThreshold != nil {
		res.PeopleThreshold = *r.PeopleThreshold
	}

	if r.Detections != nil {
		res.Detections = r.Detections
	}

	return res
}

func (r *StartInstanceRequest) Validate() error {
	if err := r.StartConfig().Validate(); err != nil {
		return fmt.Errorf("invalid start configuration: %w", err)
	}

	return nil
}

type InstanceResponse struct {
	Instance instance.Tracked `json:"instance"`
}
