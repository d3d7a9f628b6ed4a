package vision

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoVideo is returned when an instance detail carries no playable video
// URL at the path its module kind uses.
var ErrNoVideo = errors.New("instance has no video url")

// ModuleKind is decided once from the vendor's module label so that callers
// never compare labels themselves.
type ModuleKind int

const (
	ModuleGeneric ModuleKind = iota
	ModuleCrowd
)

const crowdModuleLabel = "crowd detection"

// ParseModuleKind matches the vendor label case-insensitively with runs of
// whitespace collapsed, so "Crowd  Detection" is a crowd module.
func ParseModuleKind(label string) ModuleKind {
	if strings.EqualFold(strings.Join(strings.Fields(label), " "), crowdModuleLabel) {
		return ModuleCrowd
	}

	return ModuleGeneric
}

func (k ModuleKind) String() string {
	if k == ModuleCrowd {
		return "crowd"
	}

	return "generic"
}

func (k ModuleKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText accepts both the short form written by MarshalText and the
// vendor module label.
func (k *ModuleKind) UnmarshalText(text []byte) error {
	if strings.EqualFold(string(text), "crowd") {
		*k = ModuleCrowd
		return nil
	}

	*k = ParseModuleKind(string(text))

	return nil
}

// ID is an identifier the vendor sends either as a string or as a number.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string

		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}

		*id = ID(s)

		return nil
	}

	var n json.Number

	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid identifier %s: %w", string(data), err)
	}

	*id = ID(n.String())

	return nil
}

// Instance is a camera and detection model pairing on the vision backend.
type Instance struct {
	InstanceID string     `json:"instance_id"`
	Name       string     `json:"name"`
	ModuleID   string     `json:"module_id"`
	ModuleName string     `json:"module_name"`
	AccountID  string     `json:"account_id,omitempty"`
	Status     string     `json:"status"`
	Kind       ModuleKind `json:"kind"`

	// VideoURL is only filled in by GetInstance.
	VideoURL string `json:"video_url,omitempty"`
}

func (i *Instance) IsRunning() bool {
	switch strings.ToLower(strings.TrimSpace(i.Status)) {
	case "running", "started", "active", "processing":
		return true
	}

	return false
}

// StartConfig is the body of POST /{module_id}/{instance_id}/start.
type StartConfig struct {
	Conf            float64  `json:"conf"`
	SkipFrames      int      `json:"skip_frames"`
	PeopleThreshold int      `json:"people_threshold"`
	Detections      []string `json:"detections"`
}

func DefaultStartConfig() StartConfig {
	return StartConfig{
		Conf:            0.5,
		SkipFrames:      1,
		PeopleThreshold: 10,
		Detections:      []string{},
	}
}

func (c StartConfig) Validate() error {
	if c.Conf <= 0 || c.Conf > 1 {
		return fmt.Errorf("conf must be in (0, 1], got %v", c.Conf)
	}

	if c.SkipFrames < 0 {
		return fmt.Errorf("skip_frames must not be negative, got %d", c.SkipFrames)
	}

	if c.PeopleThreshold < 0 {
		return fmt.Errorf("people_threshold must not be negative, got %d", c.PeopleThreshold)
	}

	return nil
}

// wire types of the control API; every level is optional

type detailEnvelope struct {
	Detail []struct {
		Data *detailData `json:"data"`
	} `json:"detail"`
}

type detailData struct {
	Instances []*instancePayload `json:"instances"`
	Instance  *instancePayload   `json:"instance"`
}

type instancePayload struct {
	InstanceID   ID     `json:"instance_id"`
	InstanceName string `json:"instance_name"`
	Name         string `json:"name"`
	ModuleID     ID     `json:"module_id"`
	ModuleName   string `json:"module_name"`
	Status       string `json:"status"`

	PostProcessing *struct {
		VideoURL string `json:"video_url"`
	} `json:"post_processing"`

	DocumentList []struct {
		VideoURL string `json:"video_url"`
	} `json:"document_list"`
}

func (p *instancePayload) toInstance() Instance {
	name := p.InstanceName

	if name == "" {
		name = p.Name
	}

	return Instance{
		InstanceID: string(p.InstanceID),
		Name:       name,
		ModuleID:   string(p.ModuleID),
		ModuleName: p.ModuleName,
		Status:     p.Status,
		Kind:       ParseModuleKind(p.ModuleName),
	}
}

// videoURL reads the video path that belongs to kind: crowd modules expose
// the post-processed video, every other module the first document's video.
func (p *instancePayload) videoURL(kind ModuleKind) (string, error) {
	var url string

	switch kind {
	case ModuleCrowd:
		if p.PostProcessing != nil {
			url = p.PostProcessing.VideoURL
		}
	default:
		for _, doc := range p.DocumentList {
			if doc.VideoURL != "" {
				url = doc.VideoURL
				break
			}
		}
	}

	if strings.TrimSpace(url) == "" {
		return "", ErrNoVideo
	}

	return url, nil
}

func (e *detailEnvelope) data() *detailData {
	if e == nil || len(e.Detail) == 0 || e.Detail[0].Data == nil {
		return nil
	}

	return e.Detail[0].Data
}
