package incident

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Record is a single AI-detected safety violation as returned by the
// violations API. ID is the dedup key of the feed cache, EventID is the key
// used for detail lookups.
type Record struct {
	ID            int64     `json:"id"`
	EventID       string    `json:"event_id"`
	StreamID      string    `json:"stream_id"`
	DetectionType string    `json:"detection_type"`
	DetectedAt    Timestamp `json:"detected_at"`
	ImageURL      string    `json:"image_url"`
	Metadata      Metadata  `json:"metadata"`
}

type Metadata struct {
	Label      string  `json:"label"`
	ModelName  string  `json:"model_name"`
	Owner      string  `json:"owner"`
	Status     string  `json:"status"`
	Severity   string  `json:"severity"`
	Confidence float64 `json:"confidence"`
	Zone       string  `json:"zone"`
}

// Envelope is the body of GET /api/violations.
type Envelope struct {
	Page      int      `json:"page"`
	Limit     int      `json:"limit"`
	Count     int      `json:"count"`
	Incidents []Record `json:"incidents"`
}

func (r Record) Status() Status {
	return ParseStatus(r.Metadata.Status)
}

func (r Record) Severity() Severity {
	return ParseSeverity(r.Metadata.Severity)
}

// UnmarshalJSON accepts "timestamp" as an alias of "detected_at", which
// older deployments of the violations API still send.
func (r *Record) UnmarshalJSON(data []byte) error {
	type alias Record

	aux := &struct {
		*alias
		Timestamp *Timestamp `json:"timestamp"`
	}{
		alias: (*alias)(r),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if r.DetectedAt.IsZero() && aux.Timestamp != nil {
		r.DetectedAt = *aux.Timestamp
	}

	return nil
}

// Timestamp tolerates the handful of layouts the detection backend emits.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)

	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}

	// the detection stream sends unix epochs, in seconds or milliseconds
	if len(data) > 0 && data[0] != '"' {
		if epoch, err := strconv.ParseFloat(s, 64); err == nil {
			t.Time = epochTime(epoch)
			return nil
		}
	}

	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}

	return fmt.Errorf("invalid incident timestamp: %s", s)
}

func epochTime(epoch float64) time.Time {
	if epoch > 1e12 {
		return time.UnixMilli(int64(epoch)).UTC()
	}

	sec := int64(epoch)

	return time.Unix(sec, int64((epoch-float64(sec))*1e9)).UTC()
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}

	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}
