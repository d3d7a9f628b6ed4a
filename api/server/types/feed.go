package types

import "time"

type FeedStatusResponse struct {
	Running     bool       `json:"running"`
	Loading     bool       `json:"loading"`
	Cached      int        `json:"cached"`
	TotalCount  int        `json:"total_count"`
	LastRefresh *time.Time `json:"last_refresh"`
	LastError   string     `json:"last_error,omitempty"`
}
