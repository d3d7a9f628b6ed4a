package feed

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/isafetyrobo/safety-agent/pkg/httpclient"
	"github.com/isafetyrobo/safety-agent/pkg/incident"
)

// ErrMalformedEnvelope is returned for a 2xx response whose body is empty or
// carries no incidents array.
var ErrMalformedEnvelope = errors.New("violations response has no incidents array")

// Fetcher retrieves one page of incidents from the violations API.
type Fetcher interface {
	Fetch(ctx context.Context, page, limit int) (*incident.Envelope, error)
}

// ViolationsClient is the HTTP Fetcher for GET /api/violations.
type ViolationsClient struct {
	client *httpclient.Client
}

// NewViolationsClient expects the full endpoint URL, e.g.
// https://host/api/violations.
func NewViolationsClient(conf *httpclient.HTTPClientConf, endpoint string) *ViolationsClient {
	return &ViolationsClient{
		client: httpclient.NewClient(conf, endpoint, ""),
	}
}

func (c *ViolationsClient) Fetch(ctx context.Context, page, limit int) (*incident.Envelope, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(limit))

	wire := &struct {
		Page      int                `json:"page"`
		Limit     int                `json:"limit"`
		Count     int                `json:"count"`
		Incidents *[]incident.Record `json:"incidents"`
	}{}

	if err := c.client.GetJSON(ctx, "", params, wire); err != nil {
		return nil, fmt.Errorf("error fetching violations page %d: %w", page, err)
	}

	if wire.Incidents == nil {
		return nil, fmt.Errorf("error fetching violations page %d: %w", page, ErrMalformedEnvelope)
	}

	return &incident.Envelope{
		Page:      wire.Page,
		Limit:     wire.Limit,
		Count:     wire.Count,
		Incidents: *wire.Incidents,
	}, nil
}
