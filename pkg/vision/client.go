package vision

import (
	"context"
	"fmt"
	"net/url"

	"github.com/isafetyrobo/safety-agent/internal/logger"
	"github.com/isafetyrobo/safety-agent/pkg/httpclient"
)

// Client talks to the bearer-token authenticated vision control API rooted
// at .../v1/vision/generic.
type Client struct {
	client *httpclient.Client
	logger *logger.Logger
}

func NewClient(conf *httpclient.HTTPClientConf, baseURL, token string, l *logger.Logger) *Client {
	return &Client{
		client: httpclient.NewClient(conf, baseURL, token),
		logger: l,
	}
}

// ListInstances returns the instances of one account. A response without
// the nested instance list yields an empty list.
func (c *Client) ListInstances(ctx context.Context, accountID string) ([]Instance, error) {
	env := &detailEnvelope{}

	if err := c.client.GetJSON(ctx, fmt.Sprintf("/%s/list_instance", url.PathEscape(accountID)), nil, env); err != nil {
		return nil, fmt.Errorf("error listing instances for account %s: %w", accountID, err)
	}

	res := make([]Instance, 0)

	data := env.data()

	if data == nil {
		return res, nil
	}

	for _, p := range data.Instances {
		if p == nil {
			continue
		}

		inst := p.toInstance()
		inst.AccountID = accountID

		res = append(res, inst)
	}

	return res, nil
}

// ListAllInstances fetches every account in turn. Accounts that fail are
// logged and skipped; an error is returned only when all of them failed.
func (c *Client) ListAllInstances(ctx context.Context, accountIDs []string) ([]Instance, error) {
	res := make([]Instance, 0)

	var lastErr error

	failed := 0

	for _, accountID := range accountIDs {
		instances, err := c.ListInstances(ctx, accountID)

		if err != nil {
			c.logger.Error().Caller().Msgf("%v", err)

			failed++
			lastErr = err

			continue
		}

		res = append(res, instances...)
	}

	if len(accountIDs) > 0 && failed == len(accountIDs) {
		return nil, lastErr
	}

	return res, nil
}

func (c *Client) Start(ctx context.Context, moduleID, instanceID string, cfg StartConfig) error {
	if cfg.Detections == nil {
		cfg.Detections = []string{}
	}

	path := fmt.Sprintf("/%s/%s/start", url.PathEscape(moduleID), url.PathEscape(instanceID))

	if err := c.client.PostJSON(ctx, path, cfg, nil); err != nil {
		return fmt.Errorf("error starting instance %s: %w", instanceID, err)
	}

	return nil
}

func (c *Client) Stop(ctx context.Context, moduleID, instanceID string) error {
	path := fmt.Sprintf("/%s/%s/stop", url.PathEscape(moduleID), url.PathEscape(instanceID))

	if err := c.client.PostJSON(ctx, path, nil, nil); err != nil {
		return fmt.Errorf("error stopping instance %s: %w", instanceID, err)
	}

	return nil
}

// GetInstance fetches the detail of one instance and resolves its video URL
// from the path its module kind uses. The returned error wraps ErrNoVideo
// when the detail was read but carries no video; the instance is still
// returned in that case.
func (c *Client) GetInstance(ctx context.Context, moduleID, instanceID string) (*Instance, error) {
	env := &detailEnvelope{}

	path := fmt.Sprintf("/%s/instance/%s", url.PathEscape(moduleID), url.PathEscape(instanceID))

	if err := c.client.GetJSON(ctx, path, nil, env); err != nil {
		return nil, fmt.Errorf("error getting instance %s: %w", instanceID, err)
	}

	data := env.data()

	if data == nil || data.Instance == nil {
		return nil, fmt.Errorf("instance %s detail is empty: %w", instanceID, ErrNoVideo)
	}

	inst := data.Instance.toInstance()

	if inst.InstanceID == "" {
		inst.InstanceID = instanceID
	}

	if inst.ModuleID == "" {
		inst.ModuleID = moduleID
	}

	videoURL, err := data.Instance.videoURL(inst.Kind)

	if err != nil {
		return &inst, fmt.Errorf("instance %s (%s module): %w", instanceID, inst.Kind, err)
	}

	inst.VideoURL = videoURL

	return &inst, nil
}
