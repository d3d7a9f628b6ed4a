package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/isafetyrobo/safety-agent/pkg/feed"
)

const snapshotKey = "safety-agent:incidents:snapshot"

// Client is a redis client that also holds the
// expiry applied to every persisted snapshot
type Client struct {
	client *goredis.Client
	key    string
	ttl    time.Duration
}

func NewClient(host, port, username, password string, db int, ttl time.Duration) *Client {
	return &Client{
		client: goredis.NewClient(&goredis.Options{
			Addr:     fmt.Sprintf("%s:%s", host, port),
			Username: username,
			Password: password,
			DB:       db,
		}),
		key: snapshotKey,
		ttl: ttl,
	}
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Load reads the snapshot blob. A missing key is an empty snapshot.
func (c *Client) Load(ctx context.Context) (*feed.PersistedSnapshot, error) {
	raw, err := c.client.Get(ctx, c.key).Bytes()

	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}

		return nil, fmt.Errorf("error reading incident snapshot from key %s: %w", c.key, err)
	}

	snap := &feed.PersistedSnapshot{}

	if err := json.Unmarshal(raw, snap); err != nil {
		return nil, fmt.Errorf("error unmarshalling incident snapshot from key %s: %w", c.key, err)
	}

	if err := feed.CheckVersion(snap); err != nil {
		return nil, err
	}

	return snap, nil
}

func (c *Client) Save(ctx context.Context, snap *feed.PersistedSnapshot) error {
	raw, err := json.Marshal(snap)

	if err != nil {
		return fmt.Errorf("error marshalling incident snapshot: %w", err)
	}

	if _, err := c.client.Set(ctx, c.key, raw, c.ttl).Result(); err != nil {
		return fmt.Errorf("error writing incident snapshot to key %s: %w", c.key, err)
	}

	return nil
}

func (c *Client) Clear(ctx context.Context) error {
	if _, err := c.client.Del(ctx, c.key).Result(); err != nil {
		return fmt.Errorf("error clearing incident snapshot at key %s: %w", c.key, err)
	}

	return nil
}
