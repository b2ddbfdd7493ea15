package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"codingescape/internal/escape"
)

// RunCache keeps the snapshot of each player's live run so it survives a restart
type RunCache interface {
	Set(ctx context.Context, userID string, run *CachedRun) error
	Get(ctx context.Context, userID string) (*CachedRun, error)
	Delete(ctx context.Context, userID string) error
}

// CachedRun is a live run plus the save it continues
type CachedRun struct {
	SaveID   string          `json:"saveId,omitempty"`
	Snapshot escape.Snapshot `json:"snapshot"`
}

type runCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRunCache(client *redis.Client) RunCache {
	return &runCache{
		client: client,
		ttl:    24 * time.Hour,
	}
}

func (c *runCache) key(userID string) string {
	return "run:" + userID
}

func (c *runCache) Set(ctx context.Context, userID string, run *CachedRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(userID), data, c.ttl).Err()
}

// Get returns nil without error when no run is cached
func (c *runCache) Get(ctx context.Context, userID string) (*CachedRun, error) {
	data, err := c.client.Get(ctx, c.key(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var run CachedRun
	if err := json.Unmarshal([]byte(data), &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (c *runCache) Delete(ctx context.Context, userID string) error {
	return c.client.Del(ctx, c.key(userID)).Err()
}
