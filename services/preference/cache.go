package preference

import (
	"context"
	"encoding/json"
	"time"

	"beacon/models"

	"github.com/go-redis/redis/v8"
)

const preferencePrefix = "pref:"

// Cache holds recently resolved preferences. Staleness up to the TTL is acceptable.
type Cache interface {
	Get(ctx context.Context, userID string) (*models.Preference, bool, error)
	Set(ctx context.Context, p *models.Preference) error
	Invalidate(ctx context.Context, userID string) error
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, userID string) (*models.Preference, bool, error) {
	data, err := c.client.Get(ctx, preferencePrefix+userID).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var p models.Preference
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, false, err
	}
	p.Normalize()
	return &p, true, nil
}

func (c *RedisCache) Set(ctx context.Context, p *models.Preference) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, preferencePrefix+p.UserID, b, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, userID string) error {
	return c.client.Del(ctx, preferencePrefix+userID).Err()
}
