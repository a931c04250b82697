package analyses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ideascope-backend/internal/shared/storage/cache"
)

// RedisTaskCache keeps task entries as JSON strings in Redis.
type RedisTaskCache struct {
	Client *cache.RedisClient
}

func NewRedisTaskCache(client *cache.RedisClient) *RedisTaskCache {
	return &RedisTaskCache{Client: client}
}

func (c *RedisTaskCache) Get(ctx context.Context, userID int64, taskID string) (CacheEntry, bool, error) {
	raw, err := c.Client.Get(ctx, taskKey(userID, taskID))
	if errors.Is(err, cache.ErrMiss) {
		return CacheEntry{}, false, nil
	}
	if err != nil {
		return CacheEntry{}, false, err
	}
	var entry CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return CacheEntry{}, false, fmt.Errorf("decode task entry: %w", err)
	}
	return entry, true, nil
}

func (c *RedisTaskCache) Set(ctx context.Context, userID int64, taskID string, entry CacheEntry, ttl time.Duration) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode task entry: %w", err)
	}
	return c.Client.Set(ctx, taskKey(userID, taskID), raw, ttl)
}

func (c *RedisTaskCache) Delete(ctx context.Context, userID int64, taskID string) error {
	return c.Client.Del(ctx, taskKey(userID, taskID))
}

var _ TaskCache = (*RedisTaskCache)(nil)
