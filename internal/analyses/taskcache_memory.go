package analyses

import (
	"context"
	"sync"
	"time"
)

// MemoryTaskCache is a TaskCache for dev and tests.
type MemoryTaskCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	entry     CacheEntry
	expiresAt time.Time
}

func NewMemoryTaskCache(now func() time.Time) *MemoryTaskCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryTaskCache{entries: make(map[string]memoryEntry), now: now}
}

func (c *MemoryTaskCache) Get(ctx context.Context, userID int64, taskID string) (CacheEntry, bool, error) {
	if err := ctx.Err(); err != nil {
		return CacheEntry{}, false, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[taskKey(userID, taskID)]
	if !ok || (!e.expiresAt.IsZero() && !c.now().Before(e.expiresAt)) {
		return CacheEntry{}, false, nil
	}
	return e.entry, true, nil
}

func (c *MemoryTaskCache) Set(ctx context.Context, userID int64, taskID string, entry CacheEntry, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[taskKey(userID, taskID)] = memoryEntry{entry: entry, expiresAt: expiresAt}
	return nil
}

func (c *MemoryTaskCache) Delete(ctx context.Context, userID int64, taskID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, taskKey(userID, taskID))
	return nil
}

var _ TaskCache = (*MemoryTaskCache)(nil)
