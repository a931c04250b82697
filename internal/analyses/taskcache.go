package analyses

import (
	"context"
	"fmt"
	"time"
)

const (
	DefaultInProgressTTL = 30 * time.Minute
	DefaultCompleteTTL   = 10 * time.Minute
)

// ProjectRef identifies a committed project.
type ProjectRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type CacheResult struct {
	Project ProjectRef `json:"project"`
}

// CacheEntry is the cached state of one task. Result is set only once complete.
type CacheEntry struct {
	IsComplete bool         `json:"is_complete"`
	Result     *CacheResult `json:"result,omitempty"`
}

// TaskCache stores task state namespaced by user. A missing entry means the
// task is unknown to that user.
type TaskCache interface {
	Get(ctx context.Context, userID int64, taskID string) (CacheEntry, bool, error)
	Set(ctx context.Context, userID int64, taskID string, entry CacheEntry, ttl time.Duration) error
	Delete(ctx context.Context, userID int64, taskID string) error
}

func taskKey(userID int64, taskID string) string {
	return fmt.Sprintf("analysis:task:%d:%s", userID, taskID)
}

func inProgressEntry() CacheEntry {
	return CacheEntry{IsComplete: false}
}

func completeEntry(ref ProjectRef) CacheEntry {
	return CacheEntry{IsComplete: true, Result: &CacheResult{Project: ref}}
}
