package analyses

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"ideascope-backend/internal/shared/storage/object"
	"ideascope-backend/internal/shared/telemetry"
	"ideascope-backend/internal/shared/util"
)

// Archive keeps status messages that failed validation for later diagnosis.
// Writes are best effort.
type Archive struct {
	Store object.ObjectStore
	Now   func() time.Time
}

// NewArchive returns an Archive over store, or nil when store is nil.
func NewArchive(store object.ObjectStore) *Archive {
	if store == nil {
		return nil
	}
	return &Archive{Store: store, Now: time.Now}
}

// SaveRejected writes raw under rejected/{userID}/{taskID}/{unix-nanos}.json.
func (a *Archive) SaveRejected(ctx context.Context, userID int64, taskID string, raw []byte) {
	if a == nil || a.Store == nil {
		return
	}
	key, err := a.rejectedKey(userID, taskID)
	if err != nil {
		telemetry.Warn("analysis.archive_skipped", map[string]any{
			"user_id": userID,
			"task_id": taskID,
			"error":   err,
		})
		return
	}
	if _, err := a.Store.SaveWithKey(ctx, key, "application/json", bytes.NewReader(raw)); err != nil {
		telemetry.Warn("analysis.archive_failed", map[string]any{
			"user_id": userID,
			"task_id": taskID,
			"key":     key,
			"error":   err,
		})
		return
	}
	telemetry.Info("analysis.archive_saved", map[string]any{
		"user_id": userID,
		"task_id": taskID,
		"key":     key,
		"bytes":   len(raw),
	})
}

func (a *Archive) rejectedKey(userID int64, taskID string) (string, error) {
	safeTask, err := util.SanitizeFileName(taskID)
	if err != nil {
		return "", fmt.Errorf("task id %q: %w", taskID, err)
	}
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	return fmt.Sprintf("rejected/%d/%s/%d.json", userID, safeTask, now().UnixNano()), nil
}
