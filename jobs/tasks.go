package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pohlai88/ledgercore/internal/idempotency"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskIdempotencyCleanup purges expired idempotency records.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// IdempotencyCleanupPayload configures one cleanup run. Grace keeps
// freshly expired records around a little longer for debugging.
type IdempotencyCleanupPayload struct {
	Grace time.Duration `json:"grace"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(payload IdempotencyCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}

// HandleIdempotencyCleanup builds the handler for cleanup tasks. Expired
// records are already invisible to readers, so this only reclaims space
// and can run as often as the cron schedule allows.
func HandleIdempotencyCleanup(store *idempotency.Store, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload IdempotencyCleanupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		started := time.Now()
		removed, err := store.Cleanup(ctx, payload.Grace)
		if err != nil {
			logger.Error("idempotency cleanup failed", slog.Any("error", err))
			return err
		}
		logger.Info("idempotency cleanup finished",
			slog.Int64("removed", removed),
			slog.Duration("took", time.Since(started)))
		return nil
	}
}
