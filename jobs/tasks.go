package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/retiro-core/retiro-core/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskExpireSweep bulk-expires tickets whose validity window closed.
	TaskExpireSweep = "tickets:expire_sweep"
	// TaskIdempotencyCleanup drops idempotency keys past their retention.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// ExpireSweeper is the slice of the tickets service the sweep needs.
type ExpireSweeper interface {
	ExpireDue(ctx context.Context) (int64, error)
}

// IdempotencyCleaner is the slice of the idempotency store cleanup needs.
type IdempotencyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// NewExpireSweepTask constructs the sweep task. It carries no payload; the
// sweep always operates on "now".
func NewExpireSweepTask() *asynq.Task {
	return asynq.NewTask(TaskExpireSweep, nil)
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(olderThan time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(map[string]string{"older_than": olderThan.String()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}

// NewExpireSweepHandler binds the sweep task to the tickets service. The
// sweep is a backstop: reads already expire lazily, so a missed run only
// delays the state flip of tickets nobody is looking at.
func NewExpireSweepHandler(svc ExpireSweeper, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		tracker := metrics.Track(TaskExpireSweep)
		n, err := svc.ExpireDue(ctx)
		if err != nil {
			logger.Error("expire sweep", slog.Any("error", err))
			return tracker.End(err)
		}
		metrics.AddExpired(n)
		logger.Info("expire sweep done", slog.Int64("expired", n))
		return tracker.End(nil)
	}
}

// NewIdempotencyCleanupHandler binds the cleanup task to the key store.
func NewIdempotencyCleanupHandler(store IdempotencyCleaner, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload map[string]string
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		olderThan, err := time.ParseDuration(payload["older_than"])
		if err != nil {
			return asynq.SkipRetry
		}
		tracker := metrics.Track(TaskIdempotencyCleanup)
		if err := store.Cleanup(ctx, olderThan); err != nil {
			logger.Error("idempotency cleanup", slog.Any("error", err))
			return tracker.End(err)
		}
		logger.Info("idempotency cleanup done", slog.String("older_than", olderThan.String()))
		return tracker.End(nil)
	}
}
