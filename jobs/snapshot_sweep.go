package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-tax/internal/jobs"
)

// PendingOrderLister lists orders without a current tax snapshot.
type PendingOrderLister interface {
	PendingSnapshotOrders(ctx context.Context, limit int) ([]int64, error)
}

// SnapshotEnqueuer queues one order snapshot. Client implements it.
type SnapshotEnqueuer interface {
	EnqueueOrderSnapshot(ctx context.Context, orderID int64) (*asynq.TaskInfo, error)
}

// SnapshotSweepJob finds unsnapshotted orders and queues a snapshot for each.
type SnapshotSweepJob struct {
	Orders   PendingOrderLister
	Enqueuer SnapshotEnqueuer
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewSnapshotSweepJob constructs the sweep handler.
func NewSnapshotSweepJob(orders PendingOrderLister, enqueuer SnapshotEnqueuer, logger *slog.Logger, metrics *jobmetrics.Metrics) *SnapshotSweepJob {
	return &SnapshotSweepJob{Orders: orders, Enqueuer: enqueuer, Logger: logger, Metrics: metrics}
}

// Handle executes one sweep.
func (j *SnapshotSweepJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Orders == nil || j.Enqueuer == nil {
		return errors.New("snapshot sweep: dependencies not configured")
	}
	var payload SnapshotSweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Limit <= 0 {
		payload.Limit = defaultSweepLimit
	}

	tracker := j.metrics().Track(TaskSnapshotSweep)
	ids, err := j.Orders.PendingSnapshotOrders(ctx, payload.Limit)
	if err != nil {
		j.log().Error("list pending orders", slog.Any("error", err))
		return tracker.End(err)
	}

	queued, skipped := 0, 0
	for _, id := range ids {
		if _, err := j.Enqueuer.EnqueueOrderSnapshot(ctx, id); err != nil {
			if errors.Is(err, asynq.ErrTaskIDConflict) {
				skipped++
				continue
			}
			j.log().Error("enqueue order snapshot", slog.Int64("order_id", id), slog.Any("error", err))
			return tracker.End(err)
		}
		queued++
	}
	j.metrics().AddSwept(queued, skipped)
	j.log().Info("snapshot sweep finished", slog.Int("queued", queued), slog.Int("already_queued", skipped))
	return tracker.End(nil)
}

func (j *SnapshotSweepJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *SnapshotSweepJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSnapshotSweep))
	}
	return slog.Default().With(slog.String("job", TaskSnapshotSweep))
}
