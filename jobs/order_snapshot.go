package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-tax/internal/jobs"
	"github.com/odyssey-erp/odyssey-tax/internal/quote"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// OrderSnapshotter computes and stores an order's tax snapshot.
type OrderSnapshotter interface {
	SnapshotOrder(ctx context.Context, orderID int64) (quote.Snapshot, error)
}

// OrderSnapshotJob handles TaskOrderSnapshot.
type OrderSnapshotJob struct {
	Service OrderSnapshotter
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewOrderSnapshotJob constructs the job handler.
func NewOrderSnapshotJob(service OrderSnapshotter, logger *slog.Logger, metrics *jobmetrics.Metrics) *OrderSnapshotJob {
	return &OrderSnapshotJob{Service: service, Logger: logger, Metrics: metrics}
}

// Handle executes the snapshot job. Malformed payloads and orders that do not
// exist are not retried.
func (j *OrderSnapshotJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("order snapshot: dependencies not configured")
	}
	var payload OrderSnapshotPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.OrderID <= 0 {
		return asynq.SkipRetry
	}

	metrics := j.metrics()
	tracker := metrics.Track(TaskOrderSnapshot)
	snapshot, err := j.Service.SnapshotOrder(ctx, payload.OrderID)
	if err != nil {
		if errors.Is(err, quote.ErrNotFound) || errors.Is(err, quote.ErrValidation) {
			j.log().Warn("skip order snapshot", slog.Int64("order_id", payload.OrderID), slog.Any("error", err))
			return tracker.End(fmt.Errorf("%w: %w", err, asynq.SkipRetry))
		}
		j.log().Error("order snapshot", slog.Int64("order_id", payload.OrderID), slog.Any("error", err))
		return tracker.End(err)
	}

	metrics.AddSnapshot()
	j.log().Info("order snapshot stored",
		slog.Int64("order_id", payload.OrderID),
		slog.String("snapshot_id", snapshot.ID.String()),
		slog.Float64("total", snapshot.Breakdown.Total),
	)
	return tracker.End(nil)
}

func (j *OrderSnapshotJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *OrderSnapshotJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskOrderSnapshot))
	}
	return slog.Default().With(slog.String("job", TaskOrderSnapshot))
}
