package jobs

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOrderSnapshot persists the tax breakdown of one sales order.
	TaskOrderSnapshot = "tax:order_snapshot"
	// TaskSnapshotSweep enqueues snapshots for orders that have none yet.
	TaskSnapshotSweep = "tax:snapshot_sweep"

	defaultSweepLimit = 500
)

var errInvalidOrderID = errors.New("jobs: order id must be positive")

// OrderSnapshotPayload identifies the order to snapshot.
type OrderSnapshotPayload struct {
	OrderID int64 `json:"order_id"`
}

// SnapshotSweepPayload bounds a single sweep run.
type SnapshotSweepPayload struct {
	Limit int `json:"limit"`
}

// NewOrderSnapshotTask constructs an Asynq task. The task id is derived from
// the order so a pending snapshot is never queued twice.
func NewOrderSnapshotTask(orderID int64) (*asynq.Task, error) {
	if orderID <= 0 {
		return nil, errInvalidOrderID
	}
	data, err := json.Marshal(OrderSnapshotPayload{OrderID: orderID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderSnapshot, data,
		asynq.Queue(QueueDefault),
		asynq.TaskID(orderSnapshotTaskID(orderID)),
		asynq.MaxRetry(5),
	), nil
}

// NewSnapshotSweepTask constructs the periodic sweep task.
func NewSnapshotSweepTask(limit int) (*asynq.Task, error) {
	if limit <= 0 {
		limit = defaultSweepLimit
	}
	data, err := json.Marshal(SnapshotSweepPayload{Limit: limit})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSnapshotSweep, data, asynq.Queue(QueueDefault)), nil
}

func orderSnapshotTaskID(orderID int64) string {
	return fmt.Sprintf("%s:%d", TaskOrderSnapshot, orderID)
}
