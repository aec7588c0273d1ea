package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
)

// TaskEnqueuer is implemented by *asynq.Client.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskInspector is implemented by *asynq.Inspector.
type TaskInspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
	DeleteTask(queue, id string) error
}

// Client submits tax tasks to the queue.
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	return &Client{
		client:    asynq.NewClient(redisOpts),
		inspector: asynq.NewInspector(redisOpts),
	}, nil
}

// EnqueueOrderSnapshot queues a snapshot of orderID. See EnqueueSnapshot.
func (c *Client) EnqueueOrderSnapshot(ctx context.Context, orderID int64) (*asynq.TaskInfo, error) {
	return EnqueueSnapshot(ctx, c.client, c.inspector, orderID)
}

// Close releases client resources.
func (c *Client) Close() error {
	return errors.Join(c.inspector.Close(), c.client.Close())
}

// EnqueueSnapshot queues a snapshot of orderID. The task id is fixed per
// order: while a snapshot is pending, scheduled, retrying or running the call
// returns asynq.ErrTaskIDConflict. A previous task that was archived or kept
// as completed is deleted first and the snapshot is queued again. A nil
// inspector reports every conflict.
func EnqueueSnapshot(ctx context.Context, client TaskEnqueuer, inspector TaskInspector, orderID int64) (*asynq.TaskInfo, error) {
	task, err := NewOrderSnapshotTask(orderID)
	if err != nil {
		return nil, err
	}
	info, err := client.EnqueueContext(ctx, task)
	if !errors.Is(err, asynq.ErrTaskIDConflict) || inspector == nil {
		return info, err
	}
	released, releaseErr := releaseFinishedSnapshot(inspector, orderID)
	if releaseErr != nil {
		return nil, releaseErr
	}
	if !released {
		return nil, err
	}
	return client.EnqueueContext(ctx, task)
}

func releaseFinishedSnapshot(inspector TaskInspector, orderID int64) (bool, error) {
	id := orderSnapshotTaskID(orderID)
	info, err := inspector.GetTaskInfo(QueueDefault, id)
	switch {
	case errors.Is(err, asynq.ErrTaskNotFound):
		return true, nil
	case err != nil:
		return false, fmt.Errorf("inspect snapshot task %s: %w", id, err)
	}
	if info.State != asynq.TaskStateArchived && info.State != asynq.TaskStateCompleted {
		return false, nil
	}
	if err := inspector.DeleteTask(QueueDefault, id); err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
		return false, fmt.Errorf("delete finished snapshot task %s: %w", id, err)
	}
	return true, nil
}
