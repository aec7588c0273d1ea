package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientRequeuesArchivedSnapshot(t *testing.T) {
	mr := miniredis.RunT(t)
	opts := asynq.RedisClientOpt{Addr: mr.Addr()}

	client, err := NewClient(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	inspector := asynq.NewInspector(opts)
	t.Cleanup(func() { _ = inspector.Close() })

	ctx := context.Background()
	_, err = client.EnqueueOrderSnapshot(ctx, 42)
	require.NoError(t, err)

	_, err = client.EnqueueOrderSnapshot(ctx, 42)
	assert.ErrorIs(t, err, asynq.ErrTaskIDConflict, "pending snapshot is not queued twice")

	require.NoError(t, inspector.ArchiveTask(QueueDefault, orderSnapshotTaskID(42)))

	info, err := client.EnqueueOrderSnapshot(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, orderSnapshotTaskID(42), info.ID)
	assert.Equal(t, asynq.TaskStatePending, info.State)

	stored, err := inspector.GetTaskInfo(QueueDefault, orderSnapshotTaskID(42))
	require.NoError(t, err)
	assert.Equal(t, asynq.TaskStatePending, stored.State)
}

type conflictEnqueuer struct {
	conflicts int
	calls     int
}

func (c *conflictEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	c.calls++
	if c.conflicts > 0 {
		c.conflicts--
		return nil, asynq.ErrTaskIDConflict
	}
	return &asynq.TaskInfo{ID: "snap", Type: task.Type(), State: asynq.TaskStatePending}, nil
}

type stateInspector struct {
	info      *asynq.TaskInfo
	err       error
	deleteErr error
	deleted   []string
}

func (s *stateInspector) GetTaskInfo(queue, id string) (*asynq.TaskInfo, error) {
	return s.info, s.err
}

func (s *stateInspector) DeleteTask(queue, id string) error {
	s.deleted = append(s.deleted, id)
	return s.deleteErr
}

func TestEnqueueSnapshotConflicts(t *testing.T) {
	ctx := context.Background()

	t.Run("still queued", func(t *testing.T) {
		for _, state := range []asynq.TaskState{asynq.TaskStatePending, asynq.TaskStateActive, asynq.TaskStateRetry, asynq.TaskStateScheduled} {
			client := &conflictEnqueuer{conflicts: 1}
			inspector := &stateInspector{info: &asynq.TaskInfo{State: state}}
			_, err := EnqueueSnapshot(ctx, client, inspector, 7)
			assert.ErrorIs(t, err, asynq.ErrTaskIDConflict, state.String())
			assert.Empty(t, inspector.deleted)
			assert.Equal(t, 1, client.calls)
		}
	})

	t.Run("completed is replaced", func(t *testing.T) {
		client := &conflictEnqueuer{conflicts: 1}
		inspector := &stateInspector{info: &asynq.TaskInfo{State: asynq.TaskStateCompleted}}
		info, err := EnqueueSnapshot(ctx, client, inspector, 7)
		require.NoError(t, err)
		assert.Equal(t, "snap", info.ID)
		assert.Equal(t, []string{orderSnapshotTaskID(7)}, inspector.deleted)
		assert.Equal(t, 2, client.calls)
	})

	t.Run("task vanished", func(t *testing.T) {
		client := &conflictEnqueuer{conflicts: 1}
		inspector := &stateInspector{err: asynq.ErrTaskNotFound}
		_, err := EnqueueSnapshot(ctx, client, inspector, 7)
		require.NoError(t, err)
		assert.Empty(t, inspector.deleted)
	})

	t.Run("inspect failure", func(t *testing.T) {
		boom := errors.New("redis down")
		inspector := &stateInspector{err: boom}
		_, err := EnqueueSnapshot(ctx, &conflictEnqueuer{conflicts: 1}, inspector, 7)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("delete failure", func(t *testing.T) {
		boom := errors.New("redis down")
		inspector := &stateInspector{info: &asynq.TaskInfo{State: asynq.TaskStateArchived}, deleteErr: boom}
		_, err := EnqueueSnapshot(ctx, &conflictEnqueuer{conflicts: 1}, inspector, 7)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("no inspector", func(t *testing.T) {
		_, err := EnqueueSnapshot(ctx, &conflictEnqueuer{conflicts: 1}, nil, 7)
		assert.ErrorIs(t, err, asynq.ErrTaskIDConflict)
	})

	t.Run("invalid order", func(t *testing.T) {
		client := &conflictEnqueuer{}
		_, err := EnqueueSnapshot(ctx, client, nil, 0)
		assert.Error(t, err)
		assert.Zero(t, client.calls)
	})
}
