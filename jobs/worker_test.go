package jobs

import (
	"context"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkerRejectsInvalidCronSpec(t *testing.T) {
	task, err := NewSnapshotSweepTask(0)
	require.NoError(t, err)

	_, err = NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"},
		Cron:      []CronRegistration{{Spec: "every tuesday", Task: task}},
	})
	assert.Error(t, err)
}

func TestNewWorkerSkipsIncompleteEntries(t *testing.T) {
	w, err := NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"},
		Handlers:  []TaskHandler{{Type: TaskOrderSnapshot}},
		Cron:      []CronRegistration{{Spec: "*/5 * * * *"}},
	})
	require.NoError(t, err)
	assert.Nil(t, w.scheduler)
	assert.NotNil(t, w.logger)
}

func TestNilWorkerRun(t *testing.T) {
	var w *Worker
	assert.EqualError(t, w.Run(context.Background()), "worker: not configured")
}
