package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/odyssey-tax/internal/jobs"
	"github.com/odyssey-erp/odyssey-tax/internal/quote"
	"github.com/odyssey-erp/odyssey-tax/internal/tax"
)

type fakeSnapshotter struct {
	calls []int64
	err   error
}

func (f *fakeSnapshotter) SnapshotOrder(ctx context.Context, orderID int64) (quote.Snapshot, error) {
	f.calls = append(f.calls, orderID)
	if f.err != nil {
		return quote.Snapshot{}, f.err
	}
	return quote.Snapshot{
		ID:        uuid.New(),
		OrderID:   orderID,
		Breakdown: tax.OrderTaxBreakdown{Subtotal: 100, TotalTax: 11, Total: 111},
	}, nil
}

func newSnapshotJob(svc OrderSnapshotter) *OrderSnapshotJob {
	return NewOrderSnapshotJob(svc, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
}

func TestNewOrderSnapshotTask(t *testing.T) {
	task, err := NewOrderSnapshotTask(42)
	require.NoError(t, err)
	assert.Equal(t, TaskOrderSnapshot, task.Type())

	var payload OrderSnapshotPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, int64(42), payload.OrderID)

	_, err = NewOrderSnapshotTask(0)
	assert.Error(t, err)
}

func TestNewSnapshotSweepTaskDefaultsLimit(t *testing.T) {
	task, err := NewSnapshotSweepTask(0)
	require.NoError(t, err)
	assert.Equal(t, TaskSnapshotSweep, task.Type())

	var payload SnapshotSweepPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, defaultSweepLimit, payload.Limit)
}

func TestOrderSnapshotJobHandle(t *testing.T) {
	svc := &fakeSnapshotter{}
	job := newSnapshotJob(svc)

	task, err := NewOrderSnapshotTask(42)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, []int64{42}, svc.calls)
}

func TestOrderSnapshotJobSkipsBadPayload(t *testing.T) {
	svc := &fakeSnapshotter{}
	job := newSnapshotJob(svc)

	err := job.Handle(context.Background(), asynq.NewTask(TaskOrderSnapshot, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), asynq.NewTask(TaskOrderSnapshot, []byte(`{"order_id":0}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, svc.calls)
}

func TestOrderSnapshotJobErrors(t *testing.T) {
	task, err := NewOrderSnapshotTask(7)
	require.NoError(t, err)

	missing := &fakeSnapshotter{err: fmt.Errorf("load order 7: %w", quote.ErrNotFound)}
	err = newSnapshotJob(missing).Handle(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.ErrorIs(t, err, quote.ErrNotFound)

	boom := errors.New("db down")
	failing := &fakeSnapshotter{err: boom}
	err = newSnapshotJob(failing).Handle(context.Background(), task)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, asynq.SkipRetry)

	var nilJob *OrderSnapshotJob
	assert.Error(t, nilJob.Handle(context.Background(), task))
}

type fakeLister struct {
	ids   []int64
	limit int
	err   error
}

func (f *fakeLister) PendingSnapshotOrders(ctx context.Context, limit int) ([]int64, error) {
	f.limit = limit
	return f.ids, f.err
}

type fakeEnqueuer struct {
	queued    []int64
	conflicts map[int64]bool
	err       error
}

func (f *fakeEnqueuer) EnqueueOrderSnapshot(ctx context.Context, orderID int64) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.conflicts[orderID] {
		return nil, asynq.ErrTaskIDConflict
	}
	f.queued = append(f.queued, orderID)
	return &asynq.TaskInfo{ID: orderSnapshotTaskID(orderID), Queue: QueueDefault}, nil
}

func TestSnapshotSweepJobHandle(t *testing.T) {
	lister := &fakeLister{ids: []int64{1, 2, 3}}
	enqueuer := &fakeEnqueuer{conflicts: map[int64]bool{2: true}}
	job := NewSnapshotSweepJob(lister, enqueuer, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewSnapshotSweepTask(50)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 50, lister.limit)
	assert.Equal(t, []int64{1, 3}, enqueuer.queued)
}

func TestSnapshotSweepJobErrors(t *testing.T) {
	task, err := NewSnapshotSweepTask(10)
	require.NoError(t, err)
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())

	boom := errors.New("redis down")
	job := NewSnapshotSweepJob(&fakeLister{ids: []int64{1}}, &fakeEnqueuer{err: boom}, nil, metrics)
	assert.ErrorIs(t, job.Handle(context.Background(), task), boom)

	job = NewSnapshotSweepJob(&fakeLister{err: boom}, &fakeEnqueuer{}, nil, metrics)
	assert.ErrorIs(t, job.Handle(context.Background(), task), boom)

	job = NewSnapshotSweepJob(&fakeLister{}, &fakeEnqueuer{}, nil, metrics)
	assert.ErrorIs(t, job.Handle(context.Background(), asynq.NewTask(TaskSnapshotSweep, []byte("]"))), asynq.SkipRetry)
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return f.info, f.err
}

func TestHandlerHealth(t *testing.T) {
	serve := func(h *Handler) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		h.MountRoutes(r)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
		return rr
	}

	rr := serve(NewHandler(fakeInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 3, Retry: 1}}, nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"queue":"default","pending":3,"active":0,"retry":1,"archived":0,"paused":false}`, rr.Body.String())

	rr = serve(NewHandler(nil, nil))
	assert.JSONEq(t, `{"queue":"default","pending":0,"active":0,"retry":0,"archived":0,"paused":false}`, rr.Body.String())

	rr = serve(NewHandler(fakeInspector{err: errors.New("down")}, nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "queue unavailable")
}
