package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pandoapps/videoSoryBoard/internal/data/repos"
	"github.com/pandoapps/videoSoryBoard/internal/data/repos/testutil"
	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	"github.com/pandoapps/videoSoryBoard/internal/jobs/runtime"
	"github.com/pandoapps/videoSoryBoard/internal/platform/dbctx"
	"github.com/pandoapps/videoSoryBoard/internal/services"
)

type funcHandler struct {
	name string
	run  func(*runtime.Context) error
}

func (h funcHandler) Type() string                  { return h.name }
func (h funcHandler) Run(jc *runtime.Context) error { return h.run(jc) }

type harness struct {
	w    *Worker
	repo repos.JobRunRepo
	reg  *runtime.Registry
}

func newHarness(t *testing.T) harness {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	repo := repos.NewJobRunRepo(db, log)
	events := repos.NewJobRunEventRepo(db, log)
	reg := runtime.NewRegistry()
	w := NewWorker(db, log, repo, events, reg, services.NewJobNotifier(&services.RecordingEmitter{}), nil, Options{Concurrency: 1, MaxAttempts: 2, RetryDelay: time.Hour})
	return harness{w: w, repo: repo, reg: reg}
}

func (h harness) enqueue(t *testing.T, jobType string) *types.JobRun {
	t.Helper()
	job := &types.JobRun{OwnerUserID: uuid.New(), JobType: jobType, Status: types.JobStatusQueued}
	_, err := h.repo.Create(dbctx.Context{Ctx: context.Background()}, []*types.JobRun{job})
	require.NoError(t, err)
	return job
}

func (h harness) reload(t *testing.T, id uuid.UUID) *types.JobRun {
	t.Helper()
	rows, err := h.repo.GetByIDs(dbctx.Context{Ctx: context.Background()}, []uuid.UUID{id})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	return rows[0]
}

func TestRunOnceSucceedsImplicitly(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.reg.Register(funcHandler{name: "noop", run: func(*runtime.Context) error { return nil }}))
	job := h.enqueue(t, "noop")

	ran, err := h.w.RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, ran)
	assert.Equal(t, types.JobStatusSucceeded, h.reload(t, job.ID).Status)

	ran, err = h.w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)
}

func TestRunOnceYieldedJobWaitsForRunAfter(t *testing.T) {
	h := newHarness(t)
	calls := 0
	require.NoError(t, h.reg.Register(funcHandler{name: "poll", run: func(jc *runtime.Context) error {
		calls++
		return jc.Yield("polling", time.Hour, map[string]int{"attempt": calls}, "")
	}}))
	job := h.enqueue(t, "poll")

	ran, err := h.w.RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, ran)
	row := h.reload(t, job.ID)
	assert.Equal(t, types.JobStatusQueued, row.Status)

	ran, err = h.w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, ran, "yielded job must not be claimed before run_after")
	assert.Equal(t, 1, calls)
}

func TestRunOnceRecordsErrorsAndPanics(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.reg.Register(funcHandler{name: "boom", run: func(*runtime.Context) error { return errors.New("provider down") }}))
	require.NoError(t, h.reg.Register(funcHandler{name: "panic", run: func(*runtime.Context) error { panic("nil map") }}))
	failing := h.enqueue(t, "boom")
	_, err := h.w.RunOnce(context.Background())
	require.NoError(t, err)
	row := h.reload(t, failing.ID)
	assert.Equal(t, types.JobStatusFailed, row.Status)
	assert.Equal(t, "provider down", row.Error)

	panicking := h.enqueue(t, "panic")
	_, err = h.w.RunOnce(context.Background())
	require.NoError(t, err)
	row = h.reload(t, panicking.ID)
	assert.Equal(t, types.JobStatusFailed, row.Status)
	assert.Contains(t, row.Error, "nil map")
}

func TestRunOnceMissingHandler(t *testing.T) {
	h := newHarness(t)
	job := h.enqueue(t, "unknown")
	_, err := h.w.RunOnce(context.Background())
	require.NoError(t, err)
	row := h.reload(t, job.ID)
	assert.Equal(t, types.JobStatusFailed, row.Status)
	assert.Equal(t, "dispatch", row.Stage)
}
