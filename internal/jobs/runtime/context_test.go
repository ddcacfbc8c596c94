package runtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/pandoapps/videoSoryBoard/internal/data/repos"
	"github.com/pandoapps/videoSoryBoard/internal/data/repos/testutil"
	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	"github.com/pandoapps/videoSoryBoard/internal/platform/dbctx"
	"github.com/pandoapps/videoSoryBoard/internal/realtime"
	"github.com/pandoapps/videoSoryBoard/internal/services"
)

type pollState struct {
	ExternalID string `json:"external_id"`
	Attempt    int    `json:"attempt"`
}

func newRuntimeContext(t *testing.T) (*Context, *services.RecordingEmitter, repos.JobRunEventRepo) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	jobRepo := repos.NewJobRunRepo(db, log)
	eventRepo := repos.NewJobRunEventRepo(db, log)
	emitter := &services.RecordingEmitter{}

	job := &types.JobRun{
		OwnerUserID: uuid.New(),
		JobType:     "clip_generate",
		EntityType:  "video",
		Status:      types.JobStatusRunning,
		Payload:     datatypes.JSON(`{"video_id":"` + uuid.New().String() + `","trace_id":"tr-1"}`),
	}
	_, err := jobRepo.Create(dbctx.Context{Ctx: context.Background()}, []*types.JobRun{job})
	require.NoError(t, err)

	jc := NewContext(context.Background(), db, job, jobRepo, eventRepo, services.NewJobNotifier(emitter))
	return jc, emitter, eventRepo
}

func TestPayloadAccessors(t *testing.T) {
	jc, _, _ := newRuntimeContext(t)
	_, ok := jc.PayloadUUID("video_id")
	assert.True(t, ok)
	_, ok = jc.PayloadUUID("missing")
	assert.False(t, ok)
	assert.Equal(t, "tr-1", jc.PayloadString("trace_id"))
}

func TestYieldPersistsStateAndWakeTime(t *testing.T) {
	jc, emitter, events := newRuntimeContext(t)

	var st pollState
	ok, err := jc.State(&st)
	require.NoError(t, err)
	assert.False(t, ok, "fresh job has no state")

	before := time.Now().UTC()
	require.NoError(t, jc.Yield("polling", 30*time.Second, pollState{ExternalID: "task-9", Attempt: 2}, "waiting"))
	assert.True(t, jc.Yielded())

	rows, err := jc.Repo.GetByIDs(dbctx.Context{Ctx: context.Background()}, []uuid.UUID{jc.Job.ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, types.JobStatusQueued, row.Status)
	require.NotNil(t, row.RunAfter)
	assert.True(t, row.RunAfter.After(before.Add(29*time.Second)))

	var res map[string]any
	require.NoError(t, json.Unmarshal(row.Result, &res))
	assert.NotEmpty(t, res[WaitUntilKey])

	reloaded := &Context{Job: row}
	ok, err = reloaded.State(&st)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, pollState{ExternalID: "task-9", Attempt: 2}, st)

	assert.Contains(t, emitter.Events(), realtime.SSEEventJobProgress)
	evs, err := events.ListByJob(dbctx.Context{Ctx: context.Background()}, jc.Job.ID, 0)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, types.JobEventYielded, evs[0].Kind)
}

func TestSucceedAndFailRespectCancel(t *testing.T) {
	jc, emitter, _ := newRuntimeContext(t)
	dbc := dbctx.Context{Ctx: context.Background()}

	require.NoError(t, jc.Repo.UpdateFields(dbc, jc.Job.ID, map[string]interface{}{"status": types.JobStatusCanceled}))
	jc.Succeed("done", map[string]any{"ok": true})
	jc.Fail("run", assert.AnError)

	rows, err := jc.Repo.GetByIDs(dbc, []uuid.UUID{jc.Job.ID})
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusCanceled, rows[0].Status)
	assert.Empty(t, emitter.Events())
}

func TestSucceedClearsRunAfter(t *testing.T) {
	jc, emitter, _ := newRuntimeContext(t)
	require.NoError(t, jc.Yield("polling", time.Minute, nil, ""))
	jc.Job.Status = types.JobStatusRunning
	jc.Succeed("done", nil)

	rows, err := jc.Repo.GetByIDs(dbctx.Context{Ctx: context.Background()}, []uuid.UUID{jc.Job.ID})
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusSucceeded, rows[0].Status)
	assert.Nil(t, rows[0].RunAfter)
	assert.Equal(t, 100, rows[0].Progress)
	assert.Contains(t, emitter.Events(), realtime.SSEEventJobDone)
}

type fixedTimeout struct{}

func (fixedTimeout) Type() string           { return "x" }
func (fixedTimeout) Run(*Context) error     { return nil }
func (fixedTimeout) Timeout() time.Duration { return time.Second }

type plain struct{ name string }

func (p plain) Type() string     { return p.name }
func (plain) Run(*Context) error { return nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(plain{name: "b"}))
	require.NoError(t, r.Register(fixedTimeout{}))
	assert.Error(t, r.Register(plain{name: "b"}))
	assert.Error(t, r.Register(plain{}))
	assert.Equal(t, []string{"b", "x"}, r.Types())

	h, ok := r.Get("x")
	require.True(t, ok)
	assert.Equal(t, time.Second, TimeoutFor(h))
	h, _ = r.Get("b")
	assert.Equal(t, DefaultTimeout, TimeoutFor(h))
}
