package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/pandoapps/videoSoryBoard/internal/data/repos"
	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	"github.com/pandoapps/videoSoryBoard/internal/platform/ctxutil"
	"github.com/pandoapps/videoSoryBoard/internal/platform/dbctx"
	"github.com/pandoapps/videoSoryBoard/internal/services"
)

/*
runtime.Context is the execution handle for a single job run.
Handlers never touch job_run directly; every lifecycle write goes through
Progress, Yield, Fail or Succeed so cancellation guards and notifications stay in one place.
*/
type Context struct {
	Ctx         context.Context
	DB          *gorm.DB
	Job         *types.JobRun
	Repo        repos.JobRunRepo
	Events      repos.JobRunEventRepo
	Notify      services.JobNotifier
	LastMessage string
	payload     map[string]any
}

// WaitUntilKey is the job_run.result field a yielded job sleeps until.
const WaitUntilKey = "wait_until"

const stateKey = "state"

var guardCanceled = []string{types.JobStatusCanceled}

func NewContext(ctx context.Context, db *gorm.DB, job *types.JobRun, repo repos.JobRunRepo, events repos.JobRunEventRepo, notify services.JobNotifier) *Context {
	c := &Context{
		Ctx:    ctx,
		DB:     db,
		Job:    job,
		Repo:   repo,
		Events: events,
		Notify: notify,
	}
	_ = c.decodePayload()
	c.applyTraceData()
	return c
}

func (c *Context) decodePayload() error {
	if c.Job == nil {
		return nil
	}
	if len(c.Job.Payload) == 0 {
		c.payload = map[string]any{}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil {
		c.payload = map[string]any{}
		return err
	}
	c.payload = m
	return nil
}

func (c *Context) applyTraceData() {
	if c == nil || c.Ctx == nil {
		return
	}
	payload := c.Payload()
	traceID := payloadString(payload, "trace_id")
	reqID := payloadString(payload, "request_id")
	if traceID == "" && reqID == "" {
		return
	}
	c.Ctx = ctxutil.WithTraceData(c.Ctx, &ctxutil.TraceData{
		TraceID:   traceID,
		RequestID: reqID,
	})
}

func payloadString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// Payload never returns nil.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

func (c *Context) PayloadString(key string) string {
	return payloadString(c.Payload(), key)
}

func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	s := c.PayloadString(key)
	if s == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

func (c *Context) ctx() context.Context {
	if c == nil || c.Ctx == nil {
		return context.Background()
	}
	return c.Ctx
}

func (c *Context) dbc() dbctx.Context {
	return dbctx.Context{Ctx: c.ctx(), Tx: c.DB}
}

// DBContext is the handle handlers pass to repos and services.
func (c *Context) DBContext() dbctx.Context { return c.dbc() }

func (c *Context) persist(updates map[string]interface{}) bool {
	if c.Repo == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return true
	}
	ok, err := c.Repo.UpdateFieldsUnlessStatus(c.dbc(), c.Job.ID, guardCanceled, updates)
	if err != nil {
		return false
	}
	return ok
}

func (c *Context) record(kind types.JobEventKind, data map[string]any) {
	if c.Events == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	var raw datatypes.JSON
	if data != nil {
		b, _ := json.Marshal(data)
		raw = datatypes.JSON(b)
	}
	_ = c.Events.Append(c.dbc(), &types.JobRunEvent{
		JobID:       c.Job.ID,
		OwnerUserID: c.Job.OwnerUserID,
		JobType:     c.Job.JobType,
		EntityID:    c.Job.EntityID,
		Kind:        kind,
		Status:      c.Job.Status,
		Stage:       c.Job.Stage,
		Progress:    c.Job.Progress,
		Message:     firstNonEmpty(c.Job.Message, c.Job.Error),
		Data:        raw,
	})
}

// Update is for low-level writes not covered by the lifecycle helpers.
func (c *Context) Update(updates map[string]any) error {
	if c.Job == nil || c.Job.ID == uuid.Nil {
		return nil
	}
	_, err := c.Repo.UpdateFieldsUnlessStatus(c.dbc(), c.Job.ID, guardCanceled, toIfaceMap(updates))
	return err
}

func (c *Context) Progress(stage string, pct int, msg string) {
	if c == nil {
		return
	}
	now := time.Now().UTC()
	if !c.persist(map[string]interface{}{
		"stage":        stage,
		"progress":     pct,
		"message":      msg,
		"heartbeat_at": now,
		"updated_at":   now,
	}) {
		return
	}
	if c.Job != nil {
		c.Job.Stage = stage
		c.Job.Progress = pct
		c.Job.Message = msg
		c.Job.HeartbeatAt = &now
		c.Job.UpdatedAt = now
	}
	c.LastMessage = msg
	c.record(types.JobEventProgress, nil)
	if c.Notify != nil && c.Job != nil {
		c.Notify.JobProgress(c.Job.OwnerUserID, c.Job, stage, pct, msg)
	}
}

/*
Yield parks the job until now+after. The row goes back to queued with run_after set
and result.wait_until recorded; the local worker will not claim it early and the
Temporal workflow sleeps until wait_until before the next tick. state is stored under
result.state and read back with State on the next run. A yield is a successful step,
so the retry counter starts over.
*/
func (c *Context) Yield(stage string, after time.Duration, state any, msg string) error {
	if c == nil {
		return nil
	}
	now := time.Now().UTC()
	wake := now.Add(after)
	result := map[string]any{WaitUntilKey: wake.Format(time.RFC3339Nano)}
	if state != nil {
		result[stateKey] = state
	}
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode yield state: %w", err)
	}
	res := datatypes.JSON(b)
	if !c.persist(map[string]interface{}{
		"status":       types.JobStatusQueued,
		"stage":        stage,
		"message":      msg,
		"result":       res,
		"run_after":    wake,
		"attempts":     0,
		"locked_at":    nil,
		"heartbeat_at": now,
		"updated_at":   now,
	}) {
		return nil
	}
	if c.Job != nil {
		c.Job.Status = types.JobStatusQueued
		c.Job.Stage = stage
		c.Job.Message = msg
		c.Job.Result = res
		c.Job.RunAfter = &wake
		c.Job.Attempts = 0
		c.Job.LockedAt = nil
		c.Job.HeartbeatAt = &now
		c.Job.UpdatedAt = now
	}
	c.record(types.JobEventYielded, map[string]any{WaitUntilKey: wake})
	if c.Notify != nil && c.Job != nil {
		c.Notify.JobProgress(c.Job.OwnerUserID, c.Job, stage, c.Job.Progress, msg)
	}
	return nil
}

// Yielded reports whether the handler parked the job during this run.
func (c *Context) Yielded() bool {
	return c != nil && c.Job != nil && c.Job.Status == types.JobStatusQueued
}

// State decodes the state stored by the previous Yield. ok is false on a first run.
func (c *Context) State(out any) (bool, error) {
	if c == nil || c.Job == nil || len(c.Job.Result) == 0 {
		return false, nil
	}
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(c.Job.Result, &wrapper); err != nil {
		return false, fmt.Errorf("decode job result: %w", err)
	}
	raw, ok := wrapper[stateKey]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode job state: %w", err)
	}
	return true, nil
}

// Fail records err; the job is claimed again until it runs out of attempts.
func (c *Context) Fail(stage string, err error) { c.fail(stage, err, false) }

// FailTerminal records err and ends the job for good.
func (c *Context) FailTerminal(stage string, err error) { c.fail(stage, err, true) }

func (c *Context) fail(stage string, err error, terminal bool) {
	if c == nil {
		return
	}
	now := time.Now().UTC()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if !c.persist(map[string]interface{}{
		"status":        types.JobStatusFailed,
		"stage":         stage,
		"message":       "",
		"error":         msg,
		"terminal":      terminal,
		"last_error_at": now,
		"locked_at":     nil,
		"updated_at":    now,
	}) {
		return
	}
	if c.Job != nil {
		c.Job.Status = types.JobStatusFailed
		c.Job.Terminal = terminal
		c.Job.Stage = stage
		c.Job.Message = ""
		c.Job.Error = msg
		c.Job.LastErrorAt = &now
		c.Job.LockedAt = nil
		c.Job.UpdatedAt = now
	}
	c.record(types.JobEventFailed, nil)
	if c.Notify != nil && c.Job != nil {
		c.Notify.JobFailed(c.Job.OwnerUserID, c.Job, stage, msg)
	}
}

func (c *Context) Succeed(finalStage string, result any) {
	if c == nil {
		return
	}
	now := time.Now().UTC()
	var res datatypes.JSON
	if result != nil {
		b, _ := json.Marshal(result)
		res = datatypes.JSON(b)
	}
	if !c.persist(map[string]interface{}{
		"status":       types.JobStatusSucceeded,
		"stage":        finalStage,
		"progress":     100,
		"message":      "",
		"error":        "",
		"result":       res,
		"locked_at":    nil,
		"run_after":    nil,
		"heartbeat_at": now,
		"updated_at":   now,
	}) {
		return
	}
	if c.Job != nil {
		c.Job.Status = types.JobStatusSucceeded
		c.Job.Stage = finalStage
		c.Job.Progress = 100
		c.Job.Message = ""
		c.Job.Error = ""
		c.Job.Result = res
		c.Job.LockedAt = nil
		c.Job.RunAfter = nil
		c.Job.HeartbeatAt = &now
		c.Job.UpdatedAt = now
	}
	c.record(types.JobEventSucceeded, nil)
	if c.Notify != nil && c.Job != nil {
		c.Notify.JobDone(c.Job.OwnerUserID, c.Job)
	}
}

func toIfaceMap(in map[string]any) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
