package jobrun

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"gorm.io/gorm"

	"github.com/pandoapps/videoSoryBoard/internal/data/repos"
	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	jobrt "github.com/pandoapps/videoSoryBoard/internal/jobs/runtime"
	"github.com/pandoapps/videoSoryBoard/internal/observability"
	"github.com/pandoapps/videoSoryBoard/internal/platform/dbctx"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
	"github.com/pandoapps/videoSoryBoard/internal/services"
)

// Activities executes one handler run per Tick against the job_run row named by
// the workflow ID.
type Activities struct {
	Log         *logger.Logger
	DB          *gorm.DB
	Jobs        repos.JobRunRepo
	Events      repos.JobRunEventRepo
	Registry    *jobrt.Registry
	Notify      services.JobNotifier
	Metrics     *observability.Metrics
	MaxAttempts int
}

func (a *Activities) Tick(ctx context.Context, jobID string) (TickResult, error) {
	res := TickResult{JobID: strings.TrimSpace(jobID)}
	if a == nil || a.DB == nil || a.Jobs == nil || a.Registry == nil {
		return res, fmt.Errorf("jobrun: activity not configured")
	}
	id, err := uuid.Parse(res.JobID)
	if err != nil || id == uuid.Nil {
		return res, fmt.Errorf("jobrun: invalid job_id %q", jobID)
	}

	job, err := a.load(ctx, id)
	if err != nil {
		return res, err
	}
	if !a.runnable(job) {
		return a.result(job), nil
	}

	now := time.Now().UTC()
	claimed, err := a.Jobs.UpdateFieldsUnlessStatus(a.dbc(ctx), id, []string{types.JobStatusCanceled, types.JobStatusSucceeded}, map[string]interface{}{
		"status":       types.JobStatusRunning,
		"attempts":     gorm.Expr("attempts + 1"),
		"locked_at":    now,
		"heartbeat_at": now,
		"run_after":    nil,
		"updated_at":   now,
	})
	if err != nil {
		return res, err
	}
	if !claimed {
		if job, err = a.load(ctx, id); err != nil {
			return res, err
		}
		return a.result(job), nil
	}
	job.Status = types.JobStatusRunning
	job.Attempts++
	job.LockedAt = &now
	job.HeartbeatAt = &now
	job.RunAfter = nil

	stop := a.heartbeat(ctx, id)
	defer stop()

	jc := jobrt.NewContext(ctx, a.DB, job, a.Jobs, a.Events, a.Notify)
	h, ok := a.Registry.Get(job.JobType)
	if !ok {
		a.Log.Warn("No handler registered for job_type", "job_type", job.JobType, "job_id", job.ID)
		jc.Fail("dispatch", fmt.Errorf("no handler registered for job_type=%s", job.JobType))
		return a.result(job), nil
	}
	started := time.Now()
	outcome := jobrt.Execute(ctx, a.Log, h, jc)
	a.Metrics.ObserveJob(job.JobType, outcome, time.Since(started))

	// jc keeps the in-memory row in step with every lifecycle write.
	return a.result(job), nil
}

// runnable mirrors the claim-loop rules: queued jobs, and non-terminal failed jobs
// with attempts left.
func (a *Activities) runnable(job *types.JobRun) bool {
	switch job.Status {
	case types.JobStatusQueued, types.JobStatusRunning:
		return true
	case types.JobStatusFailed:
		return job.Retryable(a.maxAttempts())
	}
	return false
}

func (a *Activities) maxAttempts() int {
	if a.MaxAttempts < 1 {
		return 3
	}
	return a.MaxAttempts
}

func (a *Activities) result(job *types.JobRun) TickResult {
	out := TickResult{
		JobID:     job.ID.String(),
		JobType:   job.JobType,
		Status:    job.Status,
		Stage:     job.Stage,
		Message:   job.Message,
		WaitUntil: job.RunAfter,
	}
	if job.Status == types.JobStatusFailed {
		out.Retryable = job.Retryable(a.maxAttempts())
	}
	return out
}

func (a *Activities) dbc(ctx context.Context) dbctx.Context {
	return dbctx.Context{Ctx: ctx, Tx: a.DB}
}

func (a *Activities) load(ctx context.Context, id uuid.UUID) (*types.JobRun, error) {
	rows, err := a.Jobs.GetByIDs(a.dbc(ctx), []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || rows[0] == nil {
		return nil, fmt.Errorf("jobrun: job %s not found", id)
	}
	return rows[0], nil
}

func (a *Activities) heartbeat(ctx context.Context, id uuid.UUID) func() {
	done := make(chan struct{})
	go func() {
		temporalHB := time.NewTicker(10 * time.Second)
		defer temporalHB.Stop()
		dbHB := time.NewTicker(30 * time.Second)
		defer dbHB.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-temporalHB.C:
				activity.RecordHeartbeat(ctx)
			case <-dbHB.C:
				_ = a.Jobs.Heartbeat(a.dbc(ctx), id)
			}
		}
	}()
	return func() { close(done) }
}
