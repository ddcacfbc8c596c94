package jobrun

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/workflow"

	types "github.com/pandoapps/videoSoryBoard/internal/domain"
)

const (
	defaultPollInterval  = 2 * time.Second
	retryDelay           = 30 * time.Second
	maxSleep             = 15 * time.Minute
	continueTickLimit    = 2000
	continueHistoryLimit = 15000
)

// Workflow drives one job_run row to a terminal status. The workflow ID is the job ID.
// A yielded job sleeps until its run_after; a failed job with attempts left is
// ticked again after retryDelay.
func Workflow(ctx workflow.Context) error {
	jobID := strings.TrimSpace(workflow.GetInfo(ctx).WorkflowExecution.ID)
	if jobID == "" {
		return fmt.Errorf("jobrun: missing job_id")
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Hour,
		HeartbeatTimeout:    30 * time.Second,
	})

	for ticks := 1; ; ticks++ {
		var out TickResult
		if err := workflow.ExecuteActivity(ctx, ActivityTick, jobID).Get(ctx, &out); err != nil {
			return err
		}

		var wait time.Duration
		switch out.Status {
		case types.JobStatusSucceeded, types.JobStatusCanceled:
			return nil
		case types.JobStatusFailed:
			if !out.Retryable {
				return fmt.Errorf("job %s failed (stage=%s)", out.JobType, out.Stage)
			}
			wait = retryDelay
		default:
			wait = nextWait(ctx, out.WaitUntil)
		}
		if err := workflow.Sleep(ctx, wait); err != nil {
			return err
		}
		if shouldContinueAsNew(ctx, ticks) {
			return workflow.NewContinueAsNewError(ctx, Workflow)
		}
	}
}

func nextWait(ctx workflow.Context, waitUntil *time.Time) time.Duration {
	if waitUntil == nil || waitUntil.IsZero() {
		return defaultPollInterval
	}
	d := waitUntil.Sub(workflow.Now(ctx))
	if d <= 0 {
		return defaultPollInterval
	}
	if d > maxSleep {
		return maxSleep
	}
	return d
}

func shouldContinueAsNew(ctx workflow.Context, ticks int) bool {
	if ticks >= continueTickLimit {
		return true
	}
	info := workflow.GetInfo(ctx)
	return info != nil && info.GetCurrentHistoryLength() >= continueHistoryLimit
}
