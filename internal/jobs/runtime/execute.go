package runtime

import (
	"context"
	"fmt"

	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
)

// Outcomes reported by Execute.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeYielded   = "yielded"
	OutcomePanic     = "panic"
)

/*
Execute runs h against a claimed job and settles the row afterwards:
  - a returned error fails the job so the executor can retry it
  - a panic fails the job with the recovered value
  - a handler that returns nil without settling or yielding succeeds implicitly

Both the claim-loop worker and the Temporal activity go through here.
*/
func Execute(ctx context.Context, log *logger.Logger, h Handler, jc *Context) (outcome string) {
	job := jc.Job
	runCtx, cancel := context.WithTimeout(ctx, TimeoutFor(h))
	defer cancel()
	jc.Ctx = runCtx

	outcome = OutcomeSucceeded
	defer func() {
		if r := recover(); r != nil {
			log.Error("Job handler panic", "job_id", job.ID, "job_type", job.JobType, "panic", r)
			outcome = OutcomePanic
			jc.Ctx = ctx
			jc.Fail("panic", fmt.Errorf("panic: %v", r))
		}
	}()

	if runErr := h.Run(jc); runErr != nil {
		log.Warn("Job handler failed", "job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts, "error", runErr)
		// Record on the parent ctx so a timed-out run still persists its failure.
		jc.Ctx = ctx
		jc.Fail("run", runErr)
		return OutcomeFailed
	}
	switch {
	case jc.Yielded():
		return OutcomeYielded
	case job.Status == types.JobStatusRunning:
		jc.Succeed("done", nil)
	case job.Status == types.JobStatusFailed:
		return OutcomeFailed
	}
	return outcome
}
