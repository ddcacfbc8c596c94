package jobrun

import "time"

const (
	WorkflowName = "job_run"
	ActivityTick = "job_run_tick"
)

// TickResult is what one activity execution left the job_run row in.
type TickResult struct {
	JobID     string     `json:"job_id"`
	JobType   string     `json:"job_type,omitempty"`
	Status    string     `json:"status"`
	Stage     string     `json:"stage,omitempty"`
	Message   string     `json:"message,omitempty"`
	WaitUntil *time.Time `json:"wait_until,omitempty"`
	// Retryable is set on a failed run that still has attempts left.
	Retryable bool `json:"retryable,omitempty"`
}
