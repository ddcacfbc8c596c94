// Package poller drives bounded, resumable polling of an external generation task.
//
// A poll loop never blocks a goroutine between checks: each Step returns a Decision
// and the caller persists State and yields the job until the next check is due.
package poller

import (
	"context"
	"fmt"
	"time"
)

type Spec struct {
	Interval           time.Duration
	MaxAttempts        int
	ErrorBackoffFactor int
	TimeoutMessage     string
	PollFailedPrefix   string
	FailedMessage      string
}

// State survives restarts; it is stored in job_run.result between checks.
type State struct {
	ExternalID string `json:"external_id"`
	TargetID   string `json:"target_id,omitempty"`
	Attempt    int    `json:"attempt"`
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Outcome is what one provider status check reported.
type Outcome struct {
	Status          Status
	URL             string
	DurationSeconds int
	Error           string
}

type Action int

const (
	ActionReschedule Action = iota
	ActionDone
	ActionFailed
	ActionTimedOut
)

func (a Action) String() string {
	switch a {
	case ActionReschedule:
		return "reschedule"
	case ActionDone:
		return "done"
	case ActionFailed:
		return "failed"
	case ActionTimedOut:
		return "timed_out"
	}
	return "unknown"
}

type Decision struct {
	Action  Action
	After   time.Duration
	Outcome Outcome
	Message string
	State   State
}

type CheckFunc func(ctx context.Context, externalID string) (Outcome, error)

/*
Step performs one check and decides what happens next.
Every call counts as an attempt, including failed checks. A check error backs off by
ErrorBackoffFactor and only becomes terminal when the attempt ceiling is reached.
*/
func Step(ctx context.Context, spec Spec, st State, check CheckFunc) Decision {
	spec = spec.withDefaults()
	out, err := check(ctx, st.ExternalID)
	st.Attempt++
	exhausted := st.Attempt >= spec.MaxAttempts

	if err != nil {
		if exhausted {
			return Decision{Action: ActionFailed, Message: spec.PollFailedPrefix + err.Error(), State: st}
		}
		return Decision{Action: ActionReschedule, After: spec.Interval * time.Duration(spec.ErrorBackoffFactor), State: st}
	}

	switch out.Status {
	case StatusCompleted:
		return Decision{Action: ActionDone, Outcome: out, State: st}
	case StatusFailed:
		msg := out.Error
		if msg == "" {
			msg = spec.FailedMessage
		}
		return Decision{Action: ActionFailed, Outcome: out, Message: msg, State: st}
	}
	if exhausted {
		return Decision{Action: ActionTimedOut, Message: spec.TimeoutMessage, State: st}
	}
	return Decision{Action: ActionReschedule, After: spec.Interval, State: st}
}

func (s Spec) withDefaults() Spec {
	if s.Interval <= 0 {
		s.Interval = 5 * time.Second
	}
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = 1
	}
	if s.ErrorBackoffFactor <= 0 {
		s.ErrorBackoffFactor = 1
	}
	if s.TimeoutMessage == "" {
		s.TimeoutMessage = "Generation timed out"
	}
	if s.FailedMessage == "" {
		s.FailedMessage = "Generation failed"
	}
	return s
}

// Validate rejects specs that would never terminate or would spin.
func (s Spec) Validate() error {
	if s.Interval <= 0 {
		return fmt.Errorf("poller: interval must be positive")
	}
	if s.MaxAttempts <= 0 {
		return fmt.Errorf("poller: max attempts must be positive")
	}
	return nil
}

var (
	// ClipSpec polls a clip render; the first check happens FirstClipCheck after submit.
	ClipSpec = Spec{
		Interval:           30 * time.Second,
		MaxAttempts:        60,
		ErrorBackoffFactor: 2,
		TimeoutMessage:     "Mini-video generation timed out",
		PollFailedPrefix:   "Mini-video polling failed: ",
		FailedMessage:      "Mini-video generation failed",
	}
	FinalVideoSpec = Spec{
		Interval:           15 * time.Second,
		MaxAttempts:        120,
		ErrorBackoffFactor: 2,
		TimeoutMessage:     "Video generation timed out",
		PollFailedPrefix:   "Video generation polling failed: ",
		FailedMessage:      "Video generation failed",
	}
	ImageSpec = Spec{
		Interval:           5 * time.Second,
		MaxAttempts:        60,
		ErrorBackoffFactor: 1,
		TimeoutMessage:     "Generation timed out",
		PollFailedPrefix:   "Generation polling failed: ",
		FailedMessage:      "Generation failed",
	}
)

const FirstClipCheck = 60 * time.Second
