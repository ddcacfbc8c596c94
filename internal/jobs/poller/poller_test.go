package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constant(out Outcome, err error) CheckFunc {
	return func(context.Context, string) (Outcome, error) { return out, err }
}

func TestStepPendingReschedules(t *testing.T) {
	d := Step(context.Background(), ClipSpec, State{ExternalID: "t"}, constant(Outcome{Status: StatusPending}, nil))
	assert.Equal(t, ActionReschedule, d.Action)
	assert.Equal(t, 30*time.Second, d.After)
	assert.Equal(t, 1, d.State.Attempt)
	assert.Equal(t, "t", d.State.ExternalID)
}

func TestStepCompleted(t *testing.T) {
	d := Step(context.Background(), ClipSpec, State{Attempt: 3}, constant(Outcome{Status: StatusCompleted, URL: "https://x/v.mp4", DurationSeconds: 5}, nil))
	require.Equal(t, ActionDone, d.Action)
	assert.Equal(t, "https://x/v.mp4", d.Outcome.URL)
	assert.Equal(t, 4, d.State.Attempt)
}

func TestStepFailedUsesProviderMessageOrDefault(t *testing.T) {
	d := Step(context.Background(), ClipSpec, State{}, constant(Outcome{Status: StatusFailed, Error: "nsfw"}, nil))
	assert.Equal(t, ActionFailed, d.Action)
	assert.Equal(t, "nsfw", d.Message)

	d = Step(context.Background(), ClipSpec, State{}, constant(Outcome{Status: StatusFailed}, nil))
	assert.Equal(t, "Mini-video generation failed", d.Message)
}

func TestStepTimesOutAtCeiling(t *testing.T) {
	d := Step(context.Background(), ImageSpec, State{Attempt: ImageSpec.MaxAttempts - 1}, constant(Outcome{Status: StatusPending}, nil))
	assert.Equal(t, ActionTimedOut, d.Action)
	assert.Equal(t, "Generation timed out", d.Message)
}

func TestStepErrorBacksOffThenFails(t *testing.T) {
	boom := errors.New("connection reset")
	d := Step(context.Background(), ClipSpec, State{}, constant(Outcome{}, boom))
	assert.Equal(t, ActionReschedule, d.Action)
	assert.Equal(t, 60*time.Second, d.After)

	d = Step(context.Background(), ClipSpec, State{Attempt: 59}, constant(Outcome{}, boom))
	assert.Equal(t, ActionFailed, d.Action)
	assert.Equal(t, "Mini-video polling failed: connection reset", d.Message)
}

func TestStepBoundedTermination(t *testing.T) {
	st := State{ExternalID: "x"}
	checks := 0
	for {
		d := Step(context.Background(), FinalVideoSpec, st, func(context.Context, string) (Outcome, error) {
			checks++
			if checks%3 == 0 {
				return Outcome{}, errors.New("flaky")
			}
			return Outcome{Status: StatusPending}, nil
		})
		st = d.State
		if d.Action != ActionReschedule {
			assert.Equal(t, FinalVideoSpec.MaxAttempts, checks)
			return
		}
		require.Less(t, checks, 1000)
	}
}

func TestSpecValidate(t *testing.T) {
	assert.NoError(t, ClipSpec.Validate())
	assert.Error(t, Spec{MaxAttempts: 1}.Validate())
	assert.Error(t, Spec{Interval: time.Second}.Validate())
}
