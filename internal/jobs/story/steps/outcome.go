package steps

import (
	"context"

	"github.com/google/uuid"

	"github.com/pandoapps/videoSoryBoard/internal/clients/imagegen"
	"github.com/pandoapps/videoSoryBoard/internal/clients/videogen"
	"github.com/pandoapps/videoSoryBoard/internal/jobs/poller"
	jobrt "github.com/pandoapps/videoSoryBoard/internal/jobs/runtime"
)

// VideoOutcome maps a provider status onto the poller's vocabulary. A completed
// task without a URL is still pending.
func VideoOutcome(vs videogen.VideoStatus) poller.Outcome {
	switch vs.State {
	case videogen.StateCompleted:
		if vs.VideoURL == "" {
			return poller.Outcome{Status: poller.StatusPending}
		}
		return poller.Outcome{Status: poller.StatusCompleted, URL: vs.VideoURL, DurationSeconds: vs.DurationSeconds}
	case videogen.StateFailed:
		return poller.Outcome{Status: poller.StatusFailed, Error: vs.Error}
	}
	return poller.Outcome{Status: poller.StatusPending}
}

func ImageOutcome(is imagegen.ImageStatus) poller.Outcome {
	switch is.State {
	case imagegen.StateSuccess:
		if is.ImageURL == "" {
			return poller.Outcome{Status: poller.StatusPending}
		}
		return poller.Outcome{Status: poller.StatusCompleted, URL: is.ImageURL}
	case imagegen.StateFailed:
		msg := is.Error
		if msg == "" {
			msg = "Image generation failed"
		}
		return poller.Outcome{Status: poller.StatusFailed, Error: msg}
	}
	return poller.Outcome{Status: poller.StatusPending}
}

// PollImage runs one status check for the image task recorded in st.
func PollImage(jc *jobrt.Context, d Deps, userID uuid.UUID, st poller.State) poller.Decision {
	dbc := jc.DBContext()
	return poller.Step(jc.Ctx, poller.ImageSpec, st, func(ctx context.Context, taskID string) (poller.Outcome, error) {
		creds, err := d.Gens.ImageCredentials(dbc, userID)
		if err != nil {
			return poller.Outcome{}, err
		}
		is, err := d.Gens.Image.Poll(ctx, creds, taskID)
		if err != nil {
			return poller.Outcome{}, err
		}
		return ImageOutcome(is), nil
	})
}
