package final_video_poll

import (
	"context"
	"errors"
	"fmt"

	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	domain "github.com/pandoapps/videoSoryBoard/internal/domain/story"
	"github.com/pandoapps/videoSoryBoard/internal/jobs/poller"
	jobrt "github.com/pandoapps/videoSoryBoard/internal/jobs/runtime"
	"github.com/pandoapps/videoSoryBoard/internal/jobs/story/steps"
)

// Run polls a provider-rendered final video. The provider URL is stored as is and
// the video stage completes with it.
func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	videoID, ok := jc.PayloadUUID("video_id")
	if !ok {
		jc.FailTerminal("validate", fmt.Errorf("missing video_id"))
		return nil
	}
	s, ok := steps.LoadStory(jc, p.deps.Repos)
	if !ok {
		return nil
	}
	dbc := jc.DBContext()
	v, err := p.deps.Repos.Videos.GetByID(dbc, videoID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && v.StoryID != s.ID) {
		p.log.Error("Video record not found", "video_id", videoID)
		jc.Succeed("skipped", map[string]any{"video_id": videoID.String(), "reason": "video_gone"})
		return nil
	}
	if err != nil {
		return err
	}

	var st poller.State
	if _, err := jc.State(&st); err != nil {
		jc.FailTerminal("state", err)
		return nil
	}
	if st.ExternalID == "" {
		st = poller.State{ExternalID: jc.PayloadString("external_id"), TargetID: v.ID.String()}
	}
	if st.ExternalID == "" {
		st.ExternalID = v.ExternalJobID
	}
	if st.ExternalID == "" {
		jc.FailTerminal("validate", fmt.Errorf("missing external_id"))
		return nil
	}

	dec := poller.Step(jc.Ctx, poller.FinalVideoSpec, st, func(ctx context.Context, taskID string) (poller.Outcome, error) {
		creds, err := p.deps.Gens.VideoCredentials(dbc, s.UserID)
		if err != nil {
			return poller.Outcome{}, err
		}
		vs, err := p.deps.Gens.Video.Poll(ctx, creds, taskID)
		if err != nil {
			return poller.Outcome{}, err
		}
		return steps.VideoOutcome(vs), nil
	})

	switch dec.Action {
	case poller.ActionReschedule:
		return jc.Yield("poll", dec.After, dec.State, "Waiting for the final video")
	case poller.ActionDone:
		return p.complete(jc, s, v, dec.Outcome)
	}

	if err := p.deps.Repos.Videos.UpdateFields(dbc, v.ID, map[string]interface{}{"status": domain.VideoFailed}); err != nil {
		return err
	}
	steps.Settle(jc, p.deps, s, domain.StageVideo, dec.Message)
	return nil
}

func (p *Pipeline) complete(jc *jobrt.Context, s *types.Story, v *types.Video, out poller.Outcome) error {
	dbc := jc.DBContext()
	url := out.URL
	v.Status = domain.VideoCompleted
	v.VideoURL = &url
	if out.DurationSeconds > 0 {
		d := out.DurationSeconds
		v.DurationSeconds = &d
	}
	if err := p.deps.Repos.Videos.Update(dbc, v); err != nil {
		return err
	}
	if err := p.deps.Orch.CompleteStage(dbc, s, domain.StageVideo); err != nil {
		return err
	}
	if v.IsFinal {
		p.deps.Notify.FinalVideoReady(s.UserID, v)
	}
	jc.Succeed("done", map[string]any{"video_id": v.ID.String()})
	return nil
}
