package clip_generate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	domain "github.com/pandoapps/videoSoryBoard/internal/domain/story"
	"github.com/pandoapps/videoSoryBoard/internal/jobs/poller"
	jobrt "github.com/pandoapps/videoSoryBoard/internal/jobs/runtime"
	"github.com/pandoapps/videoSoryBoard/internal/jobs/story/steps"
	"github.com/pandoapps/videoSoryBoard/internal/services"
)

/*
Run submits one clip to the video provider, then polls it across yields.
The first run has no stored state and submits. Every later run performs one
poller.Step against the task recorded in the job state. A clip whose
external_job_id no longer matches that task was resubmitted or replaced, and
the stale run exits without touching it.
*/
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
	v, err := p.deps.Repos.Videos.GetByID(jc.DBContext(), videoID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && (v.StoryID != s.ID || v.IsFinal)) {
		jc.Succeed("skipped", map[string]any{"video_id": videoID.String(), "reason": "clip_gone"})
		return nil
	}
	if err != nil {
		return err
	}

	var st poller.State
	resumed, err := jc.State(&st)
	if err != nil {
		jc.FailTerminal("state", err)
		return nil
	}
	if !resumed || st.ExternalID == "" {
		return p.submit(jc, s, v)
	}
	if v.ExternalJobID != st.ExternalID {
		jc.Succeed("skipped", map[string]any{"video_id": v.ID.String(), "reason": "superseded"})
		return nil
	}
	return p.poll(jc, s, v, st)
}

func (p *Pipeline) submit(jc *jobrt.Context, s *types.Story, v *types.Video) error {
	dbc := jc.DBContext()
	log := p.log.With("story_id", s.ID, "video_id", v.ID)

	from, to, err := p.frames(jc, v)
	if err != nil {
		return err
	}
	if !from.HasImage() || !to.HasImage() {
		log.Error("Missing frame images for clip submission")
		if err := p.deps.Repos.Videos.UpdateFields(dbc, v.ID, map[string]interface{}{"status": domain.VideoFailed}); err != nil {
			return err
		}
		steps.Settle(jc, p.deps, s, domain.StageVideo, fmt.Sprintf("Missing frame images for clip #%d", v.Seq()))
		return nil
	}

	creds, err := p.deps.Gens.VideoCredentials(dbc, s.UserID)
	if err != nil {
		return steps.FailStage(jc, p.deps, s, domain.StageVideo, err)
	}

	params := services.ClipParams(v)
	jc.Progress("submit", 10, fmt.Sprintf("Submitting clip #%d", v.Seq()))
	taskID, err := p.deps.Gens.Video.Submit(jc.Ctx, creds, *from.ImageURL, *to.ImageURL, params)
	if err != nil {
		log.Error("Failed to submit clip", "error", err)
		return steps.FailStage(jc, p.deps, s, domain.StageVideo, err)
	}

	provider := string(p.deps.Gens.VideoProvider())
	ann := v.Annotations()
	op := "submit_mini_video_generation"
	meta := map[string]any{
		"task_id":         taskID,
		"sequence_number": v.Seq(),
		"frame_from":      from.SequenceNumber,
		"frame_to":        to.SequenceNumber,
	}
	if len(ann.Params) > 0 {
		op = "regenerate_mini_video"
		meta["params"] = ann.Params
	}
	p.deps.Usage.RecordAPICall(dbc, &s.ID, s.UserID, provider, op, meta)

	ann.Stale = false
	ann.Error = ""
	ann.Provider = provider
	v.SetAnnotations(ann)
	v.ExternalJobID = taskID
	v.Status = domain.VideoProcessing
	v.VideoPath = nil
	v.VideoURL = nil
	v.DurationSeconds = nil
	if err := p.deps.Repos.Videos.Update(dbc, v); err != nil {
		return err
	}
	p.deps.Notify.ClipUpdated(s.UserID, v)
	log.Info("Clip submitted", "task_id", taskID, "sequence", v.Seq())

	return jc.Yield("poll", poller.FirstClipCheck, poller.State{ExternalID: taskID, TargetID: v.ID.String()},
		fmt.Sprintf("Generating clip #%d", v.Seq()))
}

func (p *Pipeline) frames(jc *jobrt.Context, v *types.Video) (*types.StoryboardFrame, *types.StoryboardFrame, error) {
	var ids []uuid.UUID
	if v.FrameFromID != nil {
		ids = append(ids, *v.FrameFromID)
	}
	if v.FrameToID != nil {
		ids = append(ids, *v.FrameToID)
	}
	if len(ids) == 0 {
		return nil, nil, nil
	}
	byID, err := p.deps.Repos.Frames.GetByIDs(jc.DBContext(), ids)
	if err != nil {
		return nil, nil, err
	}
	var from, to *types.StoryboardFrame
	if v.FrameFromID != nil {
		from = byID[*v.FrameFromID]
	}
	if v.FrameToID != nil {
		to = byID[*v.FrameToID]
	}
	return from, to, nil
}

func (p *Pipeline) poll(jc *jobrt.Context, s *types.Story, v *types.Video, st poller.State) error {
	dbc := jc.DBContext()
	dec := poller.Step(jc.Ctx, poller.ClipSpec, st, func(ctx context.Context, taskID string) (poller.Outcome, error) {
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
		if dec.Outcome.Status == "" {
			p.log.Warn("Clip status check failed", "video_id", v.ID, "attempt", dec.State.Attempt)
		}
		return jc.Yield("poll", dec.After, dec.State, fmt.Sprintf("Generating clip #%d", v.Seq()))
	case poller.ActionDone:
		return p.finish(jc, s, v, dec)
	}
	return p.failClip(jc, s, v, dec.Message)
}

// finish stores the rendered clip and moves the chain on. A failed download is
// retried on the poll schedule, backing off like a failed status check.
func (p *Pipeline) finish(jc *jobrt.Context, s *types.Story, v *types.Video, dec poller.Decision) error {
	dbc := jc.DBContext()
	stored, err := p.deps.Media.Download(jc.Ctx, dec.Outcome.URL, services.VideoDir(s.ID), "mp4")
	if err != nil {
		if dec.State.Attempt < poller.ClipSpec.MaxAttempts {
			p.log.Warn("Clip download failed", "video_id", v.ID, "error", err)
			return jc.Yield("poll", poller.ClipSpec.Interval*time.Duration(poller.ClipSpec.ErrorBackoffFactor), dec.State,
				fmt.Sprintf("Generating clip #%d", v.Seq()))
		}
		return p.failClip(jc, s, v, poller.ClipSpec.PollFailedPrefix+err.Error())
	}

	v.Status = domain.VideoCompleted
	v.VideoPath = &stored.Path
	v.VideoURL = &stored.URL
	if dec.Outcome.DurationSeconds > 0 {
		d := dec.Outcome.DurationSeconds
		v.DurationSeconds = &d
	}
	ann := v.Annotations()
	ann.Error = ""
	ann.Stale = false
	v.SetAnnotations(ann)
	if err := p.deps.Repos.Videos.Update(dbc, v); err != nil {
		return err
	}
	p.deps.Notify.ClipUpdated(s.UserID, v)

	step, err := p.deps.Clips.Continue(dbc, s, v)
	if err != nil {
		return err
	}
	p.log.Info("Clip completed", "story_id", s.ID, "video_id", v.ID, "sequence", v.Seq(), "next", step)
	jc.Succeed("done", map[string]any{
		"video_id": v.ID.String(),
		"next":     string(step),
	})
	return nil
}

func (p *Pipeline) failClip(jc *jobrt.Context, s *types.Story, v *types.Video, msg string) error {
	v.Status = domain.VideoFailed
	ann := v.Annotations()
	ann.Error = msg
	v.SetAnnotations(ann)
	if err := p.deps.Repos.Videos.Update(jc.DBContext(), v); err != nil {
		return err
	}
	p.deps.Notify.ClipUpdated(s.UserID, v)
	steps.Settle(jc, p.deps, s, domain.StageVideo, msg)
	return nil
}
