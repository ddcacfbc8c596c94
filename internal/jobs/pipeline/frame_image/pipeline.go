package frame_image

import (
	"errors"
	"fmt"
	"strings"

	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	domain "github.com/pandoapps/videoSoryBoard/internal/domain/story"
	"github.com/pandoapps/videoSoryBoard/internal/jobs/poller"
	jobrt "github.com/pandoapps/videoSoryBoard/internal/jobs/runtime"
	"github.com/pandoapps/videoSoryBoard/internal/jobs/story/steps"
	"github.com/pandoapps/videoSoryBoard/internal/services"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	frameID, ok := jc.PayloadUUID("frame_id")
	if !ok {
		jc.FailTerminal("validate", fmt.Errorf("missing frame_id"))
		return nil
	}
	s, ok := steps.LoadStory(jc, p.deps.Repos)
	if !ok {
		return nil
	}
	f, err := p.deps.Repos.Frames.GetByID(jc.DBContext(), frameID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && f.StoryID != s.ID) {
		jc.Succeed("skipped", map[string]any{"frame_id": frameID.String(), "reason": "frame_gone"})
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
		return p.submit(jc, s, f)
	}
	if f.Annotations().TaskID != st.ExternalID {
		jc.Succeed("skipped", map[string]any{"frame_id": f.ID.String(), "reason": "superseded"})
		return nil
	}

	dec := steps.PollImage(jc, p.deps, s.UserID, st)
	switch dec.Action {
	case poller.ActionReschedule:
		return jc.Yield("poll", dec.After, dec.State, fmt.Sprintf("Generating frame #%d", f.SequenceNumber))
	case poller.ActionDone:
		return p.store(jc, s, f, dec.Outcome.URL)
	}
	p.log.Warn("Storyboard frame generation failed", "frame_id", f.ID, "task_id", st.ExternalID, "reason", dec.Message)
	return p.fail(jc, s, f, dec.Message)
}

func (p *Pipeline) submit(jc *jobrt.Context, s *types.Story, f *types.StoryboardFrame) error {
	dbc := jc.DBContext()
	prompt := strings.TrimSpace(jc.PayloadString("prompt"))
	if prompt == "" {
		prompt = f.Prompt
	}
	creds, err := p.deps.Gens.ImageCredentials(dbc, s.UserID)
	if err != nil {
		return p.fail(jc, s, f, err.Error())
	}
	// Remote URLs only: the provider cannot fetch from this host.
	refs, err := services.ImageReferences(dbc, p.deps.Repos, f)
	if err != nil {
		return err
	}
	taskID, err := p.deps.Gens.Image.Submit(jc.Ctx, creds, prompt, refs)
	if err != nil {
		p.log.Error("Storyboard frame submission failed", "frame_id", f.ID, "error", err)
		return p.fail(jc, s, f, err.Error())
	}
	p.deps.Usage.RecordAPICall(dbc, &s.ID, s.UserID, string(p.deps.Gens.ImageProvider()), "generate_storyboard_frame", map[string]any{
		"task_id":        taskID,
		"frame_sequence": f.SequenceNumber,
		"regeneration":   true,
		"references":     len(refs),
	})

	ann := f.Annotations()
	ann.TaskID = taskID
	ann.Regenerating = true
	f.SetAnnotations(ann)
	if err := p.deps.Repos.Frames.Update(dbc, f); err != nil {
		return err
	}
	return jc.Yield("poll", poller.ImageSpec.Interval, poller.State{ExternalID: taskID, TargetID: f.ID.String()},
		fmt.Sprintf("Generating frame #%d", f.SequenceNumber))
}

func (p *Pipeline) store(jc *jobrt.Context, s *types.Story, f *types.StoryboardFrame, remoteURL string) error {
	stored, err := p.deps.Media.Download(jc.Ctx, remoteURL, services.FrameDir(s.ID), "")
	if err != nil {
		return p.fail(jc, s, f, err.Error())
	}
	f.ImagePath = &stored.Path
	f.ImageURL = &stored.URL
	ann := f.Annotations()
	ann.Regenerating = false
	ann.Error = ""
	ann.OriginalImageURL = remoteURL
	f.SetAnnotations(ann)
	if err := p.deps.Repos.Frames.Update(jc.DBContext(), f); err != nil {
		return err
	}
	p.deps.Notify.FrameUpdated(s.UserID, f)
	jc.Succeed("done", map[string]any{"frame_id": f.ID.String(), "image_url": stored.URL})
	return nil
}

func (p *Pipeline) fail(jc *jobrt.Context, s *types.Story, f *types.StoryboardFrame, msg string) error {
	ann := f.Annotations()
	ann.Regenerating = false
	ann.Error = msg
	f.SetAnnotations(ann)
	if err := p.deps.Repos.Frames.Update(jc.DBContext(), f); err != nil {
		return err
	}
	p.deps.Notify.FrameUpdated(s.UserID, f)
	jc.FailTerminal("image", errors.New(msg))
	return nil
}
