package produce_video

import (
	domain "github.com/pandoapps/videoSoryBoard/internal/domain/story"
	jobrt "github.com/pandoapps/videoSoryBoard/internal/jobs/runtime"
	"github.com/pandoapps/videoSoryBoard/internal/jobs/story/steps"
)

const tooFewFrames = "At least 2 storyboard frames are required to produce video clips."

// Run lays out the clip chain. Clips stay queued until the user submits them, so
// the stage is left in progress.
func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	s, ok := steps.StageStory(jc, p.deps.Repos, domain.StageVideo)
	if !ok {
		return nil
	}
	dbc := jc.DBContext()
	log := p.log.With("story_id", s.ID)
	fail := func(err error) error {
		return steps.FailStage(jc, p.deps, s, domain.StageVideo, err)
	}

	jc.Progress("reset", 5, "Clearing previous videos")
	if err := p.deps.Repos.Videos.DeleteByStory(dbc, s.ID); err != nil {
		return fail(err)
	}

	if _, err := p.deps.Gens.VideoCredentials(dbc, s.UserID); err != nil {
		return fail(err)
	}

	frames, err := p.deps.Repos.Frames.ListByStory(dbc, s.ID)
	if err != nil {
		return fail(err)
	}
	if len(frames) < 2 {
		log.Warn("Not enough storyboard frames for clip generation", "frame_count", len(frames))
		steps.Settle(jc, p.deps, s, domain.StageVideo, tooFewFrames)
		return nil
	}

	creds, err := p.deps.Gens.TextCredentials(dbc, s.UserID)
	if err != nil {
		return fail(err)
	}

	jc.Progress("prompts", 30, "Writing clip prompts")
	prompts, usage, err := p.deps.Gens.Text.TransitionPrompts(jc.Ctx, creds, s.Script(), steps.Transitions(frames))
	if err != nil {
		return fail(err)
	}
	p.deps.Usage.RecordTextGen(dbc, &s.ID, s.UserID, string(p.deps.Gens.TextProvider()), "generate_video_prompts", usage.InputTokens, usage.OutputTokens, usage.Model)

	clips := steps.ClipChain(s.ID, frames, prompts)
	if _, err := p.deps.Repos.Videos.Create(dbc, clips); err != nil {
		return fail(err)
	}
	for _, c := range clips {
		p.deps.Notify.ClipUpdated(s.UserID, c)
	}
	log.Info("Clip chain created", "clips", len(clips))

	jc.Succeed("done", map[string]any{
		"story_id": s.ID.String(),
		"clips":    len(clips),
	})
	return nil
}
