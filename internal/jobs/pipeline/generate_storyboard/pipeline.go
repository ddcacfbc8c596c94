package generate_storyboard

import (
	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	domain "github.com/pandoapps/videoSoryBoard/internal/domain/story"
	jobrt "github.com/pandoapps/videoSoryBoard/internal/jobs/runtime"
	"github.com/pandoapps/videoSoryBoard/internal/jobs/story/steps"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	s, ok := steps.StageStory(jc, p.deps.Repos, domain.StageStoryboard)
	if !ok {
		return nil
	}
	dbc := jc.DBContext()
	log := p.log.With("story_id", s.ID)
	fail := func(err error) error {
		return steps.FailStage(jc, p.deps, s, domain.StageStoryboard, err)
	}

	jc.Progress("reset", 5, "Clearing previous frames")
	if err := p.deps.Repos.Frames.DeleteByStory(dbc, s.ID); err != nil {
		return fail(err)
	}

	if !s.HasScript() {
		log.Warn("No script for storyboard generation")
		return p.complete(jc, s, 0)
	}

	creds, err := p.deps.Gens.TextCredentials(dbc, s.UserID)
	if err != nil {
		return fail(err)
	}
	provider := string(p.deps.Gens.TextProvider())

	jc.Progress("scenes", 15, "Estimating scene durations")
	scenes, usage, err := p.deps.Gens.Text.EstimateScenes(jc.Ctx, creds, s.Script())
	if err != nil {
		return fail(err)
	}
	p.deps.Usage.RecordTextGen(dbc, &s.ID, s.UserID, provider, "estimate_scene_durations", usage.InputTokens, usage.OutputTokens, usage.Model)
	if len(scenes) == 0 {
		log.Warn("No scenes identified in script")
		return p.complete(jc, s, 0)
	}

	plan := steps.FramePlan(scenes)
	log.Info("Frame structure calculated", "scenes", len(plan), "total_frames", steps.CountFrames(plan))

	chars, err := p.deps.Repos.Characters.ListByStory(dbc, s.ID)
	if err != nil {
		return fail(err)
	}
	names := make([]string, 0, len(chars))
	for _, c := range chars {
		names = append(names, c.Name)
	}

	jc.Progress("describe", 40, "Writing frame descriptions")
	panels, usage, err := p.deps.Gens.Text.DescribeFrames(jc.Ctx, creds, s.Script(), plan, names)
	if err != nil {
		return fail(err)
	}
	p.deps.Usage.RecordTextGen(dbc, &s.ID, s.UserID, provider, "generate_frame_descriptions", usage.InputTokens, usage.OutputTokens, usage.Model)
	if len(panels) == 0 {
		log.Warn("No panels generated for storyboard")
		return p.complete(jc, s, 0)
	}

	jc.Progress("persist", 85, "Saving storyboard frames")
	frames := steps.FramesFromPanels(s.ID, panels)
	if _, err := p.deps.Repos.Frames.Create(dbc, frames); err != nil {
		return fail(err)
	}
	return p.complete(jc, s, len(frames))
}

func (p *Pipeline) complete(jc *jobrt.Context, s *types.Story, n int) error {
	if err := p.deps.Orch.CompleteStage(jc.DBContext(), s, domain.StageStoryboard); err != nil {
		return err
	}
	jc.Succeed("done", map[string]any{
		"story_id": s.ID.String(),
		"frames":   n,
	})
	return nil
}
