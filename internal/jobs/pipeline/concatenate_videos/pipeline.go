package concatenate_videos

import (
	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	domain "github.com/pandoapps/videoSoryBoard/internal/domain/story"
	jobrt "github.com/pandoapps/videoSoryBoard/internal/jobs/runtime"
	"github.com/pandoapps/videoSoryBoard/internal/jobs/story/steps"
)

// Run renders the final cut once every clip is completed. Concatenation errors
// fail the video stage without a retry; the user re-triggers from the UI.
func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	s, ok := steps.LoadStory(jc, p.deps.Repos)
	if !ok {
		return nil
	}
	dbc := jc.DBContext()
	log := p.log.With("story_id", s.ID)

	clips, err := p.deps.Repos.Videos.ListClips(dbc, s.ID)
	if err != nil {
		return err
	}
	if len(clips) == 0 || !allCompleted(clips) {
		log.Warn("Cannot concatenate: not all clips are completed", "clips", len(clips))
		jc.Succeed("skipped", map[string]any{"story_id": s.ID.String(), "reason": "clips_incomplete"})
		return nil
	}

	if err := p.deps.Repos.Videos.DeleteFinals(dbc, s.ID); err != nil {
		return err
	}

	jc.Progress("concat", 20, "Joining clips into the final video")
	res, err := p.deps.Concat.Concatenate(jc.Ctx, s.ID, clips)
	if err != nil {
		log.Error("Video concatenation failed", "error", err)
		steps.Settle(jc, p.deps, s, domain.StageVideo, "Video concatenation failed: "+err.Error())
		return nil
	}

	final := &types.Video{
		StoryID:   s.ID,
		IsFinal:   true,
		Status:    domain.VideoCompleted,
		VideoPath: &res.Path,
		VideoURL:  &res.URL,
	}
	if res.DurationSeconds > 0 {
		d := res.DurationSeconds
		final.DurationSeconds = &d
	}
	if _, err := p.deps.Repos.Videos.Create(dbc, []*types.Video{final}); err != nil {
		return err
	}
	if err := p.deps.Orch.CompleteStage(dbc, s, domain.StageVideo); err != nil {
		return err
	}
	p.deps.Notify.FinalVideoReady(s.UserID, final)
	log.Info("Final video ready", "duration", res.DurationSeconds, "path", res.Path)

	jc.Succeed("done", map[string]any{
		"story_id": s.ID.String(),
		"video_id": final.ID.String(),
		"duration": res.DurationSeconds,
	})
	return nil
}

func allCompleted(clips []*types.Video) bool {
	for _, c := range clips {
		if c.Status != domain.VideoCompleted {
			return false
		}
	}
	return true
}
