package steps

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/pandoapps/videoSoryBoard/internal/data/repos"
	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	domain "github.com/pandoapps/videoSoryBoard/internal/domain/story"
	jobrt "github.com/pandoapps/videoSoryBoard/internal/jobs/runtime"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
	"github.com/pandoapps/videoSoryBoard/internal/services"
)

// Deps is everything the story job handlers share.
type Deps struct {
	DB     *gorm.DB
	Log    *logger.Logger
	Repos  repos.Set
	Orch   services.PipelineOrchestrator
	Gens   *services.Generators
	Usage  services.UsageTracker
	Media  services.MediaStore
	Clips  services.ClipService
	Concat services.VideoConcatenator
	Notify services.PipelineNotifier
}

// StageStory loads the story a stage job works on. ok is false when the job has
// already been settled here: a bad payload fails it, and a story that is gone or
// no longer sits on stage succeeds it as skipped.
func StageStory(jc *jobrt.Context, rs repos.Set, stage domain.PipelineStage) (*types.Story, bool) {
	s, ok := LoadStory(jc, rs)
	if !ok {
		return nil, false
	}
	if s.CurrentStage == nil || *s.CurrentStage != stage {
		jc.Succeed("skipped", map[string]any{"story_id": s.ID.String(), "reason": "stage_changed"})
		return nil, false
	}
	if s.Status != stage.StoryStatus() && s.Status != domain.StatusFailed {
		jc.Succeed("skipped", map[string]any{"story_id": s.ID.String(), "reason": "status_changed"})
		return nil, false
	}
	return s, true
}

// LoadStory resolves payload.story_id with the same settle rules as StageStory.
func LoadStory(jc *jobrt.Context, rs repos.Set) (*types.Story, bool) {
	storyID, ok := jc.PayloadUUID("story_id")
	if !ok {
		jc.FailTerminal("validate", fmt.Errorf("missing story_id"))
		return nil, false
	}
	s, err := rs.Stories.GetByID(jc.DBContext(), storyID)
	if errors.Is(err, domain.ErrNotFound) {
		jc.Succeed("skipped", map[string]any{"story_id": storyID.String(), "reason": "story_gone"})
		return nil, false
	}
	if err != nil {
		jc.Fail("load", err)
		return nil, false
	}
	return s, true
}

/*
FailStage records err against the story's stage.
A missing credential cannot be fixed by retrying, so the job is failed outright and
nil is returned. Anything else is handed back to the worker for another attempt.
*/
func FailStage(jc *jobrt.Context, d Deps, s *types.Story, stage domain.PipelineStage, err error) error {
	var ce *services.CredentialError
	if errors.As(err, &ce) {
		if ferr := d.Orch.FailStage(jc.DBContext(), s, stage, ce.Message); ferr != nil {
			d.Log.Warn("fail stage", "story_id", s.ID, "stage", stage, "error", ferr)
		}
		jc.FailTerminal("credentials", err)
		return nil
	}
	if ferr := d.Orch.FailStage(jc.DBContext(), s, stage, err.Error()); ferr != nil {
		d.Log.Warn("fail stage", "story_id", s.ID, "stage", stage, "error", ferr)
	}
	return err
}

// Settle fails the stage with msg and ends the job without a retry.
func Settle(jc *jobrt.Context, d Deps, s *types.Story, stage domain.PipelineStage, msg string) {
	if err := d.Orch.FailStage(jc.DBContext(), s, stage, msg); err != nil {
		d.Log.Warn("fail stage", "story_id", s.ID, "stage", stage, "error", err)
	}
	jc.FailTerminal(string(stage), errors.New(msg))
}

// Bind scopes d to one handler and fills optional sinks.
func (d Deps) Bind(db *gorm.DB, log *logger.Logger) Deps {
	d.DB = db
	d.Log = log
	if d.Notify == nil {
		d.Notify = services.NewPipelineNotifier(nil)
	}
	return d
}
