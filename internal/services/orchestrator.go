package services

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pandoapps/videoSoryBoard/internal/data/repos"
	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	domain "github.com/pandoapps/videoSoryBoard/internal/domain/story"
	"github.com/pandoapps/videoSoryBoard/internal/observability"
	"github.com/pandoapps/videoSoryBoard/internal/platform/dbctx"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
)

// StageCompletedListener reacts to a finished stage that has a successor.
type StageCompletedListener func(dbc dbctx.Context, s *types.Story, stage domain.PipelineStage) error

// PipelineOrchestrator is the only writer of story.status and story.current_stage.
type PipelineOrchestrator interface {
	StartPipeline(dbc dbctx.Context, s *types.Story) error
	AdvanceToStage(dbc dbctx.Context, s *types.Story, stage domain.PipelineStage) error
	CompleteStage(dbc dbctx.Context, s *types.Story, stage domain.PipelineStage) error
	FailStage(dbc dbctx.Context, s *types.Story, stage domain.PipelineStage, msg string) error
	RevertToStage(dbc dbctx.Context, s *types.Story, target domain.PipelineStage) error
	GetStageStatus(dbc dbctx.Context, s *types.Story) (map[domain.PipelineStage]domain.StageState, error)

	// SetStatus moves the story between non-stage states (pending, scripting).
	SetStatus(dbc dbctx.Context, s *types.Story, status domain.StoryStatus, stage *domain.PipelineStage) error

	ApproveCharacters(dbc dbctx.Context, s *types.Story) error
	ApproveStoryboard(dbc dbctx.Context, s *types.Story) error
	Revert(dbc dbctx.Context, s *types.Story, target domain.PipelineStage) error
	RetryStage(dbc dbctx.Context, s *types.Story) error

	// ResumeFinalVideoPolls queues final_video_poll for provider-rendered finals
	// that no job is watching.
	ResumeFinalVideoPolls(dbc dbctx.Context) (int, error)

	OnStageCompleted(l StageCompletedListener)
}

// ErrVideoProviderMissing is returned by the storyboard gate when no video key is stored.
var ErrVideoProviderMissing = errors.New("Kling API key not configured. Add it in Settings before starting video generation.")

type pipelineOrchestrator struct {
	db       *gorm.DB
	log      *logger.Logger
	repos    repos.Set
	jobs     JobService
	vault    CredentialVault
	media    MediaStore
	notify   PipelineNotifier
	videoKey domain.Provider

	mu        sync.RWMutex
	listeners []StageCompletedListener
}

func NewPipelineOrchestrator(
	db *gorm.DB,
	baseLog *logger.Logger,
	rs repos.Set,
	jobs JobService,
	vault CredentialVault,
	media MediaStore,
	notify PipelineNotifier,
	videoProvider domain.Provider,
) PipelineOrchestrator {
	if videoProvider == "" {
		videoProvider = domain.ProviderKling
	}
	if notify == nil {
		notify = NewPipelineNotifier(nil)
	}
	o := &pipelineOrchestrator{
		db:       db,
		log:      baseLog.With("service", "PipelineOrchestrator"),
		repos:    rs,
		jobs:     jobs,
		vault:    vault,
		media:    media,
		notify:   notify,
		videoKey: videoProvider,
	}
	o.listeners = []StageCompletedListener{o.advanceOnCompletion}
	return o
}

func (o *pipelineOrchestrator) OnStageCompleted(l StageCompletedListener) {
	if l == nil {
		return
	}
	o.mu.Lock()
	o.listeners = append(o.listeners, l)
	o.mu.Unlock()
}

func (o *pipelineOrchestrator) advanceOnCompletion(dbc dbctx.Context, s *types.Story, stage domain.PipelineStage) error {
	next, ok := stage.Next()
	if !ok {
		return nil
	}
	return o.AdvanceToStage(dbc, s, next)
}

func stageJobType(stage domain.PipelineStage) string {
	switch stage {
	case domain.StageCharacters:
		return JobGenerateCharacters
	case domain.StageStoryboard:
		return JobGenerateStoryboard
	case domain.StageVideo:
		return JobProduceVideo
	}
	return ""
}

func (o *pipelineOrchestrator) StartPipeline(dbc dbctx.Context, s *types.Story) error {
	if !s.HasScript() {
		return domain.ErrMissingScript
	}
	return o.AdvanceToStage(dbc, s, domain.StageCharacters)
}

func (o *pipelineOrchestrator) AdvanceToStage(dbc dbctx.Context, s *types.Story, stage domain.PipelineStage) error {
	o.log.Info("Pipeline advancing to stage", "story_id", s.ID, "stage", stage)
	if err := o.update(dbc, s, map[string]interface{}{
		"status":        stage.StoryStatus(),
		"current_stage": stage,
		"error_message": nil,
	}); err != nil {
		return err
	}
	s.Status = stage.StoryStatus()
	s.CurrentStage = stage.Ptr()
	s.ErrorMessage = nil
	observability.Current().IncStageEvent(string(stage), "advanced")
	o.notify.StoryStatusChanged(s)

	jobType := stageJobType(stage)
	if jobType == "" {
		return nil
	}
	_, created, err := o.jobs.EnqueueIfAbsent(dbc, s.UserID, jobType, EntityStory, s.ID, map[string]any{"story_id": s.ID.String()})
	if err != nil {
		return fmt.Errorf("dispatch %s: %w", jobType, err)
	}
	if !created {
		o.log.Info("Stage job already runnable; not dispatching again", "story_id", s.ID, "job_type", jobType)
	}
	return nil
}

func (o *pipelineOrchestrator) CompleteStage(dbc dbctx.Context, s *types.Story, stage domain.PipelineStage) error {
	o.log.Info("Pipeline stage completed", "story_id", s.ID, "stage", stage)
	observability.Current().IncStageEvent(string(stage), "completed")

	if review, ok := stage.ReviewStatus(); ok {
		if err := o.update(dbc, s, map[string]interface{}{
			"status":        review,
			"current_stage": stage,
		}); err != nil {
			return err
		}
		s.Status = review
		s.CurrentStage = stage.Ptr()
		o.notify.StoryStatusChanged(s)
		return nil
	}

	if _, ok := stage.Next(); ok {
		o.notify.StageCompleted(s, stage)
		o.mu.RLock()
		listeners := append([]StageCompletedListener(nil), o.listeners...)
		o.mu.RUnlock()
		for _, l := range listeners {
			if err := l(dbc, s, stage); err != nil {
				return err
			}
		}
		return nil
	}

	if err := o.update(dbc, s, map[string]interface{}{
		"status":        domain.StatusCompleted,
		"current_stage": nil,
	}); err != nil {
		return err
	}
	s.Status = domain.StatusCompleted
	s.CurrentStage = nil
	o.notify.StoryStatusChanged(s)
	return nil
}

func (o *pipelineOrchestrator) FailStage(dbc dbctx.Context, s *types.Story, stage domain.PipelineStage, msg string) error {
	o.log.Error("Pipeline stage failed", "story_id", s.ID, "stage", stage, "error", msg)
	observability.Current().IncStageEvent(string(stage), "failed")
	full := fmt.Sprintf("Failed at %s: %s", stage, msg)
	if err := o.update(dbc, s, map[string]interface{}{
		"status":        domain.StatusFailed,
		"current_stage": stage,
		"error_message": full,
	}); err != nil {
		return err
	}
	s.Status = domain.StatusFailed
	s.CurrentStage = stage.Ptr()
	s.ErrorMessage = &full
	o.notify.StoryStatusChanged(s)
	return nil
}

func (o *pipelineOrchestrator) SetStatus(dbc dbctx.Context, s *types.Story, status domain.StoryStatus, stage *domain.PipelineStage) error {
	updates := map[string]interface{}{"status": status, "current_stage": nil}
	if stage != nil {
		updates["current_stage"] = *stage
	}
	if err := o.update(dbc, s, updates); err != nil {
		return err
	}
	s.Status = status
	s.CurrentStage = stage
	o.notify.StoryStatusChanged(s)
	return nil
}

// RevertToStage deletes everything strictly downstream of target in one transaction
// and cancels runnable jobs that would produce it again.
func (o *pipelineOrchestrator) RevertToStage(dbc dbctx.Context, s *types.Story, target domain.PipelineStage) error {
	if target == domain.StageVideo {
		return domain.ErrCannotRevertFinal
	}
	o.log.Info("Pipeline reverting to stage", "story_id", s.ID, "stage", target)

	var (
		status  domain.StoryStatus
		updates = map[string]interface{}{"current_stage": target, "error_message": nil}
	)
	switch target {
	case domain.StageScript:
		status = domain.StatusScripting
		updates["full_script"] = nil
	case domain.StageCharacters:
		status = domain.StatusCharacterReview
	case domain.StageStoryboard:
		status = domain.StatusStoryboardReview
	default:
		return fmt.Errorf("unknown stage %q", target)
	}
	updates["status"] = status

	err := inTx(o.db, dbc, func(inner dbctx.Context) error {
		if target == domain.StageScript {
			if err := o.repos.Characters.DeleteByStory(inner, s.ID); err != nil {
				return err
			}
		}
		if target == domain.StageScript || target == domain.StageCharacters {
			if err := o.repos.Frames.DeleteByStory(inner, s.ID); err != nil {
				return err
			}
		}
		if err := o.repos.Videos.DeleteByStory(inner, s.ID); err != nil {
			return err
		}
		if err := o.repos.Stories.UpdateFields(inner, s.ID, updates); err != nil {
			return err
		}
		var cancelTypes []string
		for _, st := range downstreamOf(target) {
			cancelTypes = append(cancelTypes, StageJobTypes[string(st)]...)
		}
		n, err := o.jobs.CancelForEntity(inner, EntityStory, s.ID, cancelTypes)
		if err != nil {
			return err
		}
		if n > 0 {
			o.log.Info("Canceled downstream jobs", "story_id", s.ID, "count", n)
		}
		return nil
	})
	if err != nil {
		return err
	}

	o.purgeMedia(dbc, s.ID, target)

	if target == domain.StageScript {
		s.FullScript = nil
	}
	s.Status = status
	s.CurrentStage = target.Ptr()
	s.ErrorMessage = nil
	observability.Current().IncStageEvent(string(target), "reverted")
	o.notify.StoryStatusChanged(s)
	return nil
}

// purgeMedia removes the stored files of the rows a revert deleted. It runs after
// the commit; a failure leaves orphaned objects but never blocks the revert.
func (o *pipelineOrchestrator) purgeMedia(dbc dbctx.Context, storyID uuid.UUID, target domain.PipelineStage) {
	if o.media == nil {
		return
	}
	dirs := []string{VideoDir(storyID)}
	if target == domain.StageScript || target == domain.StageCharacters {
		dirs = append(dirs, FrameDir(storyID))
	}
	if target == domain.StageScript {
		dirs = append(dirs, CharacterDir(storyID))
	}
	for _, dir := range dirs {
		if err := o.media.DeleteDir(dbc.Context(), dir); err != nil {
			o.log.Warn("media cleanup failed", "story_id", storyID, "dir", dir, "error", err)
		}
	}
}

func downstreamOf(target domain.PipelineStage) []domain.PipelineStage {
	var out []domain.PipelineStage
	for st, ok := target.Next(); ok; st, ok = st.Next() {
		out = append(out, st)
	}
	return out
}

func (o *pipelineOrchestrator) GetStageStatus(dbc dbctx.Context, s *types.Story) (map[domain.PipelineStage]domain.StageState, error) {
	facts, err := o.repos.Stories.Facts(dbc, s)
	if err != nil {
		return nil, err
	}
	return domain.DeriveStageStatuses(facts), nil
}

func (o *pipelineOrchestrator) ApproveCharacters(dbc dbctx.Context, s *types.Story) error {
	if s.Status != domain.StatusCharacterReview {
		return domain.ErrNotInCharacterReview
	}
	return o.AdvanceToStage(dbc, s, domain.StageStoryboard)
}

func (o *pipelineOrchestrator) ApproveStoryboard(dbc dbctx.Context, s *types.Story) error {
	if s.Status != domain.StatusStoryboardReview {
		return domain.ErrNotInStoryboardReview
	}
	if o.vault != nil && !o.vault.Has(dbc, o.videoKey, s.UserID) {
		return ErrVideoProviderMissing
	}
	return o.AdvanceToStage(dbc, s, domain.StageVideo)
}

// Revert applies the gate checks before RevertToStage: no running stage, and the
// target must already be completed.
func (o *pipelineOrchestrator) Revert(dbc dbctx.Context, s *types.Story, target domain.PipelineStage) error {
	if target == domain.StageVideo {
		return domain.ErrCannotRevertFinal
	}
	states, err := o.GetStageStatus(dbc, s)
	if err != nil {
		return err
	}
	if domain.AnyInProgress(states) {
		return domain.ErrStageInProgress
	}
	if states[target] != domain.StageCompleted {
		return domain.ErrStageNotCompleted
	}
	return o.RevertToStage(dbc, s, target)
}

func (o *pipelineOrchestrator) RetryStage(dbc dbctx.Context, s *types.Story) error {
	if s.Status != domain.StatusFailed || s.CurrentStage == nil {
		return domain.ErrNotFailed
	}
	stage := *s.CurrentStage
	if stage == domain.StageScript {
		return o.StartPipeline(dbc, s)
	}
	return o.AdvanceToStage(dbc, s, stage)
}

func (o *pipelineOrchestrator) ResumeFinalVideoPolls(dbc dbctx.Context) (int, error) {
	finals, err := o.repos.Videos.ListPendingFinals(dbc, 200)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, v := range finals {
		s, err := o.repos.Stories.GetByID(dbc, v.StoryID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return n, err
		}
		if s.Status != domain.StatusProducing {
			continue
		}
		_, created, err := o.jobs.EnqueueIfAbsent(dbc, s.UserID, JobFinalVideoPoll, EntityVideo, v.ID, map[string]any{
			"story_id":    s.ID.String(),
			"video_id":    v.ID.String(),
			"external_id": v.ExternalJobID,
		})
		if err != nil {
			return n, err
		}
		if created {
			n++
		}
	}
	if n > 0 {
		o.log.Info("Resumed final video polls", "count", n)
	}
	return n, nil
}

func (o *pipelineOrchestrator) update(dbc dbctx.Context, s *types.Story, updates map[string]interface{}) error {
	if s == nil || s.ID == uuid.Nil {
		return domain.ErrNotFound
	}
	if err := o.repos.Stories.UpdateFields(dbc, s.ID, updates); err != nil {
		return fmt.Errorf("update story %s: %w", s.ID, err)
	}
	return nil
}
