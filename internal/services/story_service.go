package services

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pandoapps/videoSoryBoard/internal/data/repos"
	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	domain "github.com/pandoapps/videoSoryBoard/internal/domain/story"
	"github.com/pandoapps/videoSoryBoard/internal/platform/dbctx"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
)

type StoryInput struct {
	Title    string  `json:"title" validate:"required,max=255"`
	Synopsis *string `json:"synopsis" validate:"omitempty,max=5000"`
}

type StoryUpdate struct {
	Title    *string `json:"title" validate:"omitempty,min=1,max=255"`
	Synopsis *string `json:"synopsis" validate:"omitempty,max=5000"`
}

// StoryDetail is the pipeline view of one story.
type StoryDetail struct {
	Story           *types.Story                               `json:"story"`
	Characters      []*types.Character                         `json:"characters"`
	Frames          []*types.StoryboardFrame                   `json:"frames"`
	Clips           []*types.Video                             `json:"clips"`
	Final           *types.Video                               `json:"final_video,omitempty"`
	Stages          map[domain.PipelineStage]domain.StageState `json:"stages"`
	VideoConfigured bool                                       `json:"video_configured"`
}

type DashboardStats struct {
	Total      int `json:"total"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
}

type StoryService interface {
	Create(dbc dbctx.Context, userID uuid.UUID, in StoryInput) (*types.Story, error)
	// Get returns domain.ErrNotFound for stories owned by someone else.
	Get(dbc dbctx.Context, userID, storyID uuid.UUID) (*types.Story, error)
	List(dbc dbctx.Context, userID uuid.UUID) ([]*types.Story, error)
	Update(dbc dbctx.Context, s *types.Story, in StoryUpdate) (*types.Story, error)
	Delete(dbc dbctx.Context, s *types.Story) error
	Detail(dbc dbctx.Context, s *types.Story) (*StoryDetail, error)
	Stats(dbc dbctx.Context, userID uuid.UUID) (DashboardStats, error)
}

type storyService struct {
	db    *gorm.DB
	log   *logger.Logger
	repos repos.Set
	jobs  JobService
	orch  PipelineOrchestrator
	vault CredentialVault
	video domain.Provider
}

func NewStoryService(db *gorm.DB, baseLog *logger.Logger, rs repos.Set, jobs JobService, orch PipelineOrchestrator, vault CredentialVault, videoProvider domain.Provider) StoryService {
	if videoProvider == "" {
		videoProvider = domain.ProviderKling
	}
	return &storyService{
		db:    db,
		log:   baseLog.With("service", "StoryService"),
		repos: rs,
		jobs:  jobs,
		orch:  orch,
		vault: vault,
		video: videoProvider,
	}
}

func (ss *storyService) Create(dbc dbctx.Context, userID uuid.UUID, in StoryInput) (*types.Story, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	s := &types.Story{
		UserID:   userID,
		Title:    in.Title,
		Synopsis: in.Synopsis,
		Status:   domain.StatusPending,
	}
	if err := ss.repos.Stories.Create(dbc, s); err != nil {
		return nil, err
	}
	ss.log.Info("Story created", "story_id", s.ID, "user_id", userID)
	return s, nil
}

func (ss *storyService) Get(dbc dbctx.Context, userID, storyID uuid.UUID) (*types.Story, error) {
	return ss.repos.Stories.GetForUser(dbc, userID, storyID)
}

func (ss *storyService) List(dbc dbctx.Context, userID uuid.UUID) ([]*types.Story, error) {
	return ss.repos.Stories.ListByUser(dbc, userID)
}

func (ss *storyService) Update(dbc dbctx.Context, s *types.Story, in StoryUpdate) (*types.Story, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		updates["title"] = t
		s.Title = t
	}
	if in.Synopsis != nil {
		updates["synopsis"] = *in.Synopsis
		s.Synopsis = in.Synopsis
	}
	if len(updates) == 0 {
		return s, nil
	}
	if err := ss.repos.Stories.UpdateFields(dbc, s.ID, updates); err != nil {
		return nil, err
	}
	return s, nil
}

// Delete soft-deletes the story and cancels any runnable work for it. Child rows
// stay until the story is purged.
func (ss *storyService) Delete(dbc dbctx.Context, s *types.Story) error {
	var jobTypes []string
	for _, st := range domain.Stages {
		jobTypes = append(jobTypes, StageJobTypes[string(st)]...)
	}
	return inTx(ss.db, dbc, func(inner dbctx.Context) error {
		if _, err := ss.jobs.CancelForEntity(inner, EntityStory, s.ID, jobTypes); err != nil {
			return err
		}
		return ss.repos.Stories.SoftDelete(inner, s.ID)
	})
}

func (ss *storyService) Detail(dbc dbctx.Context, s *types.Story) (*StoryDetail, error) {
	chars, err := ss.repos.Characters.ListByStory(dbc, s.ID)
	if err != nil {
		return nil, err
	}
	frames, err := ss.repos.Frames.ListByStory(dbc, s.ID)
	if err != nil {
		return nil, err
	}
	clips, err := ss.repos.Videos.ListClips(dbc, s.ID)
	if err != nil {
		return nil, err
	}
	final, err := ss.repos.Videos.GetFinal(dbc, s.ID)
	if err != nil {
		return nil, err
	}
	stages, err := ss.orch.GetStageStatus(dbc, s)
	if err != nil {
		return nil, err
	}
	return &StoryDetail{
		Story:           s,
		Characters:      chars,
		Frames:          frames,
		Clips:           clips,
		Final:           final,
		Stages:          stages,
		VideoConfigured: ss.vault.Has(dbc, ss.video, s.UserID),
	}, nil
}

func (ss *storyService) Stats(dbc dbctx.Context, userID uuid.UUID) (DashboardStats, error) {
	var out DashboardStats
	stories, err := ss.repos.Stories.ListByUser(dbc, userID)
	if err != nil {
		return out, err
	}
	for _, s := range stories {
		out.Total++
		switch s.Status {
		case domain.StatusCompleted:
			out.Completed++
		case domain.StatusFailed, domain.StatusPending:
		default:
			out.InProgress++
		}
	}
	return out, nil
}
