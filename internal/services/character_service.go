package services

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/pandoapps/videoSoryBoard/internal/data/repos"
	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	domain "github.com/pandoapps/videoSoryBoard/internal/domain/story"
	"github.com/pandoapps/videoSoryBoard/internal/platform/dbctx"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
)

func CharacterDir(storyID uuid.UUID) string { return fmt.Sprintf("stories/%s/characters", storyID) }

type CharacterInput struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"required,max=1000"`
}

type CharacterUpdate struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

type characterPrompt struct {
	Prompt string `json:"prompt" validate:"required,max=1000"`
}

// CharacterService edits the cast while the story is in character review and
// queues portrait generation.
type CharacterService interface {
	Create(dbc dbctx.Context, s *types.Story, in CharacterInput) (*types.Character, error)
	Update(dbc dbctx.Context, s *types.Story, id uuid.UUID, in CharacterUpdate) (*types.Character, error)
	Delete(dbc dbctx.Context, s *types.Story, id uuid.UUID) error
	Regenerate(dbc dbctx.Context, s *types.Story, id uuid.UUID, prompt string) (*types.Character, error)
	UploadImage(dbc dbctx.Context, s *types.Story, id uuid.UUID, r io.Reader, ext string) (*types.Character, error)
}

type characterService struct {
	log    *logger.Logger
	repos  repos.Set
	jobs   JobService
	media  MediaStore
	notify PipelineNotifier
}

func NewCharacterService(baseLog *logger.Logger, rs repos.Set, jobs JobService, media MediaStore, notify PipelineNotifier) CharacterService {
	if notify == nil {
		notify = NewPipelineNotifier(nil)
	}
	return &characterService{
		log:    baseLog.With("service", "CharacterService"),
		repos:  rs,
		jobs:   jobs,
		media:  media,
		notify: notify,
	}
}

func (cs *characterService) load(dbc dbctx.Context, s *types.Story, id uuid.UUID) (*types.Character, error) {
	c, err := cs.repos.Characters.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if c.StoryID != s.ID {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (cs *characterService) Create(dbc dbctx.Context, s *types.Story, in CharacterInput) (*types.Character, error) {
	if s.Status != domain.StatusCharacterReview {
		return nil, domain.ErrNotInCharacterReview
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	c := &types.Character{StoryID: s.ID, Name: in.Name, Description: in.Description}
	c.SetAnnotations(domain.CharacterAnnotations{Regenerating: true})
	if _, err := cs.repos.Characters.Create(dbc, []*types.Character{c}); err != nil {
		return nil, err
	}
	if err := cs.queuePortrait(dbc, s, c, in.Description); err != nil {
		return nil, err
	}
	cs.notify.CharacterUpdated(s.UserID, c)
	return c, nil
}

func (cs *characterService) Update(dbc dbctx.Context, s *types.Story, id uuid.UUID, in CharacterUpdate) (*types.Character, error) {
	if s.Status != domain.StatusCharacterReview {
		return nil, domain.ErrNotInCharacterReview
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	c, err := cs.load(dbc, s, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		c.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if err := cs.repos.Characters.Update(dbc, c); err != nil {
		return nil, err
	}
	cs.notify.CharacterUpdated(s.UserID, c)
	return c, nil
}

func (cs *characterService) Delete(dbc dbctx.Context, s *types.Story, id uuid.UUID) error {
	if s.Status != domain.StatusCharacterReview {
		return domain.ErrNotInCharacterReview
	}
	c, err := cs.load(dbc, s, id)
	if err != nil {
		return err
	}
	if _, err := cs.jobs.CancelForEntity(dbc, EntityCharacter, c.ID, []string{JobCharacterImage}); err != nil {
		return err
	}
	if err := cs.repos.Characters.Delete(dbc, c.ID); err != nil {
		return err
	}
	if c.ImagePath != nil && cs.media != nil {
		if err := cs.media.Delete(dbc.Context(), *c.ImagePath); err != nil {
			cs.log.Warn("character image delete failed", "character_id", c.ID, "error", err)
		}
	}
	return nil
}

// Regenerate replaces the description with prompt and queues a new portrait.
// A portrait job already running for the character is canceled first.
func (cs *characterService) Regenerate(dbc dbctx.Context, s *types.Story, id uuid.UUID, prompt string) (*types.Character, error) {
	if err := validateInput(characterPrompt{Prompt: prompt}); err != nil {
		return nil, err
	}
	c, err := cs.load(dbc, s, id)
	if err != nil {
		return nil, err
	}
	ann := c.Annotations()
	ann.Error = ""
	ann.Regenerating = true
	c.SetAnnotations(ann)
	c.Description = prompt
	if err := cs.repos.Characters.Update(dbc, c); err != nil {
		return nil, err
	}
	if err := cs.queuePortrait(dbc, s, c, prompt); err != nil {
		return nil, err
	}
	cs.notify.CharacterUpdated(s.UserID, c)
	return c, nil
}

func (cs *characterService) UploadImage(dbc dbctx.Context, s *types.Story, id uuid.UUID, r io.Reader, ext string) (*types.Character, error) {
	c, err := cs.load(dbc, s, id)
	if err != nil {
		return nil, err
	}
	if ext == "" {
		ext = "jpg"
	}
	stored, err := cs.media.StoreReader(dbc.Context(), r, CharacterDir(s.ID), ext)
	if err != nil {
		return nil, err
	}
	if _, err := cs.jobs.CancelForEntity(dbc, EntityCharacter, c.ID, []string{JobCharacterImage}); err != nil {
		return nil, err
	}
	c.ImagePath = &stored.Path
	c.ImageURL = &stored.URL
	ann := c.Annotations()
	ann.Regenerating = false
	ann.Error = ""
	ann.TaskID = ""
	ann.OriginalImageURL = ""
	c.SetAnnotations(ann)
	if err := cs.repos.Characters.Update(dbc, c); err != nil {
		return nil, err
	}
	cs.notify.CharacterUpdated(s.UserID, c)
	return c, nil
}

func (cs *characterService) queuePortrait(dbc dbctx.Context, s *types.Story, c *types.Character, prompt string) error {
	if _, err := cs.jobs.CancelForEntity(dbc, EntityCharacter, c.ID, []string{JobCharacterImage}); err != nil {
		return err
	}
	_, err := cs.jobs.Enqueue(dbc, s.UserID, JobCharacterImage, EntityCharacter, &c.ID, map[string]any{
		"story_id":     s.ID.String(),
		"character_id": c.ID.String(),
		"prompt":       prompt,
	})
	return err
}
