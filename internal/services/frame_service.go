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

const recentFrameRefs = 3

func FrameDir(storyID uuid.UUID) string { return fmt.Sprintf("stories/%s/storyboard-frames", storyID) }

type framePrompt struct {
	Prompt string `json:"prompt" validate:"required,max=2000"`
}

type FrameService interface {
	Regenerate(dbc dbctx.Context, s *types.Story, id uuid.UUID, prompt string) (*types.StoryboardFrame, error)
	UploadImage(dbc dbctx.Context, s *types.Story, id uuid.UUID, r io.Reader, ext string) (*types.StoryboardFrame, error)
	Delete(dbc dbctx.Context, s *types.Story, id uuid.UUID) (RebuildResult, error)
}

type frameService struct {
	log    *logger.Logger
	repos  repos.Set
	jobs   JobService
	media  MediaStore
	editor StoryEditor
	notify PipelineNotifier
}

func NewFrameService(baseLog *logger.Logger, rs repos.Set, jobs JobService, media MediaStore, editor StoryEditor, notify PipelineNotifier) FrameService {
	if notify == nil {
		notify = NewPipelineNotifier(nil)
	}
	return &frameService{
		log:    baseLog.With("service", "FrameService"),
		repos:  rs,
		jobs:   jobs,
		media:  media,
		editor: editor,
		notify: notify,
	}
}

func (fs *frameService) load(dbc dbctx.Context, s *types.Story, id uuid.UUID) (*types.StoryboardFrame, error) {
	f, err := fs.repos.Frames.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if f.StoryID != s.ID {
		return nil, domain.ErrNotFound
	}
	return f, nil
}

// Regenerate stores the new prompt, queues an image job and marks the clips on
// either side of the frame stale.
func (fs *frameService) Regenerate(dbc dbctx.Context, s *types.Story, id uuid.UUID, prompt string) (*types.StoryboardFrame, error) {
	prompt = strings.TrimSpace(prompt)
	if err := validateInput(framePrompt{Prompt: prompt}); err != nil {
		return nil, err
	}
	f, err := fs.load(dbc, s, id)
	if err != nil {
		return nil, err
	}
	ann := f.Annotations()
	ann.Error = ""
	ann.Regenerating = true
	f.SetAnnotations(ann)
	f.Prompt = prompt
	if err := fs.repos.Frames.Update(dbc, f); err != nil {
		return nil, err
	}

	if _, err := fs.jobs.CancelForEntity(dbc, EntityFrame, f.ID, []string{JobFrameImage}); err != nil {
		return nil, err
	}
	if _, err := fs.jobs.Enqueue(dbc, s.UserID, JobFrameImage, EntityFrame, &f.ID, map[string]any{
		"story_id": s.ID.String(),
		"frame_id": f.ID.String(),
		"prompt":   prompt,
	}); err != nil {
		return nil, err
	}
	if _, err := fs.editor.InvalidateAffectedClips(dbc, f); err != nil {
		return nil, err
	}
	fs.notify.FrameUpdated(s.UserID, f)
	return f, nil
}

func (fs *frameService) UploadImage(dbc dbctx.Context, s *types.Story, id uuid.UUID, r io.Reader, ext string) (*types.StoryboardFrame, error) {
	f, err := fs.load(dbc, s, id)
	if err != nil {
		return nil, err
	}
	if ext == "" {
		ext = "jpg"
	}
	stored, err := fs.media.StoreReader(dbc.Context(), r, FrameDir(s.ID), ext)
	if err != nil {
		return nil, err
	}
	if _, err := fs.jobs.CancelForEntity(dbc, EntityFrame, f.ID, []string{JobFrameImage}); err != nil {
		return nil, err
	}
	f.ImagePath = &stored.Path
	f.ImageURL = &stored.URL
	ann := f.Annotations()
	ann.Regenerating = false
	ann.Error = ""
	ann.TaskID = ""
	ann.OriginalImageURL = ""
	f.SetAnnotations(ann)
	if err := fs.repos.Frames.Update(dbc, f); err != nil {
		return nil, err
	}
	if _, err := fs.editor.InvalidateAffectedClips(dbc, f); err != nil {
		return nil, err
	}
	fs.notify.FrameUpdated(s.UserID, f)
	return f, nil
}

func (fs *frameService) Delete(dbc dbctx.Context, s *types.Story, id uuid.UUID) (RebuildResult, error) {
	res, err := fs.editor.DeleteFrame(dbc, s, id)
	if err != nil {
		return res, err
	}
	if _, err := fs.jobs.CancelForEntity(dbc, EntityFrame, id, []string{JobFrameImage}); err != nil {
		return res, err
	}
	return res, nil
}

// ImageReferences lists reference images for regenerating frame: portraits of the
// characters in the frame (every portrait when the frame names none), then up to
// three other frames, latest first. Hosts the image API cannot reach are dropped.
func ImageReferences(dbc dbctx.Context, rs repos.Set, frame *types.StoryboardFrame) ([]string, error) {
	chars, err := rs.Characters.ListWithImages(dbc, frame.StoryID, frame.Annotations().Characters)
	if err != nil {
		return nil, err
	}
	recent, err := rs.Frames.ListRecentWithImages(dbc, frame.StoryID, frame.ID, recentFrameRefs)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, c := range chars {
		out = appendReachable(out, c.Annotations().OriginalImageURL, c.ImageURL)
	}
	for _, f := range recent {
		out = appendReachable(out, f.Annotations().OriginalImageURL, f.ImageURL)
	}
	return out, nil
}

func appendReachable(out []string, original string, stored *string) []string {
	u := original
	if u == "" && stored != nil {
		u = *stored
	}
	if u == "" || strings.Contains(u, "localhost") || strings.Contains(u, "127.0.0.1") {
		return out
	}
	return append(out, u)
}
