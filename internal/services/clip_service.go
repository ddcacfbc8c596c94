package services

import (
	"encoding/json"
	"io"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/pandoapps/videoSoryBoard/internal/clients/videogen"
	"github.com/pandoapps/videoSoryBoard/internal/data/repos"
	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	domain "github.com/pandoapps/videoSoryBoard/internal/domain/story"
	"github.com/pandoapps/videoSoryBoard/internal/platform/apierr"
	"github.com/pandoapps/videoSoryBoard/internal/platform/dbctx"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
)

var (
	errClipBusy             = apierr.Conflict("clip_in_progress", "Another clip is already being generated.")
	errNotAClip             = apierr.Unprocessable("not_a_clip", "Can only regenerate mini-videos.")
	errNoQueuedClips        = apierr.Unprocessable("no_queued_clips", "There are no queued clips to generate.")
	errNoClipsToConcat      = apierr.Unprocessable("no_clips", "No mini-videos to concatenate.")
	errNotAllClipsCompleted = apierr.Unprocessable("clips_incomplete", "All mini-videos must be completed before concatenation.")
)

// ClipRegenerate carries the optional overrides for one clip regeneration.
type ClipRegenerate struct {
	Prompt        *string `json:"prompt" validate:"omitempty,max=2000"`
	Duration      string  `json:"duration" validate:"omitempty,oneof=5 10"`
	ModelName     string  `json:"model_name"`
	Mode          string  `json:"mode" validate:"omitempty,oneof=std pro"`
	CameraControl string  `json:"camera_control"`
}

func (in ClipRegenerate) validate() error {
	if err := validateInput(in); err != nil {
		return err
	}
	if in.ModelName != "" && !slices.Contains(videogen.KlingModels, in.ModelName) {
		return apierr.BadRequest("validation_failed", "The selected model name is invalid.")
	}
	if in.CameraControl != "" && !slices.Contains(videogen.CameraControls, in.CameraControl) {
		return apierr.BadRequest("validation_failed", "The selected camera control is invalid.")
	}
	return nil
}

func (in ClipRegenerate) params() map[string]any {
	p := videogen.Params{
		Duration:      in.Duration,
		Mode:          in.Mode,
		ModelName:     in.ModelName,
		CameraControl: in.CameraControl,
	}
	out := map[string]any{}
	b, _ := json.Marshal(p)
	_ = json.Unmarshal(b, &out)
	return out
}

// ClipParams decodes the overrides stored on a clip into submission params, with
// the defaults every clip is generated with.
func ClipParams(v *types.Video) videogen.Params {
	p := videogen.Params{}
	if raw := v.Annotations().Params; len(raw) > 0 {
		b, _ := json.Marshal(raw)
		_ = json.Unmarshal(b, &p)
	}
	p.Prompt = v.Prompt
	if p.Duration == "" {
		p.Duration = "5"
	}
	// image_tail requires pro mode
	if p.Mode == "" {
		p.Mode = "pro"
	}
	return p
}

type ChainStep string

const (
	ChainSubmitted   ChainStep = "submitted"
	ChainConcatenate ChainStep = "concatenate"
	ChainIdle        ChainStep = "idle"
)

// ClipService drives the sequential clip chain and per-clip edits.
type ClipService interface {
	// Submit queues generation of one clip; refused while another clip is processing.
	Submit(dbc dbctx.Context, s *types.Story, clipID uuid.UUID) (*types.Video, error)
	GenerateAll(dbc dbctx.Context, s *types.Story) (*types.Video, error)
	Regenerate(dbc dbctx.Context, s *types.Story, clipID uuid.UUID, in ClipRegenerate) (*types.Video, error)
	Upload(dbc dbctx.Context, s *types.Story, clipID uuid.UUID, r io.Reader, ext string) (*types.Video, error)
	Concatenate(dbc dbctx.Context, s *types.Story) error
	// Continue moves the chain on after done completed: the next queued clip is
	// submitted, or the final cut is queued once every clip is complete.
	Continue(dbc dbctx.Context, s *types.Story, done *types.Video) (ChainStep, error)
}

type clipService struct {
	log    *logger.Logger
	repos  repos.Set
	jobs   JobService
	media  MediaStore
	notify PipelineNotifier
}

func NewClipService(baseLog *logger.Logger, rs repos.Set, jobs JobService, media MediaStore, notify PipelineNotifier) ClipService {
	if notify == nil {
		notify = NewPipelineNotifier(nil)
	}
	return &clipService{
		log:    baseLog.With("service", "ClipService"),
		repos:  rs,
		jobs:   jobs,
		media:  media,
		notify: notify,
	}
}

func (cs *clipService) load(dbc dbctx.Context, s *types.Story, id uuid.UUID) (*types.Video, error) {
	v, err := cs.repos.Videos.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if v.StoryID != s.ID {
		return nil, domain.ErrNotFound
	}
	if v.IsFinal || v.SequenceNumber == nil {
		return nil, errNotAClip
	}
	return v, nil
}

func (cs *clipService) Submit(dbc dbctx.Context, s *types.Story, clipID uuid.UUID) (*types.Video, error) {
	v, err := cs.load(dbc, s, clipID)
	if err != nil {
		return nil, err
	}
	if v.Status == domain.VideoProcessing {
		return nil, errClipBusy
	}
	busy, err := cs.repos.Videos.CountProcessing(dbc, s.ID, v.ID)
	if err != nil {
		return nil, err
	}
	if busy > 0 {
		return nil, errClipBusy
	}
	if err := cs.enqueue(dbc, s, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (cs *clipService) GenerateAll(dbc dbctx.Context, s *types.Story) (*types.Video, error) {
	busy, err := cs.repos.Videos.CountProcessing(dbc, s.ID, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if busy > 0 {
		return nil, errClipBusy
	}
	first, err := cs.repos.Videos.FirstQueued(dbc, s.ID)
	if err != nil {
		return nil, err
	}
	if first == nil {
		return nil, errNoQueuedClips
	}
	if err := cs.enqueue(dbc, s, first); err != nil {
		return nil, err
	}
	return first, nil
}

// Regenerate stores the overrides on the clip and queues it again. The final cut
// no longer matches its clips, so it is dropped.
func (cs *clipService) Regenerate(dbc dbctx.Context, s *types.Story, clipID uuid.UUID, in ClipRegenerate) (*types.Video, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	v, err := cs.load(dbc, s, clipID)
	if err != nil {
		return nil, err
	}
	if err := cs.repos.Videos.DeleteFinals(dbc, s.ID); err != nil {
		return nil, err
	}
	if in.Prompt != nil && strings.TrimSpace(*in.Prompt) != "" {
		v.Prompt = strings.TrimSpace(*in.Prompt)
	}
	ann := v.Annotations()
	ann.Params = in.params()
	ann.Error = ""
	v.SetAnnotations(ann)
	if err := cs.repos.Videos.Update(dbc, v); err != nil {
		return nil, err
	}
	if _, err := cs.jobs.CancelForEntity(dbc, EntityVideo, v.ID, []string{JobClipGenerate}); err != nil {
		return nil, err
	}
	if err := cs.enqueue(dbc, s, v); err != nil {
		return nil, err
	}
	cs.notify.ClipUpdated(s.UserID, v)
	return v, nil
}

func (cs *clipService) Upload(dbc dbctx.Context, s *types.Story, clipID uuid.UUID, r io.Reader, ext string) (*types.Video, error) {
	v, err := cs.load(dbc, s, clipID)
	if err != nil {
		return nil, err
	}
	if ext == "" {
		ext = "mp4"
	}
	stored, err := cs.media.StoreReader(dbc.Context(), r, VideoDir(s.ID), ext)
	if err != nil {
		return nil, err
	}
	if _, err := cs.jobs.CancelForEntity(dbc, EntityVideo, v.ID, []string{JobClipGenerate}); err != nil {
		return nil, err
	}
	v.VideoPath = &stored.Path
	v.VideoURL = &stored.URL
	v.Status = domain.VideoCompleted
	ann := v.Annotations()
	ann.Stale = false
	ann.Error = ""
	v.SetAnnotations(ann)
	if err := cs.repos.Videos.Update(dbc, v); err != nil {
		return nil, err
	}
	if err := cs.repos.Videos.DeleteFinals(dbc, s.ID); err != nil {
		return nil, err
	}
	cs.notify.ClipUpdated(s.UserID, v)
	return v, nil
}

func (cs *clipService) Concatenate(dbc dbctx.Context, s *types.Story) error {
	clips, err := cs.repos.Videos.ListClips(dbc, s.ID)
	if err != nil {
		return err
	}
	if len(clips) == 0 {
		return errNoClipsToConcat
	}
	if !allCompleted(clips) {
		return errNotAllClipsCompleted
	}
	_, _, err = cs.jobs.EnqueueIfAbsent(dbc, s.UserID, JobConcatenateVideos, EntityStory, s.ID, map[string]any{"story_id": s.ID.String()})
	return err
}

func (cs *clipService) Continue(dbc dbctx.Context, s *types.Story, done *types.Video) (ChainStep, error) {
	next, err := cs.repos.Videos.NextQueuedAfter(dbc, s.ID, done.Seq())
	if err != nil {
		return ChainIdle, err
	}
	if next != nil {
		if err := cs.enqueue(dbc, s, next); err != nil {
			return ChainIdle, err
		}
		return ChainSubmitted, nil
	}
	clips, err := cs.repos.Videos.ListClips(dbc, s.ID)
	if err != nil {
		return ChainIdle, err
	}
	if len(clips) == 0 || !allCompleted(clips) {
		return ChainIdle, nil
	}
	if _, _, err := cs.jobs.EnqueueIfAbsent(dbc, s.UserID, JobConcatenateVideos, EntityStory, s.ID, map[string]any{"story_id": s.ID.String()}); err != nil {
		return ChainIdle, err
	}
	return ChainConcatenate, nil
}

func (cs *clipService) enqueue(dbc dbctx.Context, s *types.Story, v *types.Video) error {
	_, created, err := cs.jobs.EnqueueIfAbsent(dbc, s.UserID, JobClipGenerate, EntityVideo, v.ID, map[string]any{
		"story_id": s.ID.String(),
		"video_id": v.ID.String(),
	})
	if err != nil {
		return err
	}
	if created {
		cs.log.Info("Clip generation queued", "story_id", s.ID, "video_id", v.ID, "sequence", v.Seq())
	}
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
