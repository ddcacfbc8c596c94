package services

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pandoapps/videoSoryBoard/internal/clients/textgen"
	"github.com/pandoapps/videoSoryBoard/internal/data/repos"
	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	domain "github.com/pandoapps/videoSoryBoard/internal/domain/story"
	"github.com/pandoapps/videoSoryBoard/internal/platform/dbctx"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
)

const regenerationTimedOut = "Regeneration timed out."

type RebuildResult struct {
	Kept    int `json:"kept"`
	Created int `json:"created"`
	Deleted int `json:"deleted"`
}

// StoryEditor keeps frames and the clip chain consistent under user edits.
type StoryEditor interface {
	DeleteFrame(dbc dbctx.Context, s *types.Story, frameID uuid.UUID) (RebuildResult, error)
	RebuildClipsAfterFrameDelete(dbc dbctx.Context, storyID uuid.UUID) (RebuildResult, error)
	InvalidateAffectedClips(dbc dbctx.Context, frame *types.StoryboardFrame) (int, error)
	ExpireStuckRegenerations(dbc dbctx.Context, olderThan time.Duration) (int, error)
}

type storyEditor struct {
	db    *gorm.DB
	log   *logger.Logger
	repos repos.Set
	media MediaStore
}

func NewStoryEditor(db *gorm.DB, baseLog *logger.Logger, rs repos.Set, media MediaStore) StoryEditor {
	return &storyEditor{db: db, log: baseLog.With("service", "StoryEditor"), repos: rs, media: media}
}

func (e *storyEditor) DeleteFrame(dbc dbctx.Context, s *types.Story, frameID uuid.UUID) (RebuildResult, error) {
	frame, err := e.repos.Frames.GetByID(dbc, frameID)
	if err != nil {
		return RebuildResult{}, err
	}
	if frame.StoryID != s.ID {
		return RebuildResult{}, domain.ErrNotFound
	}
	var res RebuildResult
	err = inTx(e.db, dbc, func(inner dbctx.Context) error {
		if err := e.repos.Frames.Delete(inner, frame.ID); err != nil {
			return err
		}
		if err := e.repos.Videos.DetachFrame(inner, frame.ID); err != nil {
			return err
		}
		if err := e.resequenceFrames(inner, s.ID); err != nil {
			return err
		}
		var err error
		res, err = e.RebuildClipsAfterFrameDelete(inner, s.ID)
		return err
	})
	if err != nil {
		return RebuildResult{}, err
	}
	// The image goes only once the row is gone for good.
	if frame.ImagePath != nil && e.media != nil {
		if err := e.media.Delete(dbc.Context(), *frame.ImagePath); err != nil {
			e.log.Warn("frame image delete failed", "frame_id", frame.ID, "error", err)
		}
	}
	e.log.Info("Frame deleted", "story_id", s.ID, "frame_id", frame.ID, "kept", res.Kept, "created", res.Created, "deleted", res.Deleted)
	return res, nil
}

// resequenceFrames closes gaps left by a delete. Ascending order keeps every
// move into a slot that is already free.
func (e *storyEditor) resequenceFrames(dbc dbctx.Context, storyID uuid.UUID) error {
	frames, err := e.repos.Frames.ListByStory(dbc, storyID)
	if err != nil {
		return err
	}
	for i, f := range frames {
		if f.SequenceNumber == i+1 {
			continue
		}
		if err := e.repos.Frames.SetSequence(dbc, f.ID, i+1); err != nil {
			return err
		}
		f.SequenceNumber = i + 1
	}
	return nil
}

type framePair struct {
	from uuid.UUID
	to   uuid.UUID
}

// RebuildClipsAfterFrameDelete reconciles clips against consecutive frame pairs:
// matching pairs are kept and resequenced, missing pairs get a queued clip,
// and everything else is deleted. Any final video is dropped. A second run
// creates and deletes no clips.
func (e *storyEditor) RebuildClipsAfterFrameDelete(dbc dbctx.Context, storyID uuid.UUID) (RebuildResult, error) {
	var res RebuildResult
	frames, err := e.repos.Frames.ListByStory(dbc, storyID)
	if err != nil {
		return res, err
	}
	clips, err := e.repos.Videos.ListClips(dbc, storyID)
	if err != nil {
		return res, err
	}

	existing := make(map[framePair]*types.Video, len(clips))
	var orphans []uuid.UUID
	for _, c := range clips {
		if c.FrameFromID == nil || c.FrameToID == nil {
			orphans = append(orphans, c.ID)
			continue
		}
		key := framePair{*c.FrameFromID, *c.FrameToID}
		if _, dup := existing[key]; dup {
			orphans = append(orphans, c.ID)
			continue
		}
		existing[key] = c
	}

	used := map[framePair]bool{}
	for i := 0; i+1 < len(frames); i++ {
		used[framePair{frames[i].ID, frames[i+1].ID}] = true
	}
	for key, c := range existing {
		if !used[key] {
			orphans = append(orphans, c.ID)
			delete(existing, key)
		}
	}
	if len(orphans) > 0 {
		if err := e.repos.Videos.Delete(dbc, orphans); err != nil {
			return res, err
		}
		res.Deleted = len(orphans)
	}

	var toCreate []*types.Video
	for i := 0; i+1 < len(frames); i++ {
		seq := i + 1
		from, to := frames[i], frames[i+1]
		if c, ok := existing[framePair{from.ID, to.ID}]; ok {
			res.Kept++
			if c.Seq() != seq {
				if err := e.repos.Videos.UpdateFields(dbc, c.ID, map[string]interface{}{"sequence_number": seq}); err != nil {
					return res, err
				}
			}
			continue
		}
		fromID, toID := from.ID, to.ID
		toCreate = append(toCreate, &types.Video{
			StoryID:        storyID,
			SequenceNumber: &seq,
			FrameFromID:    &fromID,
			FrameToID:      &toID,
			Prompt:         textgen.FallbackTransitionPrompt(from.SequenceNumber, to.SequenceNumber),
			Status:         domain.VideoQueued,
		})
	}
	if len(toCreate) > 0 {
		if _, err := e.repos.Videos.Create(dbc, toCreate); err != nil {
			return res, err
		}
		res.Created = len(toCreate)
	}

	if err := e.repos.Videos.DeleteFinals(dbc, storyID); err != nil {
		return res, err
	}
	return res, nil
}

// InvalidateAffectedClips flags clips touching frame as stale; they are kept.
func (e *storyEditor) InvalidateAffectedClips(dbc dbctx.Context, frame *types.StoryboardFrame) (int, error) {
	clips, err := e.repos.Videos.ListClips(dbc, frame.StoryID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range clips {
		touches := (c.FrameFromID != nil && *c.FrameFromID == frame.ID) || (c.FrameToID != nil && *c.FrameToID == frame.ID)
		if !touches {
			continue
		}
		ann := c.Annotations()
		if ann.Stale {
			continue
		}
		ann.Stale = true
		c.SetAnnotations(ann)
		if err := e.repos.Videos.Update(dbc, c); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// ExpireStuckRegenerations clears regenerating flags whose poll job never finished.
func (e *storyEditor) ExpireStuckRegenerations(dbc dbctx.Context, olderThan time.Duration) (int, error) {
	before := time.Now().UTC().Add(-olderThan)
	n := 0

	chars, err := e.repos.Characters.ListStuckRegenerating(dbc, before, 200)
	if err != nil {
		return 0, err
	}
	for _, c := range chars {
		ann := c.Annotations()
		ann.Regenerating = false
		ann.TaskID = ""
		ann.Error = regenerationTimedOut
		c.SetAnnotations(ann)
		if err := e.repos.Characters.Update(dbc, c); err != nil {
			return n, err
		}
		n++
	}

	frames, err := e.repos.Frames.ListStuckRegenerating(dbc, before, 200)
	if err != nil {
		return n, err
	}
	for _, f := range frames {
		ann := f.Annotations()
		ann.Regenerating = false
		ann.TaskID = ""
		ann.Error = regenerationTimedOut
		f.SetAnnotations(ann)
		if err := e.repos.Frames.Update(dbc, f); err != nil {
			return n, err
		}
		n++
	}
	if n > 0 {
		e.log.Warn("Expired stuck regenerations", "count", n)
	}
	return n, nil
}
