package story

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	domain "github.com/pandoapps/videoSoryBoard/internal/domain/story"
	"github.com/pandoapps/videoSoryBoard/internal/platform/dbctx"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
)

type FrameRepo interface {
	Create(dbc dbctx.Context, frames []*types.StoryboardFrame) ([]*types.StoryboardFrame, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.StoryboardFrame, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) (map[uuid.UUID]*types.StoryboardFrame, error)
	ListByStory(dbc dbctx.Context, storyID uuid.UUID) ([]*types.StoryboardFrame, error)
	ListRecentWithImages(dbc dbctx.Context, storyID uuid.UUID, excludeID uuid.UUID, limit int) ([]*types.StoryboardFrame, error)
	Update(dbc dbctx.Context, f *types.StoryboardFrame) error
	SetSequence(dbc dbctx.Context, id uuid.UUID, seq int) error
	Delete(dbc dbctx.Context, id uuid.UUID) error
	DeleteByStory(dbc dbctx.Context, storyID uuid.UUID) error
	// ListStuckRegenerating returns rows still flagged regenerating and untouched since before.
	ListStuckRegenerating(dbc dbctx.Context, before time.Time, limit int) ([]*types.StoryboardFrame, error)
}

type frameRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFrameRepo(db *gorm.DB, baseLog *logger.Logger) FrameRepo {
	return &frameRepo{db: db, log: baseLog.With("repo", "FrameRepo")}
}

func (r *frameRepo) Create(dbc dbctx.Context, frames []*types.StoryboardFrame) ([]*types.StoryboardFrame, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(frames) == 0 {
		return []*types.StoryboardFrame{}, nil
	}
	if err := transaction.WithContext(dbc.Context()).Create(&frames).Error; err != nil {
		return nil, err
	}
	return frames, nil
}

func (r *frameRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.StoryboardFrame, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var f types.StoryboardFrame
	err := transaction.WithContext(dbc.Context()).Where("id = ?", id).First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *frameRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) (map[uuid.UUID]*types.StoryboardFrame, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	out := map[uuid.UUID]*types.StoryboardFrame{}
	if len(ids) == 0 {
		return out, nil
	}
	var rows []*types.StoryboardFrame
	if err := transaction.WithContext(dbc.Context()).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, f := range rows {
		out[f.ID] = f
	}
	return out, nil
}

func (r *frameRepo) ListByStory(dbc dbctx.Context, storyID uuid.UUID) ([]*types.StoryboardFrame, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.StoryboardFrame
	err := transaction.WithContext(dbc.Context()).
		Where("story_id = ?", storyID).
		Order("sequence_number ASC").
		Find(&out).Error
	return out, err
}

func (r *frameRepo) ListRecentWithImages(dbc dbctx.Context, storyID uuid.UUID, excludeID uuid.UUID, limit int) ([]*types.StoryboardFrame, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.StoryboardFrame
	err := transaction.WithContext(dbc.Context()).
		Where("story_id = ? AND id <> ? AND image_url IS NOT NULL AND image_url <> ''", storyID, excludeID).
		Order("sequence_number DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *frameRepo) Update(dbc dbctx.Context, f *types.StoryboardFrame) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	f.UpdatedAt = time.Now().UTC()
	return transaction.WithContext(dbc.Context()).Save(f).Error
}

func (r *frameRepo) SetSequence(dbc dbctx.Context, id uuid.UUID, seq int) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Context()).
		Model(&types.StoryboardFrame{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"sequence_number": seq, "updated_at": time.Now().UTC()}).Error
}

func (r *frameRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Context()).Where("id = ?", id).Delete(&types.StoryboardFrame{}).Error
}

func (r *frameRepo) DeleteByStory(dbc dbctx.Context, storyID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Context()).Where("story_id = ?", storyID).Delete(&types.StoryboardFrame{}).Error
}

func (r *frameRepo) ListStuckRegenerating(dbc dbctx.Context, before time.Time, limit int) ([]*types.StoryboardFrame, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 100
	}
	var out []*types.StoryboardFrame
	// regenerating is omitted from the JSON when false, so key presence is the flag.
	err := transaction.WithContext(dbc.Context()).
		Where(datatypes.JSONQuery("metadata").HasKey("regenerating")).
		Where("updated_at < ?", before).
		Order("updated_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
