package story

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	domain "github.com/pandoapps/videoSoryBoard/internal/domain/story"
	"github.com/pandoapps/videoSoryBoard/internal/platform/dbctx"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
)

type VideoRepo interface {
	Create(dbc dbctx.Context, videos []*types.Video) ([]*types.Video, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Video, error)
	ListClips(dbc dbctx.Context, storyID uuid.UUID) ([]*types.Video, error)
	GetFinal(dbc dbctx.Context, storyID uuid.UUID) (*types.Video, error)
	ListPendingFinals(dbc dbctx.Context, limit int) ([]*types.Video, error)
	NextQueuedAfter(dbc dbctx.Context, storyID uuid.UUID, seq int) (*types.Video, error)
	FirstQueued(dbc dbctx.Context, storyID uuid.UUID) (*types.Video, error)
	CountProcessing(dbc dbctx.Context, storyID uuid.UUID, excludeID uuid.UUID) (int64, error)
	Update(dbc dbctx.Context, v *types.Video) error
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	DetachFrame(dbc dbctx.Context, frameID uuid.UUID) error
	Delete(dbc dbctx.Context, ids []uuid.UUID) error
	DeleteFinals(dbc dbctx.Context, storyID uuid.UUID) error
	DeleteByStory(dbc dbctx.Context, storyID uuid.UUID) error
}

type videoRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVideoRepo(db *gorm.DB, baseLog *logger.Logger) VideoRepo {
	return &videoRepo{db: db, log: baseLog.With("repo", "VideoRepo")}
}

func (r *videoRepo) Create(dbc dbctx.Context, videos []*types.Video) ([]*types.Video, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(videos) == 0 {
		return []*types.Video{}, nil
	}
	if err := transaction.WithContext(dbc.Context()).Create(&videos).Error; err != nil {
		return nil, err
	}
	return videos, nil
}

func (r *videoRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Video, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var v types.Video
	err := transaction.WithContext(dbc.Context()).Where("id = ?", id).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListClips returns the non-final videos ordered by sequence.
func (r *videoRepo) ListClips(dbc dbctx.Context, storyID uuid.UUID) ([]*types.Video, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Video
	err := transaction.WithContext(dbc.Context()).
		Where("story_id = ? AND is_final = ?", storyID, false).
		Order("sequence_number ASC").
		Find(&out).Error
	return out, err
}

func (r *videoRepo) GetFinal(dbc dbctx.Context, storyID uuid.UUID) (*types.Video, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var v types.Video
	err := transaction.WithContext(dbc.Context()).
		Where("story_id = ? AND is_final = ?", storyID, true).
		Order("created_at DESC").
		Limit(1).
		Find(&v).Error
	if err != nil {
		return nil, err
	}
	if v.ID == uuid.Nil {
		return nil, nil
	}
	return &v, nil
}

func (r *videoRepo) NextQueuedAfter(dbc dbctx.Context, storyID uuid.UUID, seq int) (*types.Video, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var v types.Video
	err := transaction.WithContext(dbc.Context()).
		Where("story_id = ? AND is_final = ? AND status = ? AND sequence_number > ?", storyID, false, domain.VideoQueued, seq).
		Order("sequence_number ASC").
		Limit(1).
		Find(&v).Error
	if err != nil {
		return nil, err
	}
	if v.ID == uuid.Nil {
		return nil, nil
	}
	return &v, nil
}

func (r *videoRepo) FirstQueued(dbc dbctx.Context, storyID uuid.UUID) (*types.Video, error) {
	return r.NextQueuedAfter(dbc, storyID, 0)
}

func (r *videoRepo) CountProcessing(dbc dbctx.Context, storyID uuid.UUID, excludeID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := transaction.WithContext(dbc.Context()).
		Model(&types.Video{}).
		Where("story_id = ? AND is_final = ? AND status = ? AND id <> ?", storyID, false, domain.VideoProcessing, excludeID).
		Count(&n).Error
	return n, err
}

func (r *videoRepo) Update(dbc dbctx.Context, v *types.Video) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	v.UpdatedAt = time.Now().UTC()
	return transaction.WithContext(dbc.Context()).Save(v).Error
}

func (r *videoRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return transaction.WithContext(dbc.Context()).
		Model(&types.Video{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// DetachFrame nulls the weak frame references a deleted frame leaves behind.
func (r *videoRepo) DetachFrame(dbc dbctx.Context, frameID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Context()).Model(&types.Video{})
	if err := q.Where("frame_from_id = ?", frameID).Update("frame_from_id", nil).Error; err != nil {
		return err
	}
	return transaction.WithContext(dbc.Context()).Model(&types.Video{}).
		Where("frame_to_id = ?", frameID).
		Update("frame_to_id", nil).Error
}

func (r *videoRepo) Delete(dbc dbctx.Context, ids []uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Context()).Where("id IN ?", ids).Delete(&types.Video{}).Error
}

// ListPendingFinals returns provider-rendered finals still waiting on their external task.
func (r *videoRepo) ListPendingFinals(dbc dbctx.Context, limit int) ([]*types.Video, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Video
	err := transaction.WithContext(dbc.Context()).
		Where("is_final = ? AND status IN ? AND external_job_id <> ?", true,
			[]domain.VideoStatus{domain.VideoQueued, domain.VideoProcessing}, "").
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *videoRepo) DeleteFinals(dbc dbctx.Context, storyID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Context()).
		Where("story_id = ? AND is_final = ?", storyID, true).
		Delete(&types.Video{}).Error
}

func (r *videoRepo) DeleteByStory(dbc dbctx.Context, storyID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Context()).Where("story_id = ?", storyID).Delete(&types.Video{}).Error
}
