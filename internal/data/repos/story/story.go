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

type StoryRepo interface {
	Create(dbc dbctx.Context, s *types.Story) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Story, error)
	GetForUser(dbc dbctx.Context, userID uuid.UUID, id uuid.UUID) (*types.Story, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.Story, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	SoftDelete(dbc dbctx.Context, id uuid.UUID) error
	Facts(dbc dbctx.Context, s *types.Story) (domain.Facts, error)
}

type storyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStoryRepo(db *gorm.DB, baseLog *logger.Logger) StoryRepo {
	return &storyRepo{db: db, log: baseLog.With("repo", "StoryRepo")}
}

func (r *storyRepo) Create(dbc dbctx.Context, s *types.Story) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Context()).Create(s).Error
}

func (r *storyRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Story, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, domain.ErrNotFound
	}
	var s types.Story
	err := transaction.WithContext(dbc.Context()).Where("id = ?", id).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *storyRepo) GetForUser(dbc dbctx.Context, userID uuid.UUID, id uuid.UUID) (*types.Story, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || userID == uuid.Nil {
		return nil, domain.ErrNotFound
	}
	var s types.Story
	err := transaction.WithContext(dbc.Context()).
		Where("id = ? AND user_id = ?", id, userID).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *storyRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.Story, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Story
	if userID == uuid.Nil {
		return out, nil
	}
	err := transaction.WithContext(dbc.Context()).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

func (r *storyRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return transaction.WithContext(dbc.Context()).
		Model(&types.Story{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *storyRepo) SoftDelete(dbc dbctx.Context, id uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Context()).Where("id = ?", id).Delete(&types.Story{}).Error
}

// Facts loads the persisted predicates that stage status is derived from.
func (r *storyRepo) Facts(dbc dbctx.Context, s *types.Story) (domain.Facts, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	f := domain.Facts{Status: s.Status, CurrentStage: s.CurrentStage, HasScript: s.HasScript()}
	q := transaction.WithContext(dbc.Context())

	var n int64
	if err := q.Model(&types.Character{}).Where("story_id = ?", s.ID).Count(&n).Error; err != nil {
		return f, err
	}
	f.HasCharacters = n > 0

	if err := q.Model(&types.StoryboardFrame{}).Where("story_id = ?", s.ID).Count(&n).Error; err != nil {
		return f, err
	}
	f.HasFrames = n > 0

	if err := q.Model(&types.Video{}).
		Where("story_id = ? AND is_final = ? AND status = ?", s.ID, true, domain.VideoCompleted).
		Count(&n).Error; err != nil {
		return f, err
	}
	f.HasCompletedFinal = n > 0
	return f, nil
}
