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

type CharacterRepo interface {
	Create(dbc dbctx.Context, chars []*types.Character) ([]*types.Character, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Character, error)
	ListByStory(dbc dbctx.Context, storyID uuid.UUID) ([]*types.Character, error)
	ListWithImages(dbc dbctx.Context, storyID uuid.UUID, names []string) ([]*types.Character, error)
	Update(dbc dbctx.Context, c *types.Character) error
	Delete(dbc dbctx.Context, id uuid.UUID) error
	DeleteByStory(dbc dbctx.Context, storyID uuid.UUID) error
	// ListStuckRegenerating returns rows still flagged regenerating and untouched since before.
	ListStuckRegenerating(dbc dbctx.Context, before time.Time, limit int) ([]*types.Character, error)
}

type characterRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCharacterRepo(db *gorm.DB, baseLog *logger.Logger) CharacterRepo {
	return &characterRepo{db: db, log: baseLog.With("repo", "CharacterRepo")}
}

func (r *characterRepo) Create(dbc dbctx.Context, chars []*types.Character) ([]*types.Character, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(chars) == 0 {
		return []*types.Character{}, nil
	}
	if err := transaction.WithContext(dbc.Context()).Create(&chars).Error; err != nil {
		return nil, err
	}
	return chars, nil
}

func (r *characterRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Character, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var c types.Character
	err := transaction.WithContext(dbc.Context()).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *characterRepo) ListByStory(dbc dbctx.Context, storyID uuid.UUID) ([]*types.Character, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Character
	err := transaction.WithContext(dbc.Context()).
		Where("story_id = ?", storyID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

// ListWithImages returns characters that have a portrait, narrowed to names when non-empty.
func (r *characterRepo) ListWithImages(dbc dbctx.Context, storyID uuid.UUID, names []string) ([]*types.Character, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Character
	q := transaction.WithContext(dbc.Context()).
		Where("story_id = ? AND image_url IS NOT NULL AND image_url <> ''", storyID)
	if len(names) > 0 {
		q = q.Where("name IN ?", names)
	}
	err := q.Order("created_at ASC").Find(&out).Error
	return out, err
}

func (r *characterRepo) Update(dbc dbctx.Context, c *types.Character) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	c.UpdatedAt = time.Now().UTC()
	return transaction.WithContext(dbc.Context()).Save(c).Error
}

func (r *characterRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Context()).Where("id = ?", id).Delete(&types.Character{}).Error
}

func (r *characterRepo) DeleteByStory(dbc dbctx.Context, storyID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Context()).Where("story_id = ?", storyID).Delete(&types.Character{}).Error
}

func (r *characterRepo) ListStuckRegenerating(dbc dbctx.Context, before time.Time, limit int) ([]*types.Character, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 100
	}
	var out []*types.Character
	// regenerating is omitted from the JSON when false, so key presence is the flag.
	err := transaction.WithContext(dbc.Context()).
		Where(datatypes.JSONQuery("metadata").HasKey("regenerating")).
		Where("updated_at < ?", before).
		Order("updated_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
