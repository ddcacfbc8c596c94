package story

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	"github.com/pandoapps/videoSoryBoard/internal/platform/dbctx"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
)

type ChatMessageRepo interface {
	Create(dbc dbctx.Context, m *types.ChatMessage) error
	ListByStory(dbc dbctx.Context, storyID uuid.UUID) ([]*types.ChatMessage, error)
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type chatMessageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatMessageRepo(db *gorm.DB, baseLog *logger.Logger) ChatMessageRepo {
	return &chatMessageRepo{db: db, log: baseLog.With("repo", "ChatMessageRepo")}
}

func (r *chatMessageRepo) Create(dbc dbctx.Context, m *types.ChatMessage) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Context()).Create(m).Error
}

func (r *chatMessageRepo) ListByStory(dbc dbctx.Context, storyID uuid.UUID) ([]*types.ChatMessage, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ChatMessage
	err := transaction.WithContext(dbc.Context()).
		Where("story_id = ?", storyID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (r *chatMessageRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Context()).Where("id = ?", id).Delete(&types.ChatMessage{}).Error
}
