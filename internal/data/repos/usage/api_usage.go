package usage

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	"github.com/pandoapps/videoSoryBoard/internal/platform/dbctx"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
)

// StoryServiceTotal aggregates the usage rows of one story and service.
type StoryServiceTotal struct {
	StoryID      uuid.UUID `json:"story_id"`
	StoryTitle   string    `json:"story_title"`
	Service      string    `json:"service"`
	CallCount    int64     `json:"call_count"`
	InputTokens  int64     `json:"input_tokens"`
	OutputTokens int64     `json:"output_tokens"`
	CostCents    int64     `json:"cost_cents"`
}

type ApiUsageRepo interface {
	Create(dbc dbctx.Context, u *types.ApiUsage) error
	ListByStory(dbc dbctx.Context, storyID uuid.UUID) ([]*types.ApiUsage, error)
	TotalsByStoryAndService(dbc dbctx.Context, userID uuid.UUID) ([]StoryServiceTotal, error)
}

type apiUsageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewApiUsageRepo(db *gorm.DB, baseLog *logger.Logger) ApiUsageRepo {
	return &apiUsageRepo{db: db, log: baseLog.With("repo", "ApiUsageRepo")}
}

func (r *apiUsageRepo) Create(dbc dbctx.Context, u *types.ApiUsage) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Context()).Create(u).Error
}

func (r *apiUsageRepo) ListByStory(dbc dbctx.Context, storyID uuid.UUID) ([]*types.ApiUsage, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ApiUsage
	err := transaction.WithContext(dbc.Context()).
		Where("story_id = ?", storyID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (r *apiUsageRepo) TotalsByStoryAndService(dbc dbctx.Context, userID uuid.UUID) ([]StoryServiceTotal, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []StoryServiceTotal
	err := transaction.WithContext(dbc.Context()).
		Table("api_usage").
		Select(`story.id AS story_id,
			story.title AS story_title,
			api_usage.service AS service,
			COUNT(*) AS call_count,
			COALESCE(SUM(api_usage.input_tokens), 0) AS input_tokens,
			COALESCE(SUM(api_usage.output_tokens), 0) AS output_tokens,
			COALESCE(SUM(api_usage.cost_cents), 0) AS cost_cents`).
		Joins("JOIN story ON story.id = api_usage.story_id").
		Where("story.user_id = ?", userID).
		Group("story.id, story.title, api_usage.service").
		Order("story.id DESC").
		Scan(&out).Error
	return out, err
}
