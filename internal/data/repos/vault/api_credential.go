package vault

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	"github.com/pandoapps/videoSoryBoard/internal/domain/story"
	"github.com/pandoapps/videoSoryBoard/internal/platform/dbctx"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
)

type ApiCredentialRepo interface {
	Get(dbc dbctx.Context, userID uuid.UUID, provider story.Provider) (*types.ApiCredential, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.ApiCredential, error)
	Upsert(dbc dbctx.Context, userID uuid.UUID, provider story.Provider, sealed string) error
	Delete(dbc dbctx.Context, userID uuid.UUID, provider story.Provider) error
}

type apiCredentialRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewApiCredentialRepo(db *gorm.DB, baseLog *logger.Logger) ApiCredentialRepo {
	return &apiCredentialRepo{db: db, log: baseLog.With("repo", "ApiCredentialRepo")}
}

// Get returns nil without error when the user has no row for provider.
func (r *apiCredentialRepo) Get(dbc dbctx.Context, userID uuid.UUID, provider story.Provider) (*types.ApiCredential, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var c types.ApiCredential
	err := transaction.WithContext(dbc.Context()).
		Where("user_id = ? AND provider = ?", userID, provider).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *apiCredentialRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.ApiCredential, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ApiCredential
	err := transaction.WithContext(dbc.Context()).Where("user_id = ?", userID).Find(&out).Error
	return out, err
}

func (r *apiCredentialRepo) Upsert(dbc dbctx.Context, userID uuid.UUID, provider story.Provider, sealed string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now().UTC()
	row := &types.ApiCredential{
		UserID:          userID,
		Provider:        provider,
		EncryptedSecret: sealed,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return transaction.WithContext(dbc.Context()).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "provider"}},
			DoUpdates: clause.AssignmentColumns([]string{"encrypted_secret", "is_active", "updated_at"}),
		}).
		Create(row).Error
}

func (r *apiCredentialRepo) Delete(dbc dbctx.Context, userID uuid.UUID, provider story.Provider) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Context()).
		Where("user_id = ? AND provider = ?", userID, provider).
		Delete(&types.ApiCredential{}).Error
}
