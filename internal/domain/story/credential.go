package story

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Provider names a credentialed external service.
type Provider string

const (
	ProviderAnthropic  Provider = "anthropic"
	ProviderGemini     Provider = "gemini"
	ProviderNanoBanana Provider = "nano_banana"
	ProviderKling      Provider = "kling"
	ProviderHiggsfield Provider = "higgsfield"
)

var Providers = []Provider{ProviderAnthropic, ProviderGemini, ProviderNanoBanana, ProviderKling, ProviderHiggsfield}

func ParseProvider(s string) (Provider, bool) {
	for _, p := range Providers {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// ApiCredential stores one sealed provider secret per user.
type ApiCredential struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_credential_user_provider,priority:1" json:"user_id"`
	Provider        Provider  `gorm:"column:provider;not null;uniqueIndex:idx_credential_user_provider,priority:2" json:"provider"`
	EncryptedSecret string    `gorm:"column:encrypted_secret;type:text;not null" json:"-"`
	IsActive        bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt       time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null" json:"updated_at"`
}

func (ApiCredential) TableName() string { return "api_credential" }

func (c *ApiCredential) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
