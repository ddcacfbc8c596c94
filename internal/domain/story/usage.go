package story

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ApiUsage is one external call, recorded for cost accounting.
type ApiUsage struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	StoryID      *uuid.UUID     `gorm:"type:uuid;index" json:"story_id,omitempty"`
	UserID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Service      string         `gorm:"column:service;not null;index" json:"service"`
	Operation    string         `gorm:"column:operation;not null" json:"operation"`
	InputTokens  *int           `gorm:"column:input_tokens" json:"input_tokens,omitempty"`
	OutputTokens *int           `gorm:"column:output_tokens" json:"output_tokens,omitempty"`
	CostCents    *int           `gorm:"column:cost_cents" json:"cost_cents,omitempty"`
	Metadata     datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;index" json:"created_at"`
}

func (ApiUsage) TableName() string { return "api_usage" }

func (u *ApiUsage) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
