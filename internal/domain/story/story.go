package story

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Story is the aggregate root of one production run. Status is a cached projection;
// DeriveStageStatuses over persisted facts is the authority.
type Story struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Title        string         `gorm:"column:title;size:255;not null" json:"title"`
	Synopsis     *string        `gorm:"column:synopsis;type:text" json:"synopsis,omitempty"`
	FullScript   *string        `gorm:"column:full_script;type:text" json:"full_script,omitempty"`
	Status       StoryStatus    `gorm:"column:status;not null;index" json:"status"`
	CurrentStage *PipelineStage `gorm:"column:current_stage" json:"current_stage,omitempty"`
	ErrorMessage *string        `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	Metadata     datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Story) TableName() string { return "story" }

func (s *Story) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = StatusPending
	}
	return nil
}

// HasScript reports a non-blank finalized script.
func (s *Story) HasScript() bool {
	return s != nil && s.FullScript != nil && strings.TrimSpace(*s.FullScript) != ""
}

func (s *Story) Script() string {
	if s == nil || s.FullScript == nil {
		return ""
	}
	return *s.FullScript
}
