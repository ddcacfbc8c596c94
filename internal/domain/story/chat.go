package story

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is one turn of the script-writing conversation.
type ChatMessage struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StoryID    uuid.UUID `gorm:"type:uuid;not null;index" json:"story_id"`
	Role       ChatRole  `gorm:"column:role;not null" json:"role"`
	Content    string    `gorm:"column:content;type:text;not null" json:"content"`
	TokenCount *int      `gorm:"column:token_count" json:"token_count,omitempty"`
	CreatedAt  time.Time `gorm:"not null;index" json:"created_at"`
}

func (ChatMessage) TableName() string { return "chat_message" }

func (m *ChatMessage) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
