package story

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CharacterAnnotations holds transient portrait-generation facts.
type CharacterAnnotations struct {
	Regenerating     bool   `json:"regenerating,omitempty"`
	Error            string `json:"error,omitempty"`
	TaskID           string `json:"task_id,omitempty"`
	OriginalImageURL string `json:"original_image_url,omitempty"`
}

type Character struct {
	ID          uuid.UUID                                `gorm:"type:uuid;primaryKey" json:"id"`
	StoryID     uuid.UUID                                `gorm:"type:uuid;not null;index" json:"story_id"`
	Name        string                                   `gorm:"column:name;size:255;not null" json:"name"`
	Description string                                   `gorm:"column:description;type:text" json:"description"`
	ImagePath   *string                                  `gorm:"column:image_path" json:"image_path,omitempty"`
	ImageURL    *string                                  `gorm:"column:image_url" json:"image_url,omitempty"`
	Metadata    datatypes.JSONType[CharacterAnnotations] `gorm:"column:metadata;type:jsonb" json:"metadata"`
	CreatedAt   time.Time                                `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time                                `gorm:"not null" json:"updated_at"`
}

func (Character) TableName() string { return "character" }

func (c *Character) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (c *Character) Annotations() CharacterAnnotations { return c.Metadata.Data() }

func (c *Character) SetAnnotations(a CharacterAnnotations) {
	c.Metadata = datatypes.NewJSONType(a)
}
