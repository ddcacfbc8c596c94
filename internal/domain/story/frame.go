package story

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FrameAnnotations carries scene placement and the character names visible in the frame.
// Character names match Character.Name exactly at generation time.
type FrameAnnotations struct {
	Scene            *int     `json:"scene,omitempty"`
	Second           *int     `json:"second,omitempty"`
	Characters       []string `json:"characters,omitempty"`
	Regenerating     bool     `json:"regenerating,omitempty"`
	Error            string   `json:"error,omitempty"`
	TaskID           string   `json:"task_id,omitempty"`
	OriginalImageURL string   `json:"original_image_url,omitempty"`
}

// StoryboardFrame sequence numbers are dense and 1-based per story.
type StoryboardFrame struct {
	ID               uuid.UUID                            `gorm:"type:uuid;primaryKey" json:"id"`
	StoryID          uuid.UUID                            `gorm:"type:uuid;not null;uniqueIndex:idx_frame_story_seq,priority:1" json:"story_id"`
	SequenceNumber   int                                  `gorm:"column:sequence_number;not null;uniqueIndex:idx_frame_story_seq,priority:2" json:"sequence_number"`
	SceneDescription string                               `gorm:"column:scene_description;type:text" json:"scene_description"`
	Prompt           string                               `gorm:"column:prompt;type:text" json:"prompt"`
	ImagePath        *string                              `gorm:"column:image_path" json:"image_path,omitempty"`
	ImageURL         *string                              `gorm:"column:image_url" json:"image_url,omitempty"`
	Metadata         datatypes.JSONType[FrameAnnotations] `gorm:"column:metadata;type:jsonb" json:"metadata"`
	CreatedAt        time.Time                            `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time                            `gorm:"not null" json:"updated_at"`
}

func (StoryboardFrame) TableName() string { return "storyboard_frame" }

func (f *StoryboardFrame) BeforeCreate(*gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

func (f *StoryboardFrame) Annotations() FrameAnnotations { return f.Metadata.Data() }

func (f *StoryboardFrame) SetAnnotations(a FrameAnnotations) {
	f.Metadata = datatypes.NewJSONType(a)
}

func (f *StoryboardFrame) HasImage() bool {
	return f != nil && f.ImageURL != nil && *f.ImageURL != ""
}
