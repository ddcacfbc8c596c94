package story

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type VideoStatus string

const (
	VideoQueued     VideoStatus = "queued"
	VideoProcessing VideoStatus = "processing"
	VideoCompleted  VideoStatus = "completed"
	VideoFailed     VideoStatus = "failed"
)

// VideoAnnotations: Stale is set when a referenced frame changed after the clip was generated.
type VideoAnnotations struct {
	Stale    bool           `json:"stale,omitempty"`
	Error    string         `json:"error,omitempty"`
	Provider string         `json:"provider,omitempty"`
	Params   map[string]any `json:"params,omitempty"`
}

// Video is either a clip (IsFinal=false, chained frame i -> i+1) or the single final cut.
type Video struct {
	ID              uuid.UUID                            `gorm:"type:uuid;primaryKey" json:"id"`
	StoryID         uuid.UUID                            `gorm:"type:uuid;not null;index" json:"story_id"`
	IsFinal         bool                                 `gorm:"column:is_final;not null;default:false;index" json:"is_final"`
	SequenceNumber  *int                                 `gorm:"column:sequence_number" json:"sequence_number,omitempty"`
	FrameFromID     *uuid.UUID                           `gorm:"type:uuid;column:frame_from_id;index" json:"frame_from_id,omitempty"`
	FrameToID       *uuid.UUID                           `gorm:"type:uuid;column:frame_to_id;index" json:"frame_to_id,omitempty"`
	Prompt          string                               `gorm:"column:prompt;type:text" json:"prompt"`
	ExternalJobID   string                               `gorm:"column:external_job_id" json:"external_job_id,omitempty"`
	Status          VideoStatus                          `gorm:"column:status;not null;index" json:"status"`
	VideoPath       *string                              `gorm:"column:video_path" json:"video_path,omitempty"`
	VideoURL        *string                              `gorm:"column:video_url" json:"video_url,omitempty"`
	DurationSeconds *int                                 `gorm:"column:duration_seconds" json:"duration_seconds,omitempty"`
	Metadata        datatypes.JSONType[VideoAnnotations] `gorm:"column:metadata;type:jsonb" json:"metadata"`
	CreatedAt       time.Time                            `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time                            `gorm:"not null" json:"updated_at"`
}

func (Video) TableName() string { return "video" }

func (v *Video) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.Status == "" {
		v.Status = VideoQueued
	}
	return nil
}

func (v *Video) Annotations() VideoAnnotations { return v.Metadata.Data() }

func (v *Video) SetAnnotations(a VideoAnnotations) {
	v.Metadata = datatypes.NewJSONType(a)
}

func (v *Video) Seq() int {
	if v == nil || v.SequenceNumber == nil {
		return 0
	}
	return *v.SequenceNumber
}

func (v *Video) HasURL() bool {
	return v != nil && v.VideoURL != nil && *v.VideoURL != ""
}
