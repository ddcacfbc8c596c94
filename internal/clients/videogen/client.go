// Package videogen submits and polls image-to-video generation tasks.
package videogen

import (
	"context"
	"errors"
)

var ErrNotConfigured = errors.New("video generation API key is not configured; add it in Settings")

type Credentials struct {
	// APIKey is "access:secret" for Kling and a bearer key for Higgsfield.
	APIKey string
}

type State string

const (
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// KlingModels are the model names accepted for clip regeneration.
var KlingModels = []string{
	"kling-v2-6", "kling-v2-5-turbo", "kling-v2-1-master", "kling-v2-master", "kling-v1-6", "kling-v1",
}

// CameraControls are the accepted camera control presets.
var CameraControls = []string{"simple", "down_back", "forward_up", "right_turn_forward", "left_turn_forward"}

type Params struct {
	Prompt         string  `json:"prompt,omitempty"`
	Duration       string  `json:"duration,omitempty"`
	Mode           string  `json:"mode,omitempty"`
	ModelName      string  `json:"model_name,omitempty"`
	NegativePrompt string  `json:"negative_prompt,omitempty"`
	AspectRatio    string  `json:"aspect_ratio,omitempty"`
	CfgScale       float64 `json:"cfg_scale,omitempty"`
	EnableAudio    bool    `json:"enable_audio,omitempty"`
	CameraControl  string  `json:"camera_control,omitempty"`
}

type VideoStatus struct {
	State           State
	VideoURL        string
	DurationSeconds int
	Error           string
}

// Client is the video generation port.
type Client interface {
	Provider() string
	Submit(ctx context.Context, creds Credentials, startURL, endURL string, p Params) (string, error)
	Poll(ctx context.Context, creds Credentials, taskID string) (VideoStatus, error)
}
