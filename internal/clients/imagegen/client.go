// Package imagegen submits and polls asynchronous image generation tasks.
package imagegen

import (
	"context"
	"errors"
)

var ErrNotConfigured = errors.New("image generation API key is not configured; add it in Settings")

type Credentials struct {
	APIKey string
}

type State string

const (
	StateGenerating State = "generating"
	StateSuccess    State = "success"
	StateFailed     State = "failed"
)

type ImageStatus struct {
	State    State
	ImageURL string
	Error    string
}

// Client is the image generation port. Submit returns a provider task id.
type Client interface {
	Provider() string
	Submit(ctx context.Context, creds Credentials, prompt string, refs []string) (string, error)
	Poll(ctx context.Context, creds Credentials, taskID string) (ImageStatus, error)
}
