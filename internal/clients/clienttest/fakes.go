// Package clienttest provides scriptable generation clients for tests.
package clienttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/pandoapps/videoSoryBoard/internal/clients/imagegen"
	"github.com/pandoapps/videoSoryBoard/internal/clients/textgen"
	"github.com/pandoapps/videoSoryBoard/internal/clients/videogen"
)

// Text answers every call from its fields. A nil func returns zero values.
type Text struct {
	Name  string
	Usage textgen.Usage
	Err   error

	ChatReply   string
	Script      string
	Characters  []textgen.CharacterSpec
	Scenes      []textgen.SceneEstimate
	Panels      []textgen.Panel
	Transitions []string

	mu    sync.Mutex
	Calls []string
	Keys  []string
}

func (t *Text) record(op string, creds textgen.Credentials) {
	t.mu.Lock()
	t.Calls = append(t.Calls, op)
	t.Keys = append(t.Keys, creds.APIKey)
	t.mu.Unlock()
}

func (t *Text) Provider() string {
	if t.Name == "" {
		return "anthropic"
	}
	return t.Name
}

func (t *Text) Chat(_ context.Context, creds textgen.Credentials, _ textgen.StoryContext, _ []textgen.Message) (string, textgen.Usage, error) {
	t.record("chat", creds)
	return t.ChatReply, t.Usage, t.Err
}

func (t *Text) ExtractScript(_ context.Context, creds textgen.Credentials, _ []textgen.Message) (string, textgen.Usage, error) {
	t.record("extract_script", creds)
	return t.Script, t.Usage, t.Err
}

func (t *Text) ExtractCharacters(_ context.Context, creds textgen.Credentials, _ string) ([]textgen.CharacterSpec, textgen.Usage, error) {
	t.record("extract_characters", creds)
	return t.Characters, t.Usage, t.Err
}

func (t *Text) EstimateScenes(_ context.Context, creds textgen.Credentials, _ string) ([]textgen.SceneEstimate, textgen.Usage, error) {
	t.record("estimate_scenes", creds)
	return t.Scenes, t.Usage, t.Err
}

func (t *Text) DescribeFrames(_ context.Context, creds textgen.Credentials, _ string, _ []textgen.SceneFrames, _ []string) ([]textgen.Panel, textgen.Usage, error) {
	t.record("describe_frames", creds)
	return t.Panels, t.Usage, t.Err
}

func (t *Text) TransitionPrompts(_ context.Context, creds textgen.Credentials, _ string, _ []textgen.Transition) ([]string, textgen.Usage, error) {
	t.record("transition_prompts", creds)
	return t.Transitions, t.Usage, t.Err
}

// Image hands out sequential task ids and answers polls from Statuses by task id.
type Image struct {
	SubmitErr error
	PollErr   error
	Statuses  map[string]imagegen.ImageStatus

	mu      sync.Mutex
	n       int
	Prompts []string
	Refs    [][]string
}

func (i *Image) Provider() string { return "nano_banana" }

func (i *Image) Submit(_ context.Context, _ imagegen.Credentials, prompt string, refs []string) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.SubmitErr != nil {
		return "", i.SubmitErr
	}
	i.n++
	i.Prompts = append(i.Prompts, prompt)
	i.Refs = append(i.Refs, refs)
	return fmt.Sprintf("img-task-%d", i.n), nil
}

func (i *Image) Poll(_ context.Context, _ imagegen.Credentials, taskID string) (imagegen.ImageStatus, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.PollErr != nil {
		return imagegen.ImageStatus{}, i.PollErr
	}
	if st, ok := i.Statuses[taskID]; ok {
		return st, nil
	}
	return imagegen.ImageStatus{State: imagegen.StateGenerating}, nil
}

// Video mirrors Image for clip generation.
type Video struct {
	Name      string
	SubmitErr error
	PollErr   error
	Statuses  map[string]videogen.VideoStatus

	mu      sync.Mutex
	n       int
	Submits []VideoSubmit
}

type VideoSubmit struct {
	StartURL string
	EndURL   string
	Params   videogen.Params
}

func (v *Video) Provider() string {
	if v.Name == "" {
		return "kling"
	}
	return v.Name
}

func (v *Video) Submit(_ context.Context, _ videogen.Credentials, startURL, endURL string, p videogen.Params) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.SubmitErr != nil {
		return "", v.SubmitErr
	}
	v.n++
	v.Submits = append(v.Submits, VideoSubmit{StartURL: startURL, EndURL: endURL, Params: p})
	return fmt.Sprintf("vid-task-%d", v.n), nil
}

func (v *Video) Poll(_ context.Context, _ videogen.Credentials, taskID string) (videogen.VideoStatus, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.PollErr != nil {
		return videogen.VideoStatus{}, v.PollErr
	}
	if st, ok := v.Statuses[taskID]; ok {
		return st, nil
	}
	return videogen.VideoStatus{State: videogen.StateProcessing}, nil
}

// SetStatus is safe to call while a handler polls.
func (v *Video) SetStatus(taskID string, st videogen.VideoStatus) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.Statuses == nil {
		v.Statuses = map[string]videogen.VideoStatus{}
	}
	v.Statuses[taskID] = st
}

func (i *Image) SetStatus(taskID string, st imagegen.ImageStatus) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.Statuses == nil {
		i.Statuses = map[string]imagegen.ImageStatus{}
	}
	i.Statuses[taskID] = st
}
