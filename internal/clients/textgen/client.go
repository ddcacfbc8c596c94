// Package textgen wraps the language models that chat about, extract and plan a story.
package textgen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pandoapps/videoSoryBoard/internal/observability"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
)

// ErrNotConfigured is returned when a call is made without an API key.
var ErrNotConfigured = errors.New("text generation API key is not configured; add it in Settings")

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Credentials struct {
	APIKey string
}

// Usage is the token accounting for one model call.
type Usage struct {
	Model        string
	InputTokens  int
	OutputTokens int
}

type Message struct {
	Role    string
	Content string
}

type StoryContext struct {
	Title    string
	Synopsis string
}

type CharacterSpec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type SceneEstimate struct {
	Scene           int    `json:"scene"`
	DurationSeconds int    `json:"duration_seconds"`
	Summary         string `json:"summary"`
}

// SceneFrames is one line of the frame plan handed to DescribeFrames.
type SceneFrames struct {
	Scene           int
	DurationSeconds int
	Summary         string
	Frames          []int
}

// Panel is one storyboard frame description, numbered from 1 across all scenes.
type Panel struct {
	PanelNumber int
	Scene       int
	Second      int
	Description string
	Characters  []string
}

type Transition struct {
	FromSeq  int
	ToSeq    int
	FromDesc string
	ToDesc   string
}

// Client is the text model port used by the pipeline and the script chat.
type Client interface {
	Provider() string
	Chat(ctx context.Context, creds Credentials, story StoryContext, history []Message) (string, Usage, error)
	ExtractScript(ctx context.Context, creds Credentials, history []Message) (string, Usage, error)
	ExtractCharacters(ctx context.Context, creds Credentials, script string) ([]CharacterSpec, Usage, error)
	EstimateScenes(ctx context.Context, creds Credentials, script string) ([]SceneEstimate, Usage, error)
	DescribeFrames(ctx context.Context, creds Credentials, script string, plan []SceneFrames, characterNames []string) ([]Panel, Usage, error)
	TransitionPrompts(ctx context.Context, creds Credentials, script string, transitions []Transition) ([]string, Usage, error)
}

type completion struct {
	System    string
	Messages  []Message
	MaxTokens int
	Timeout   time.Duration
}

// completer is the provider-specific half: one system prompt plus a turn list in, text out.
type completer interface {
	name() string
	complete(ctx context.Context, apiKey string, req completion) (string, Usage, error)
}

type client struct {
	log  *logger.Logger
	impl completer
}

func newClient(log *logger.Logger, impl completer) *client {
	if log == nil {
		log = logger.Nop()
	}
	return &client{log: log.With("client", "textgen", "provider", impl.name()), impl: impl}
}

func (c *client) Provider() string { return c.impl.name() }

func (c *client) call(ctx context.Context, op string, creds Credentials, req completion) (string, Usage, error) {
	if strings.TrimSpace(creds.APIKey) == "" {
		return "", Usage{}, ErrNotConfigured
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	start := time.Now()
	text, usage, err := c.impl.complete(ctx, creds.APIKey, req)
	m := observability.Current()
	m.ObserveProviderCall(c.impl.name(), op, err, time.Since(start))
	if err != nil {
		c.log.Warn("completion failed", "op", op, "error", err)
		return "", usage, fmt.Errorf("%s %s: %w", c.impl.name(), op, err)
	}
	m.ObserveLLMTokens(usage.Model, usage.InputTokens, usage.OutputTokens)
	c.log.Debug("completion done", "op", op, "input_tokens", usage.InputTokens, "output_tokens", usage.OutputTokens)
	return text, usage, nil
}

func (c *client) Chat(ctx context.Context, creds Credentials, story StoryContext, history []Message) (string, Usage, error) {
	system, err := Render("chat_system", story)
	if err != nil {
		return "", Usage{}, err
	}
	return c.call(ctx, "chat", creds, completion{
		System:    system,
		Messages:  history,
		MaxTokens: 4096,
		Timeout:   60 * time.Second,
	})
}

func (c *client) ExtractScript(ctx context.Context, creds Credentials, history []Message) (string, Usage, error) {
	system, err := Render("extract_script_system", nil)
	if err != nil {
		return "", Usage{}, err
	}
	request, err := Render("extract_script_request", nil)
	if err != nil {
		return "", Usage{}, err
	}
	msgs := append(append([]Message{}, history...), Message{Role: RoleUser, Content: request})
	return c.call(ctx, "extract_script", creds, completion{
		System:    system,
		Messages:  msgs,
		MaxTokens: 8192,
		Timeout:   90 * time.Second,
	})
}

func (c *client) ExtractCharacters(ctx context.Context, creds Credentials, script string) ([]CharacterSpec, Usage, error) {
	text, usage, err := c.single(ctx, "extract_characters", creds, "characters_system", "characters_user",
		map[string]any{"Script": script}, 4096, 60*time.Second)
	if err != nil {
		return nil, usage, err
	}
	out, err := parseCharacters(text)
	return out, usage, err
}

func (c *client) EstimateScenes(ctx context.Context, creds Credentials, script string) ([]SceneEstimate, Usage, error) {
	text, usage, err := c.single(ctx, "estimate_scenes", creds, "scenes_system", "scenes_user",
		map[string]any{"Script": script}, 4096, 60*time.Second)
	if err != nil {
		return nil, usage, err
	}
	out, err := parseScenes(text)
	return out, usage, err
}

func (c *client) DescribeFrames(ctx context.Context, creds Credentials, script string, plan []SceneFrames, characterNames []string) ([]Panel, Usage, error) {
	total := 0
	for _, s := range plan {
		total += len(s.Frames)
	}
	data := map[string]any{
		"Script":         script,
		"Scenes":         plan,
		"TotalFrames":    total,
		"CharacterNames": characterNames,
	}
	text, usage, err := c.single(ctx, "describe_frames", creds, "frames_system", "frames_user", data, 8192, 120*time.Second)
	if err != nil {
		return nil, usage, err
	}
	out, err := parsePanels(text)
	return out, usage, err
}

func (c *client) TransitionPrompts(ctx context.Context, creds Credentials, script string, transitions []Transition) ([]string, Usage, error) {
	if len(transitions) == 0 {
		return nil, Usage{}, nil
	}
	data := map[string]any{"Script": script, "Transitions": transitions}
	text, usage, err := c.single(ctx, "transition_prompts", creds, "transitions_system", "transitions_user", data, 4096, 60*time.Second)
	if err != nil {
		return nil, usage, err
	}
	out, err := parseTransitions(text, transitions)
	return out, usage, err
}

func (c *client) single(ctx context.Context, op string, creds Credentials, systemTpl, userTpl string, data any, maxTokens int, timeout time.Duration) (string, Usage, error) {
	system, err := Render(systemTpl, data)
	if err != nil {
		return "", Usage{}, err
	}
	user, err := Render(userTpl, data)
	if err != nil {
		return "", Usage{}, err
	}
	return c.call(ctx, op, creds, completion{
		System:    system,
		Messages:  []Message{{Role: RoleUser, Content: user}},
		MaxTokens: maxTokens,
		Timeout:   timeout,
	})
}
