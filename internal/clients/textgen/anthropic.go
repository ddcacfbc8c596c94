package textgen

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
)

const DefaultAnthropicModel = "claude-sonnet-4-20250514"

type AnthropicOptions struct {
	Model string
	// BaseURL overrides the API endpoint; empty uses the SDK default.
	BaseURL    string
	MaxRetries int
}

type anthropicCompleter struct {
	opts AnthropicOptions
}

// NewAnthropic builds a Client backed by the Anthropic Messages API.
// The API key comes per call so each user's stored credential is used.
func NewAnthropic(log *logger.Logger, opts AnthropicOptions) Client {
	if strings.TrimSpace(opts.Model) == "" {
		opts.Model = DefaultAnthropicModel
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 2
	}
	return newClient(log, &anthropicCompleter{opts: opts})
}

func (a *anthropicCompleter) name() string { return "anthropic" }

func (a *anthropicCompleter) complete(ctx context.Context, apiKey string, req completion) (string, Usage, error) {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(a.opts.MaxRetries),
	}
	if a.opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(a.opts.BaseURL))
	}
	client := anthropic.NewClient(reqOpts...)

	msgs := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		if m.Role == RoleAssistant {
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		} else {
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.opts.Model),
		MaxTokens: int64(req.MaxTokens),
		Messages:  msgs,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return "", Usage{Model: a.opts.Model}, err
	}
	usage := Usage{
		Model:        a.opts.Model,
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}
	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", usage, errors.New("empty response")
	}
	return text.String(), usage, nil
}
