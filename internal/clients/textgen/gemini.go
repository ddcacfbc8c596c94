package textgen

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"

	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
)

const DefaultGeminiModel = "gemini-2.5-flash"

type GeminiOptions struct {
	Model   string
	BaseURL string
}

type geminiCompleter struct {
	opts GeminiOptions
}

// NewGemini builds a Client backed by the Gemini API.
func NewGemini(log *logger.Logger, opts GeminiOptions) Client {
	if strings.TrimSpace(opts.Model) == "" {
		opts.Model = DefaultGeminiModel
	}
	return newClient(log, &geminiCompleter{opts: opts})
}

func (g *geminiCompleter) name() string { return "gemini" }

func (g *geminiCompleter) complete(ctx context.Context, apiKey string, req completion) (string, Usage, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if g.opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return "", Usage{Model: g.opts.Model}, err
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		var role string
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		} else {
			role = genai.RoleUser
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(m.Content)},
		})
	}
	genCfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if req.System != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := client.Models.GenerateContent(ctx, g.opts.Model, contents, genCfg)
	if err != nil {
		return "", Usage{Model: g.opts.Model}, err
	}
	usage := Usage{Model: g.opts.Model}
	if resp.UsageMetadata != nil {
		usage.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil {
				text.WriteString(part.Text)
			}
		}
		break
	}
	if text.Len() == 0 {
		return "", usage, errors.New("empty response")
	}
	return text.String(), usage, nil
}
