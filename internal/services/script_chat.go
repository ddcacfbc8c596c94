package services

import (
	"errors"
	"net/http"
	"strings"

	"github.com/pandoapps/videoSoryBoard/internal/clients/textgen"
	"github.com/pandoapps/videoSoryBoard/internal/data/repos"
	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	domain "github.com/pandoapps/videoSoryBoard/internal/domain/story"
	"github.com/pandoapps/videoSoryBoard/internal/platform/apierr"
	"github.com/pandoapps/videoSoryBoard/internal/platform/dbctx"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
)

const finalizedNote = "Script finalized! Moving to character generation phase.\n\n---\n\n"

// ScriptChat is the conversation that produces a story's full script.
type ScriptChat interface {
	// Open returns the transcript and moves a pending story into scripting.
	Open(dbc dbctx.Context, s *types.Story) ([]*types.ChatMessage, error)
	Send(dbc dbctx.Context, s *types.Story, content string) (*types.ChatMessage, error)
	Finalize(dbc dbctx.Context, s *types.Story) (*types.Story, error)
}

type scriptChat struct {
	log   *logger.Logger
	repos repos.Set
	gen   *Generators
	usage UsageTracker
	orch  PipelineOrchestrator
}

func NewScriptChat(baseLog *logger.Logger, rs repos.Set, gen *Generators, usage UsageTracker, orch PipelineOrchestrator) ScriptChat {
	return &scriptChat{
		log:   baseLog.With("service", "ScriptChat"),
		repos: rs,
		gen:   gen,
		usage: usage,
		orch:  orch,
	}
}

func (c *scriptChat) Open(dbc dbctx.Context, s *types.Story) ([]*types.ChatMessage, error) {
	if s.Status == domain.StatusPending {
		if err := c.orch.SetStatus(dbc, s, domain.StatusScripting, domain.StageScript.Ptr()); err != nil {
			return nil, err
		}
	}
	return c.repos.Chat.ListByStory(dbc, s.ID)
}

func (c *scriptChat) history(dbc dbctx.Context, s *types.Story) ([]textgen.Message, error) {
	rows, err := c.repos.Chat.ListByStory(dbc, s.ID)
	if err != nil {
		return nil, err
	}
	out := make([]textgen.Message, 0, len(rows))
	for _, m := range rows {
		out = append(out, textgen.Message{Role: string(m.Role), Content: m.Content})
	}
	return out, nil
}

// Send stores the user turn, asks the model, and stores the reply. When the model
// call fails the user turn is removed again so the transcript stays alternating.
func (c *scriptChat) Send(dbc dbctx.Context, s *types.Story, content string) (*types.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apierr.BadRequest("empty_message", "Message cannot be empty.")
	}
	creds, err := c.gen.TextCredentials(dbc, s.UserID)
	if err != nil {
		return nil, chatError(err)
	}

	userMsg := &types.ChatMessage{StoryID: s.ID, Role: domain.RoleUser, Content: content}
	if err := c.repos.Chat.Create(dbc, userMsg); err != nil {
		return nil, err
	}
	history, err := c.history(dbc, s)
	if err != nil {
		return nil, err
	}

	synopsis := ""
	if s.Synopsis != nil {
		synopsis = *s.Synopsis
	}
	reply, usage, err := c.gen.Text.Chat(dbc.Context(), creds, textgen.StoryContext{Title: s.Title, Synopsis: synopsis}, history)
	if err != nil {
		if derr := c.repos.Chat.Delete(dbc, userMsg.ID); derr != nil {
			c.log.Warn("rollback of user message failed", "story_id", s.ID, "error", derr)
		}
		c.log.Warn("chat completion failed", "story_id", s.ID, "error", err)
		return nil, chatError(err)
	}
	c.usage.RecordTextGen(dbc, &s.ID, s.UserID, string(c.gen.TextProvider()), "chat", usage.InputTokens, usage.OutputTokens, usage.Model)

	out := usage.OutputTokens
	assistant := &types.ChatMessage{StoryID: s.ID, Role: domain.RoleAssistant, Content: reply, TokenCount: &out}
	if err := c.repos.Chat.Create(dbc, assistant); err != nil {
		return nil, err
	}
	return assistant, nil
}

func (c *scriptChat) Finalize(dbc dbctx.Context, s *types.Story) (*types.Story, error) {
	creds, err := c.gen.TextCredentials(dbc, s.UserID)
	if err != nil {
		return nil, chatError(err)
	}
	history, err := c.history(dbc, s)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, apierr.Unprocessable("empty_chat", "Write at least one message before finalizing the script.")
	}
	script, usage, err := c.gen.Text.ExtractScript(dbc.Context(), creds, history)
	if err != nil {
		return nil, chatError(err)
	}
	c.usage.RecordTextGen(dbc, &s.ID, s.UserID, string(c.gen.TextProvider()), "extract_script", usage.InputTokens, usage.OutputTokens, usage.Model)

	script = strings.TrimSpace(script)
	if script == "" {
		return nil, apierr.Unprocessable("empty_script", "The model returned an empty script. Try again.")
	}
	if err := c.repos.Stories.UpdateFields(dbc, s.ID, map[string]interface{}{"full_script": script}); err != nil {
		return nil, err
	}
	s.FullScript = &script

	note := &types.ChatMessage{StoryID: s.ID, Role: domain.RoleAssistant, Content: finalizedNote + script}
	if err := c.repos.Chat.Create(dbc, note); err != nil {
		return nil, err
	}
	if err := c.orch.StartPipeline(dbc, s); err != nil {
		return nil, err
	}
	return s, nil
}

// chatError turns provider failures into a message a user can act on.
func chatError(err error) error {
	var ce *CredentialError
	if errors.As(err, &ce) {
		return apierr.New(http.StatusUnprocessableEntity, "credential_missing", err)
	}
	if errors.Is(err, textgen.ErrNotConfigured) {
		return apierr.Unprocessable("credential_missing", "Text generation API key is not configured. Add it in Settings.")
	}
	raw := err.Error()
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "authentication_error") || strings.Contains(lower, "401"):
		return apierr.Unprocessable("credential_invalid", "The text generation API key is invalid. Check it in Settings.")
	case strings.Contains(lower, "rate_limit") || strings.Contains(lower, "429"):
		return apierr.Unprocessable("rate_limited", "Rate limit reached. Wait a moment and try again.")
	case strings.Contains(lower, "overloaded") || strings.Contains(lower, "529"):
		return apierr.Unprocessable("provider_overloaded", "The text generation API is overloaded. Try again in a few minutes.")
	case strings.Contains(lower, "no such host") || strings.Contains(lower, "connection refused"):
		return apierr.Unprocessable("provider_unreachable", "Could not reach the text generation API. Check the network connection.")
	}
	if len(raw) > 150 {
		raw = raw[:150] + "..."
	}
	return apierr.Unprocessable("chat_failed", "Error talking to the model. Try again. Details: "+raw)
}
