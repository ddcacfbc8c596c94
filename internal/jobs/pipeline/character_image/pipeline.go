package character_image

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pandoapps/videoSoryBoard/internal/clients/textgen"
	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	domain "github.com/pandoapps/videoSoryBoard/internal/domain/story"
	"github.com/pandoapps/videoSoryBoard/internal/jobs/poller"
	jobrt "github.com/pandoapps/videoSoryBoard/internal/jobs/runtime"
	"github.com/pandoapps/videoSoryBoard/internal/jobs/story/steps"
	"github.com/pandoapps/videoSoryBoard/internal/services"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	charID, ok := jc.PayloadUUID("character_id")
	if !ok {
		jc.FailTerminal("validate", fmt.Errorf("missing character_id"))
		return nil
	}
	s, ok := steps.LoadStory(jc, p.deps.Repos)
	if !ok {
		return nil
	}
	c, err := p.deps.Repos.Characters.GetByID(jc.DBContext(), charID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && c.StoryID != s.ID) {
		jc.Succeed("skipped", map[string]any{"character_id": charID.String(), "reason": "character_gone"})
		return nil
	}
	if err != nil {
		return err
	}

	var st poller.State
	resumed, err := jc.State(&st)
	if err != nil {
		jc.FailTerminal("state", err)
		return nil
	}
	if !resumed || st.ExternalID == "" {
		return p.submit(jc, s, c)
	}
	if c.Annotations().TaskID != st.ExternalID {
		jc.Succeed("skipped", map[string]any{"character_id": c.ID.String(), "reason": "superseded"})
		return nil
	}

	dec := steps.PollImage(jc, p.deps, s.UserID, st)
	switch dec.Action {
	case poller.ActionReschedule:
		return jc.Yield("poll", dec.After, dec.State, "Generating portrait")
	case poller.ActionDone:
		return p.store(jc, s, c, dec.Outcome.URL)
	}
	p.log.Warn("Character image generation failed", "character_id", c.ID, "task_id", st.ExternalID, "reason", dec.Message)
	return p.fail(jc, s, c, dec.Message)
}

func (p *Pipeline) submit(jc *jobrt.Context, s *types.Story, c *types.Character) error {
	dbc := jc.DBContext()
	desc := strings.TrimSpace(jc.PayloadString("prompt"))
	if desc == "" {
		desc = c.Description
	}
	creds, err := p.deps.Gens.ImageCredentials(dbc, s.UserID)
	if err != nil {
		return p.fail(jc, s, c, err.Error())
	}
	taskID, err := p.deps.Gens.Image.Submit(jc.Ctx, creds, textgen.CharacterPortraitPrompt(c.Name, desc), nil)
	if err != nil {
		p.log.Error("Character image submission failed", "character_id", c.ID, "error", err)
		return p.fail(jc, s, c, err.Error())
	}

	ann := c.Annotations()
	ann.TaskID = taskID
	ann.Regenerating = true
	c.SetAnnotations(ann)
	if err := p.deps.Repos.Characters.Update(dbc, c); err != nil {
		return err
	}
	return jc.Yield("poll", poller.ImageSpec.Interval, poller.State{ExternalID: taskID, TargetID: c.ID.String()}, "Generating portrait")
}

func (p *Pipeline) store(jc *jobrt.Context, s *types.Story, c *types.Character, remoteURL string) error {
	stored, err := p.deps.Media.Download(jc.Ctx, remoteURL, services.CharacterDir(s.ID), "")
	if err != nil {
		return p.fail(jc, s, c, err.Error())
	}
	c.ImagePath = &stored.Path
	c.ImageURL = &stored.URL
	ann := c.Annotations()
	ann.Regenerating = false
	ann.Error = ""
	ann.OriginalImageURL = remoteURL
	c.SetAnnotations(ann)
	if err := p.deps.Repos.Characters.Update(jc.DBContext(), c); err != nil {
		return err
	}
	p.deps.Notify.CharacterUpdated(s.UserID, c)
	jc.Succeed("done", map[string]any{"character_id": c.ID.String(), "image_url": stored.URL})
	return nil
}

// fail clears the regenerating flag so the UI stops waiting. The job ends here;
// the user decides whether to regenerate again.
func (p *Pipeline) fail(jc *jobrt.Context, s *types.Story, c *types.Character, msg string) error {
	ann := c.Annotations()
	ann.Regenerating = false
	ann.Error = msg
	c.SetAnnotations(ann)
	if err := p.deps.Repos.Characters.Update(jc.DBContext(), c); err != nil {
		return err
	}
	p.deps.Notify.CharacterUpdated(s.UserID, c)
	jc.FailTerminal("image", errors.New(msg))
	return nil
}
