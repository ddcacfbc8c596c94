package generate_characters

import (
	"strings"

	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	domain "github.com/pandoapps/videoSoryBoard/internal/domain/story"
	jobrt "github.com/pandoapps/videoSoryBoard/internal/jobs/runtime"
	"github.com/pandoapps/videoSoryBoard/internal/jobs/story/steps"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	s, ok := steps.StageStory(jc, p.deps.Repos, domain.StageCharacters)
	if !ok {
		return nil
	}
	dbc := jc.DBContext()
	log := p.log.With("story_id", s.ID)

	jc.Progress("reset", 5, "Clearing previous characters")
	if err := p.deps.Repos.Characters.DeleteByStory(dbc, s.ID); err != nil {
		return steps.FailStage(jc, p.deps, s, domain.StageCharacters, err)
	}

	if !s.HasScript() {
		log.Warn("No script for character extraction")
		return p.complete(jc, s, 0)
	}

	creds, err := p.deps.Gens.TextCredentials(dbc, s.UserID)
	if err != nil {
		return steps.FailStage(jc, p.deps, s, domain.StageCharacters, err)
	}

	jc.Progress("extract", 20, "Extracting characters from the script")
	specs, usage, err := p.deps.Gens.Text.ExtractCharacters(jc.Ctx, creds, s.Script())
	if err != nil {
		log.Error("Character extraction failed", "error", err)
		return steps.FailStage(jc, p.deps, s, domain.StageCharacters, err)
	}
	p.deps.Usage.RecordTextGen(dbc, &s.ID, s.UserID, string(p.deps.Gens.TextProvider()), "extract_characters", usage.InputTokens, usage.OutputTokens, usage.Model)

	if len(specs) == 0 {
		log.Warn("No characters found in script")
		return p.complete(jc, s, 0)
	}

	chars := make([]*types.Character, 0, len(specs))
	for _, c := range specs {
		chars = append(chars, &types.Character{
			StoryID:     s.ID,
			Name:        strings.TrimSpace(c.Name),
			Description: strings.TrimSpace(c.Description),
		})
	}
	jc.Progress("persist", 80, "Saving characters")
	if _, err := p.deps.Repos.Characters.Create(dbc, chars); err != nil {
		return steps.FailStage(jc, p.deps, s, domain.StageCharacters, err)
	}
	return p.complete(jc, s, len(chars))
}

func (p *Pipeline) complete(jc *jobrt.Context, s *types.Story, n int) error {
	if err := p.deps.Orch.CompleteStage(jc.DBContext(), s, domain.StageCharacters); err != nil {
		return err
	}
	jc.Succeed("done", map[string]any{
		"story_id":   s.ID.String(),
		"characters": n,
	})
	return nil
}
