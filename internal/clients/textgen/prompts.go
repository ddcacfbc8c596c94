package textgen

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var promptsYAML []byte

var (
	promptsOnce sync.Once
	promptSet   map[string]*template.Template
	promptsErr  error
)

var promptFuncs = template.FuncMap{
	"join": strings.Join,
	"inc":  func(i int) int { return i + 1 },
	"seconds": func(ts []int) string {
		parts := make([]string, 0, len(ts))
		for _, t := range ts {
			parts = append(parts, fmt.Sprintf("%ds", t))
		}
		return strings.Join(parts, ", ")
	},
}

func loadPrompts() (map[string]*template.Template, error) {
	promptsOnce.Do(func() {
		raw := map[string]string{}
		if err := yaml.Unmarshal(promptsYAML, &raw); err != nil {
			promptsErr = fmt.Errorf("parse prompts.yaml: %w", err)
			return
		}
		promptSet = make(map[string]*template.Template, len(raw))
		for name, body := range raw {
			t, err := template.New(name).Funcs(promptFuncs).Option("missingkey=error").Parse(body)
			if err != nil {
				promptsErr = fmt.Errorf("parse prompt %s: %w", name, err)
				return
			}
			promptSet[name] = t
		}
	})
	return promptSet, promptsErr
}

// Render executes the named prompt template.
func Render(name string, data any) (string, error) {
	set, err := loadPrompts()
	if err != nil {
		return "", err
	}
	t, ok := set[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt %q", name)
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return strings.TrimSpace(b.String()), nil
}

func mustRender(name string, data any) string {
	s, err := Render(name, data)
	if err != nil {
		panic(err)
	}
	return s
}

// CharacterPortraitPrompt is the image prompt for a character design.
func CharacterPortraitPrompt(name, prompt string) string {
	return mustRender("character_portrait", map[string]string{"Name": name, "Prompt": strings.TrimSpace(prompt)})
}

// StoryboardFramePrompt is the image prompt stored on a generated frame.
func StoryboardFramePrompt(scene, second int, description string) string {
	return mustRender("storyboard_frame", map[string]any{"Scene": scene, "Second": second, "Description": description})
}
