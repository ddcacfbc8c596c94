package textgen

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	fenceOpen  = regexp.MustCompile("^```(?:json)?\\s*")
	fenceClose = regexp.MustCompile("\\s*```$")
)

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = fenceOpen.ReplaceAllString(s, "")
	s = fenceClose.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func decodeJSON(text string, out any) error {
	if err := json.Unmarshal([]byte(stripFences(text)), out); err != nil {
		return fmt.Errorf("decode model output: %w", err)
	}
	return nil
}

func parseCharacters(text string) ([]CharacterSpec, error) {
	var raw []CharacterSpec
	if err := decodeJSON(text, &raw); err != nil {
		return nil, err
	}
	out := make([]CharacterSpec, 0, len(raw))
	for _, c := range raw {
		c.Name = strings.TrimSpace(c.Name)
		c.Description = strings.TrimSpace(c.Description)
		if c.Name == "" || c.Description == "" {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func parseScenes(text string) ([]SceneEstimate, error) {
	var raw []SceneEstimate
	if err := decodeJSON(text, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, errors.New("failed to estimate scene durations")
	}
	return raw, nil
}

type sceneFramesJSON struct {
	Scene  int `json:"scene"`
	Frames []struct {
		Second      int      `json:"second"`
		Description string   `json:"description"`
		Characters  []string `json:"characters"`
	} `json:"frames"`
}

func parsePanels(text string) ([]Panel, error) {
	var raw []sceneFramesJSON
	if err := decodeJSON(text, &raw); err != nil {
		return nil, err
	}
	var out []Panel
	n := 0
	for _, scene := range raw {
		for _, f := range scene.Frames {
			n++
			chars := f.Characters
			if chars == nil {
				chars = []string{}
			}
			out = append(out, Panel{
				PanelNumber: n,
				Scene:       scene.Scene,
				Second:      f.Second,
				Description: strings.TrimSpace(f.Description),
				Characters:  chars,
			})
		}
	}
	if len(out) == 0 {
		return nil, errors.New("failed to generate frame descriptions")
	}
	return out, nil
}

// FallbackTransitionPrompt is used for any transition the model did not describe.
func FallbackTransitionPrompt(fromSeq, toSeq int) string {
	return fmt.Sprintf("Smooth cinematic transition from frame %d to frame %d", fromSeq, toSeq)
}

// parseTransitions returns exactly one prompt per transition, padding with fallbacks.
func parseTransitions(text string, transitions []Transition) ([]string, error) {
	var raw []string
	if err := decodeJSON(text, &raw); err != nil {
		return nil, err
	}
	out := make([]string, len(transitions))
	for i, t := range transitions {
		if i < len(raw) && strings.TrimSpace(raw[i]) != "" {
			out[i] = strings.TrimSpace(raw[i])
			continue
		}
		out[i] = FallbackTransitionPrompt(t.FromSeq, t.ToSeq)
	}
	return out, nil
}
