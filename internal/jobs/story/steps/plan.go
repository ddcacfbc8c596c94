package steps

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pandoapps/videoSoryBoard/internal/clients/textgen"
	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	domain "github.com/pandoapps/videoSoryBoard/internal/domain/story"
)

// FramePlan lays out frame timestamps for every estimated scene.
func FramePlan(scenes []textgen.SceneEstimate) []textgen.SceneFrames {
	out := make([]textgen.SceneFrames, 0, len(scenes))
	for _, sc := range scenes {
		d := domain.SceneDuration(sc.DurationSeconds)
		out = append(out, textgen.SceneFrames{
			Scene:           sc.Scene,
			DurationSeconds: d,
			Summary:         sc.Summary,
			Frames:          domain.FrameTimestamps(d),
		})
	}
	return out
}

func CountFrames(plan []textgen.SceneFrames) int {
	n := 0
	for _, sc := range plan {
		n += len(sc.Frames)
	}
	return n
}

// FramesFromPanels turns panel descriptions into frame rows numbered from 1.
func FramesFromPanels(storyID uuid.UUID, panels []textgen.Panel) []*types.StoryboardFrame {
	out := make([]*types.StoryboardFrame, 0, len(panels))
	for i, p := range panels {
		scene, second := p.Scene, p.Second
		chars := p.Characters
		if chars == nil {
			chars = []string{}
		}
		f := &types.StoryboardFrame{
			StoryID:          storyID,
			SequenceNumber:   i + 1,
			SceneDescription: fmt.Sprintf("[Scene %d @ %ds] %s", scene, second, p.Description),
			Prompt:           textgen.StoryboardFramePrompt(scene, second, p.Description),
		}
		f.SetAnnotations(domain.FrameAnnotations{Scene: &scene, Second: &second, Characters: chars})
		out = append(out, f)
	}
	return out
}

// Transitions pairs each frame with its successor.
func Transitions(frames []*types.StoryboardFrame) []textgen.Transition {
	if len(frames) < 2 {
		return nil
	}
	out := make([]textgen.Transition, 0, len(frames)-1)
	for i := 0; i < len(frames)-1; i++ {
		from, to := frames[i], frames[i+1]
		out = append(out, textgen.Transition{
			FromSeq:  from.SequenceNumber,
			ToSeq:    to.SequenceNumber,
			FromDesc: frameText(from),
			ToDesc:   frameText(to),
		})
	}
	return out
}

func frameText(f *types.StoryboardFrame) string {
	if strings.TrimSpace(f.SceneDescription) != "" {
		return f.SceneDescription
	}
	return f.Prompt
}

// ClipChain builds the queued clip rows for consecutive frames. prompts may be
// short; missing entries get the fallback transition prompt.
func ClipChain(storyID uuid.UUID, frames []*types.StoryboardFrame, prompts []string) []*types.Video {
	if len(frames) < 2 {
		return nil
	}
	out := make([]*types.Video, 0, len(frames)-1)
	for i := 0; i < len(frames)-1; i++ {
		from, to := frames[i], frames[i+1]
		seq := i + 1
		prompt := ""
		if i < len(prompts) {
			prompt = strings.TrimSpace(prompts[i])
		}
		if prompt == "" {
			prompt = textgen.FallbackTransitionPrompt(from.SequenceNumber, to.SequenceNumber)
		}
		fromID, toID := from.ID, to.ID
		out = append(out, &types.Video{
			StoryID:        storyID,
			SequenceNumber: &seq,
			FrameFromID:    &fromID,
			FrameToID:      &toID,
			Prompt:         prompt,
			Status:         domain.VideoQueued,
		})
	}
	return out
}
