package story

// MinSceneSeconds clamps scene durations from the text model.
const MinSceneSeconds = 2

// FrameInterval is the maximum gap between two frames of one scene.
const FrameInterval = 5

// FrameTimestamps returns the seconds within a scene that get a storyboard frame:
// 0, every FrameInterval seconds below the duration, and the final second.
func FrameTimestamps(duration int) []int {
	if duration < MinSceneSeconds {
		duration = MinSceneSeconds
	}
	out := make([]int, 0, duration/FrameInterval+2)
	for s := 0; s < duration; s += FrameInterval {
		out = append(out, s)
	}
	if out[len(out)-1] != duration {
		out = append(out, duration)
	}
	return out
}

// SceneDuration applies the default (5s) and the minimum clamp.
func SceneDuration(raw int) int {
	if raw <= 0 {
		raw = FrameInterval
	}
	if raw < MinSceneSeconds {
		return MinSceneSeconds
	}
	return raw
}
