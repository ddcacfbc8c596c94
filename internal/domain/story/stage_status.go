package story

// StageState is the derived display state of one stage.
type StageState string

const (
	StagePending    StageState = "pending"
	StageInProgress StageState = "in_progress"
	StageReview     StageState = "review"
	StageCompleted  StageState = "completed"
	StageFailed     StageState = "failed"
)

// Facts are the persisted predicates the derivation reads.
type Facts struct {
	HasScript         bool
	HasCharacters     bool
	HasFrames         bool
	HasCompletedFinal bool
	Status            StoryStatus
	CurrentStage      *PipelineStage
}

func (f Facts) exists(stage PipelineStage) bool {
	switch stage {
	case StageScript:
		return f.HasScript
	case StageCharacters:
		return f.HasCharacters
	case StageStoryboard:
		return f.HasFrames
	case StageVideo:
		return f.HasCompletedFinal
	}
	return false
}

// DeriveStageStatuses computes every stage's state from facts alone.
// Precedence: failed > review > completed > in_progress > pending.
func DeriveStageStatuses(f Facts) map[PipelineStage]StageState {
	out := make(map[PipelineStage]StageState, len(Stages))
	for _, stage := range Stages {
		out[stage] = deriveStage(f, stage)
	}
	return out
}

func deriveStage(f Facts, stage PipelineStage) StageState {
	if f.Status == StatusFailed && f.CurrentStage != nil && *f.CurrentStage == stage {
		return StageFailed
	}
	if review, ok := stage.ReviewStatus(); ok && f.Status == review {
		return StageReview
	}
	if f.exists(stage) {
		return StageCompleted
	}
	if f.Status == stage.StoryStatus() {
		return StageInProgress
	}
	return StagePending
}

// AnyInProgress reports whether some stage is currently running.
func AnyInProgress(states map[PipelineStage]StageState) bool {
	for _, s := range states {
		if s == StageInProgress {
			return true
		}
	}
	return false
}
