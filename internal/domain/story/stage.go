package story

// PipelineStage is one of the four linear pipeline phases.
type PipelineStage string

const (
	StageScript     PipelineStage = "script"
	StageCharacters PipelineStage = "characters"
	StageStoryboard PipelineStage = "storyboard"
	StageVideo      PipelineStage = "video"
)

// Stages lists every stage in pipeline order.
var Stages = []PipelineStage{StageScript, StageCharacters, StageStoryboard, StageVideo}

func ParseStage(s string) (PipelineStage, bool) {
	for _, st := range Stages {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Next returns the following stage; ok is false after Video.
func (s PipelineStage) Next() (PipelineStage, bool) {
	switch s {
	case StageScript:
		return StageCharacters, true
	case StageCharacters:
		return StageStoryboard, true
	case StageStoryboard:
		return StageVideo, true
	}
	return "", false
}

// StoryStatus is the status a story carries while this stage is actively running.
func (s PipelineStage) StoryStatus() StoryStatus {
	switch s {
	case StageScript:
		return StatusScripting
	case StageCharacters:
		return StatusCharacters
	case StageStoryboard:
		return StatusStoryboard
	case StageVideo:
		return StatusProducing
	}
	return StatusPending
}

// ReviewStatus is the checkpoint status that follows the stage, if any.
func (s PipelineStage) ReviewStatus() (StoryStatus, bool) {
	switch s {
	case StageCharacters:
		return StatusCharacterReview, true
	case StageStoryboard:
		return StatusStoryboardReview, true
	}
	return "", false
}

func (s PipelineStage) Ptr() *PipelineStage { return &s }

type StoryStatus string

const (
	StatusPending          StoryStatus = "pending"
	StatusScripting        StoryStatus = "scripting"
	StatusCharacters       StoryStatus = "characters"
	StatusCharacterReview  StoryStatus = "character_review"
	StatusStoryboard       StoryStatus = "storyboard"
	StatusStoryboardReview StoryStatus = "storyboard_review"
	StatusProducing        StoryStatus = "producing"
	StatusCompleted        StoryStatus = "completed"
	StatusFailed           StoryStatus = "failed"
)

func (s StoryStatus) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusScripting:
		return "Writing Script"
	case StatusCharacters:
		return "Generating Characters"
	case StatusCharacterReview:
		return "Reviewing Characters"
	case StatusStoryboard:
		return "Creating Storyboard"
	case StatusStoryboardReview:
		return "Reviewing Storyboard"
	case StatusProducing:
		return "Producing Video"
	case StatusCompleted:
		return "Completed"
	case StatusFailed:
		return "Failed"
	}
	return string(s)
}
