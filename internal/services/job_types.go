package services

// Job types dispatched by the pipeline. Handlers in internal/jobs/story register under these names.
const (
	JobGenerateCharacters = "generate_characters"
	JobGenerateStoryboard = "generate_storyboard"
	JobProduceVideo       = "produce_video"
	JobClipGenerate       = "clip_generate"
	JobConcatenateVideos  = "concatenate_videos"
	JobFinalVideoPoll     = "final_video_poll"
	JobCharacterImage     = "character_image"
	JobFrameImage         = "frame_image"
)

// Entity types recorded on job runs.
const (
	EntityStory     = "story"
	EntityCharacter = "character"
	EntityFrame     = "frame"
	EntityVideo     = "video"
)

// StageJobTypes lists the story-level job types of each stage, canceled when a revert
// removes that stage's output. Per-item jobs run against item entities and exit on
// their own once the item is gone.
var StageJobTypes = map[string][]string{
	"characters": {JobGenerateCharacters},
	"storyboard": {JobGenerateStoryboard},
	"video":      {JobProduceVideo, JobConcatenateVideos, JobFinalVideoPoll},
}
