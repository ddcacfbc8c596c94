package services

import (
	"context"

	"github.com/google/uuid"

	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	"github.com/pandoapps/videoSoryBoard/internal/domain/story"
	"github.com/pandoapps/videoSoryBoard/internal/realtime"
)

// emitter addresses every event to the owning user's channel.
type emitter struct {
	emit SSEEmitter
}

func (e emitter) send(userID uuid.UUID, ev realtime.SSEEvent, data map[string]any) {
	if e.emit == nil || userID == uuid.Nil {
		return
	}
	e.emit.Emit(context.Background(), realtime.SSEMessage{Channel: userID.String(), Event: ev, Data: data})
}

type JobNotifier interface {
	JobCreated(userID uuid.UUID, job *types.JobRun)
	JobProgress(userID uuid.UUID, job *types.JobRun, stage string, progress int, message string)
	JobFailed(userID uuid.UUID, job *types.JobRun, stage string, errorMessage string)
	JobDone(userID uuid.UUID, job *types.JobRun)
}

type jobNotifier struct{ emitter }

func NewJobNotifier(emit SSEEmitter) JobNotifier {
	return &jobNotifier{emitter{emit}}
}

// jobFields identifies the job and the entity it works on, so clients can route
// job events to the story view that owns them.
func jobFields(job *types.JobRun, extra map[string]any) map[string]any {
	out := map[string]any{}
	if job != nil {
		out["job_id"] = job.ID
		out["job_type"] = job.JobType
		out["entity_type"] = job.EntityType
		if job.EntityID != nil {
			out["entity_id"] = *job.EntityID
		}
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func (n *jobNotifier) JobCreated(userID uuid.UUID, job *types.JobRun) {
	n.send(userID, realtime.SSEEventJobCreated, jobFields(job, map[string]any{"job": job}))
}

func (n *jobNotifier) JobProgress(userID uuid.UUID, job *types.JobRun, stage string, progress int, message string) {
	n.send(userID, realtime.SSEEventJobProgress, jobFields(job, map[string]any{
		"stage":    stage,
		"progress": progress,
		"message":  message,
	}))
}

func (n *jobNotifier) JobFailed(userID uuid.UUID, job *types.JobRun, stage string, errorMessage string) {
	n.send(userID, realtime.SSEEventJobFailed, jobFields(job, map[string]any{
		"stage": stage,
		"error": errorMessage,
	}))
}

func (n *jobNotifier) JobDone(userID uuid.UUID, job *types.JobRun) {
	n.send(userID, realtime.SSEEventJobDone, jobFields(job, map[string]any{"job": job}))
}

type PipelineNotifier interface {
	StoryStatusChanged(s *types.Story)
	StageCompleted(s *types.Story, stage story.PipelineStage)
	CharacterUpdated(userID uuid.UUID, c *types.Character)
	FrameUpdated(userID uuid.UUID, f *types.StoryboardFrame)
	ClipUpdated(userID uuid.UUID, v *types.Video)
	FinalVideoReady(userID uuid.UUID, v *types.Video)
}

type pipelineNotifier struct{ emitter }

func NewPipelineNotifier(emit SSEEmitter) PipelineNotifier {
	return &pipelineNotifier{emitter{emit}}
}

func (n *pipelineNotifier) StoryStatusChanged(s *types.Story) {
	if s == nil {
		return
	}
	n.send(s.UserID, realtime.SSEEventStoryStatusChanged, map[string]any{
		"story_id":      s.ID,
		"status":        s.Status,
		"status_label":  s.Status.Label(),
		"current_stage": s.CurrentStage,
		"error_message": s.ErrorMessage,
	})
}

func (n *pipelineNotifier) StageCompleted(s *types.Story, stage story.PipelineStage) {
	if s == nil {
		return
	}
	n.send(s.UserID, realtime.SSEEventStageCompleted, map[string]any{"story_id": s.ID, "stage": stage})
}

func (n *pipelineNotifier) CharacterUpdated(userID uuid.UUID, c *types.Character) {
	if c == nil {
		return
	}
	n.send(userID, realtime.SSEEventCharacterUpdated, map[string]any{"story_id": c.StoryID, "character": c})
}

func (n *pipelineNotifier) FrameUpdated(userID uuid.UUID, f *types.StoryboardFrame) {
	if f == nil {
		return
	}
	n.send(userID, realtime.SSEEventFrameUpdated, map[string]any{"story_id": f.StoryID, "frame": f})
}

func (n *pipelineNotifier) ClipUpdated(userID uuid.UUID, v *types.Video) {
	if v == nil {
		return
	}
	n.send(userID, realtime.SSEEventClipUpdated, map[string]any{"story_id": v.StoryID, "video": v})
}

func (n *pipelineNotifier) FinalVideoReady(userID uuid.UUID, v *types.Video) {
	if v == nil {
		return
	}
	n.send(userID, realtime.SSEEventFinalVideoReady, map[string]any{"story_id": v.StoryID, "video": v})
}
