package realtime

type SSEEvent string

const (
	SSEEventJobCreated  SSEEvent = "JobCreated"
	SSEEventJobProgress SSEEvent = "JobProgress"
	SSEEventJobFailed   SSEEvent = "JobFailed"
	SSEEventJobDone     SSEEvent = "JobDone"

	SSEEventStoryStatusChanged SSEEvent = "StoryStatusChanged"
	SSEEventStageCompleted     SSEEvent = "StageCompleted"
	SSEEventCharacterUpdated   SSEEvent = "CharacterUpdated"
	SSEEventFrameUpdated       SSEEvent = "FrameUpdated"
	SSEEventClipUpdated        SSEEvent = "ClipUpdated"
	SSEEventFinalVideoReady    SSEEvent = "FinalVideoReady"
)

// SSEMessage is routed to every client subscribed to Channel (a user id).
type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}
