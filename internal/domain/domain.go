package domain

import (
	"github.com/pandoapps/videoSoryBoard/internal/domain/jobs"
	"github.com/pandoapps/videoSoryBoard/internal/domain/story"
)

type Story = story.Story
type Character = story.Character
type StoryboardFrame = story.StoryboardFrame
type Video = story.Video
type ChatMessage = story.ChatMessage
type ApiUsage = story.ApiUsage
type ApiCredential = story.ApiCredential

type JobRun = jobs.JobRun
type JobRunEvent = jobs.JobRunEvent

// Models lists every persisted type in migration order.
func Models() []any {
	return []any{
		&Story{},
		&Character{},
		&StoryboardFrame{},
		&Video{},
		&ChatMessage{},
		&ApiUsage{},
		&ApiCredential{},
		&JobRun{},
		&JobRunEvent{},
	}
}

const (
	JobStatusQueued    = jobs.StatusQueued
	JobStatusRunning   = jobs.StatusRunning
	JobStatusSucceeded = jobs.StatusSucceeded
	JobStatusFailed    = jobs.StatusFailed
	JobStatusCanceled  = jobs.StatusCanceled
)

type JobEventKind = jobs.JobEventKind

const (
	JobEventCreated   = jobs.JobEventCreated
	JobEventProgress  = jobs.JobEventProgress
	JobEventYielded   = jobs.JobEventYielded
	JobEventFailed    = jobs.JobEventFailed
	JobEventSucceeded = jobs.JobEventSucceeded
)
