package repos

import (
	"gorm.io/gorm"

	"github.com/pandoapps/videoSoryBoard/internal/data/repos/jobs"
	"github.com/pandoapps/videoSoryBoard/internal/data/repos/story"
	"github.com/pandoapps/videoSoryBoard/internal/data/repos/usage"
	"github.com/pandoapps/videoSoryBoard/internal/data/repos/vault"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
)

type StoryRepo = story.StoryRepo
type CharacterRepo = story.CharacterRepo
type FrameRepo = story.FrameRepo
type VideoRepo = story.VideoRepo
type ChatMessageRepo = story.ChatMessageRepo

type ApiUsageRepo = usage.ApiUsageRepo
type StoryServiceTotal = usage.StoryServiceTotal

type ApiCredentialRepo = vault.ApiCredentialRepo

type JobRunRepo = jobs.JobRunRepo
type JobRunEventRepo = jobs.JobRunEventRepo

func NewStoryRepo(db *gorm.DB, baseLog *logger.Logger) StoryRepo {
	return story.NewStoryRepo(db, baseLog)
}
func NewCharacterRepo(db *gorm.DB, baseLog *logger.Logger) CharacterRepo {
	return story.NewCharacterRepo(db, baseLog)
}
func NewFrameRepo(db *gorm.DB, baseLog *logger.Logger) FrameRepo {
	return story.NewFrameRepo(db, baseLog)
}
func NewVideoRepo(db *gorm.DB, baseLog *logger.Logger) VideoRepo {
	return story.NewVideoRepo(db, baseLog)
}
func NewChatMessageRepo(db *gorm.DB, baseLog *logger.Logger) ChatMessageRepo {
	return story.NewChatMessageRepo(db, baseLog)
}

func NewApiUsageRepo(db *gorm.DB, baseLog *logger.Logger) ApiUsageRepo {
	return usage.NewApiUsageRepo(db, baseLog)
}

func NewApiCredentialRepo(db *gorm.DB, baseLog *logger.Logger) ApiCredentialRepo {
	return vault.NewApiCredentialRepo(db, baseLog)
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return jobs.NewJobRunRepo(db, baseLog)
}
func NewJobRunEventRepo(db *gorm.DB, baseLog *logger.Logger) JobRunEventRepo {
	return jobs.NewJobRunEventRepo(db, baseLog)
}

// Set bundles every repository the services need.
type Set struct {
	Stories     StoryRepo
	Characters  CharacterRepo
	Frames      FrameRepo
	Videos      VideoRepo
	Chat        ChatMessageRepo
	Usage       ApiUsageRepo
	Credentials ApiCredentialRepo
	Jobs        JobRunRepo
	JobEvents   JobRunEventRepo
}

func NewSet(db *gorm.DB, baseLog *logger.Logger) Set {
	return Set{
		Stories:     NewStoryRepo(db, baseLog),
		Characters:  NewCharacterRepo(db, baseLog),
		Frames:      NewFrameRepo(db, baseLog),
		Videos:      NewVideoRepo(db, baseLog),
		Chat:        NewChatMessageRepo(db, baseLog),
		Usage:       NewApiUsageRepo(db, baseLog),
		Credentials: NewApiCredentialRepo(db, baseLog),
		Jobs:        NewJobRunRepo(db, baseLog),
		JobEvents:   NewJobRunEventRepo(db, baseLog),
	}
}
