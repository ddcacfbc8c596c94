package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/pandoapps/videoSoryBoard/internal/config"
	"github.com/pandoapps/videoSoryBoard/internal/data/repos"
	domain "github.com/pandoapps/videoSoryBoard/internal/domain/story"
	jobrt "github.com/pandoapps/videoSoryBoard/internal/jobs/runtime"
	"github.com/pandoapps/videoSoryBoard/internal/jobs/story"
	"github.com/pandoapps/videoSoryBoard/internal/jobs/story/steps"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
	"github.com/pandoapps/videoSoryBoard/internal/platform/secretbox"
	"github.com/pandoapps/videoSoryBoard/internal/services"
	"github.com/pandoapps/videoSoryBoard/internal/temporalx"
)

type Services struct {
	Emitter        services.SSEEmitter
	JobNotifier    services.JobNotifier
	PipelineNotify services.PipelineNotifier

	Jobs       services.JobService
	Vault      services.CredentialVault
	Media      services.MediaStore
	Usage      services.UsageTracker
	Generators *services.Generators

	Orchestrator services.PipelineOrchestrator
	Editor       services.StoryEditor
	Stories      services.StoryService
	Characters   services.CharacterService
	Frames       services.FrameService
	Clips        services.ClipService
	Chat         services.ScriptChat
	Concat       services.VideoConcatenator

	JobRegistry *jobrt.Registry
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg *config.Config, tcfg temporalx.Config, rs repos.Set, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	// Events leave through the bus; API processes forward them to their SSE clients.
	emitter := &services.BusEmitter{Bus: clients.Bus, Log: log.With("component", "EventBus")}
	jobNotify := services.NewJobNotifier(emitter)
	pipelineNotify := services.NewPipelineNotifier(emitter)

	box, err := secretbox.New(cfg.VaultEncryptionKey)
	if err != nil {
		return Services{}, fmt.Errorf("init vault key: %w", err)
	}
	vault := services.NewCredentialVault(log, rs.Credentials, box, clients.Cache)

	jobs := services.NewJobService(db, log, rs.Jobs, rs.JobEvents, jobNotify, clients.Temporal, tcfg.TaskQueue)
	media := services.NewMediaStore(log, clients.Bucket, nil)
	usage := services.NewUsageTracker(log, rs.Usage)
	gens := &services.Generators{
		Text:  clients.Text,
		Image: clients.Image,
		Video: clients.Video,
		Vault: vault,
	}

	videoProvider := domain.Provider(clients.Video.Provider())
	orch := services.NewPipelineOrchestrator(db, log, rs, jobs, vault, media, pipelineNotify, videoProvider)
	editor := services.NewStoryEditor(db, log, rs, media)
	stories := services.NewStoryService(db, log, rs, jobs, orch, vault, videoProvider)
	characters := services.NewCharacterService(log, rs, jobs, media, pipelineNotify)
	frames := services.NewFrameService(log, rs, jobs, media, editor, pipelineNotify)
	clips := services.NewClipService(log, rs, jobs, media, pipelineNotify)
	chat := services.NewScriptChat(log, rs, gens, usage, orch)
	concat := services.NewVideoConcatenator(log, clients.Media, media)

	registry := jobrt.NewRegistry()
	if err := story.Register(registry, db, log, steps.Deps{
		DB:     db,
		Log:    log,
		Repos:  rs,
		Orch:   orch,
		Gens:   gens,
		Usage:  usage,
		Media:  media,
		Clips:  clips,
		Concat: concat,
		Notify: pipelineNotify,
	}); err != nil {
		return Services{}, fmt.Errorf("register job handlers: %w", err)
	}

	return Services{
		Emitter:        emitter,
		JobNotifier:    jobNotify,
		PipelineNotify: pipelineNotify,
		Jobs:           jobs,
		Vault:          vault,
		Media:          media,
		Usage:          usage,
		Generators:     gens,
		Orchestrator:   orch,
		Editor:         editor,
		Stories:        stories,
		Characters:     characters,
		Frames:         frames,
		Clips:          clips,
		Chat:           chat,
		Concat:         concat,
		JobRegistry:    registry,
	}, nil
}
