package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/pandoapps/videoSoryBoard/internal/http/handlers"
	httpMW "github.com/pandoapps/videoSoryBoard/internal/http/middleware"
	"github.com/pandoapps/videoSoryBoard/internal/observability"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	AllowedOrigins []string
	ServiceName    string

	AuthMiddleware  *httpMW.AuthMiddleware
	RealtimeHandler *httpH.RealtimeHandler

	StoryHandler     *httpH.StoryHandler
	ChatHandler      *httpH.ChatHandler
	PipelineHandler  *httpH.PipelineHandler
	CharacterHandler *httpH.CharacterHandler
	FrameHandler     *httpH.FrameHandler
	ClipHandler      *httpH.ClipHandler
	SettingsHandler  *httpH.SettingsHandler
	CostsHandler     *httpH.CostsHandler
	JobHandler       *httpH.JobHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.TraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(httpMW.CORS(cfg.AllowedOrigins))
	}

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	protected := r.Group("/api")
	{
		// Middleware
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			protected.GET("/sse/stream", cfg.RealtimeHandler.SSEStream)
		}

		// Stories
		if cfg.StoryHandler != nil {
			protected.GET("/dashboard", cfg.StoryHandler.Dashboard)
			protected.GET("/stories", cfg.StoryHandler.ListStories)
			protected.POST("/stories", cfg.StoryHandler.CreateStory)
			protected.GET("/stories/:id", cfg.StoryHandler.GetStory)
			protected.PATCH("/stories/:id", cfg.StoryHandler.UpdateStory)
			protected.DELETE("/stories/:id", cfg.StoryHandler.DeleteStory)
		}

		// Script chat
		if cfg.ChatHandler != nil {
			protected.GET("/stories/:id/chat", cfg.ChatHandler.ListMessages)
			protected.POST("/stories/:id/chat", cfg.ChatHandler.SendMessage)
			protected.POST("/stories/:id/chat/finalize", cfg.ChatHandler.Finalize)
		}

		// Pipeline
		if cfg.PipelineHandler != nil {
			protected.GET("/stories/:id/pipeline", cfg.PipelineHandler.Status)
			protected.POST("/stories/:id/pipeline/start", cfg.PipelineHandler.Start)
			protected.POST("/stories/:id/pipeline/approve-characters", cfg.PipelineHandler.ApproveCharacters)
			protected.POST("/stories/:id/pipeline/approve-storyboard", cfg.PipelineHandler.ApproveStoryboard)
			protected.POST("/stories/:id/pipeline/revert/:stage", cfg.PipelineHandler.Revert)
			protected.POST("/stories/:id/pipeline/retry", cfg.PipelineHandler.Retry)
		}

		// Characters
		if cfg.CharacterHandler != nil {
			protected.POST("/stories/:id/characters", cfg.CharacterHandler.CreateCharacter)
			protected.PATCH("/stories/:id/characters/:characterId", cfg.CharacterHandler.UpdateCharacter)
			protected.DELETE("/stories/:id/characters/:characterId", cfg.CharacterHandler.DeleteCharacter)
			protected.POST("/stories/:id/characters/:characterId/regenerate", cfg.CharacterHandler.RegenerateCharacter)
			protected.POST("/stories/:id/characters/:characterId/image", cfg.CharacterHandler.UploadCharacterImage)
		}

		// Storyboard frames
		if cfg.FrameHandler != nil {
			protected.POST("/stories/:id/frames/:frameId/regenerate", cfg.FrameHandler.RegenerateFrame)
			protected.POST("/stories/:id/frames/:frameId/image", cfg.FrameHandler.UploadFrameImage)
			protected.DELETE("/stories/:id/frames/:frameId", cfg.FrameHandler.DeleteFrame)
		}

		// Clips
		if cfg.ClipHandler != nil {
			protected.POST("/stories/:id/clips/generate-all", cfg.ClipHandler.GenerateAll)
			protected.POST("/stories/:id/clips/:clipId/generate", cfg.ClipHandler.SubmitClip)
			protected.POST("/stories/:id/clips/:clipId/regenerate", cfg.ClipHandler.RegenerateClip)
			protected.POST("/stories/:id/clips/:clipId/video", cfg.ClipHandler.UploadClip)
			protected.POST("/stories/:id/concatenate", cfg.ClipHandler.Concatenate)
		}

		// Settings
		if cfg.SettingsHandler != nil {
			protected.GET("/settings/api-keys", cfg.SettingsHandler.GetAPIKeys)
			protected.PUT("/settings/api-keys", cfg.SettingsHandler.UpdateAPIKeys)
			protected.DELETE("/settings/api-keys/:provider", cfg.SettingsHandler.DeleteAPIKey)
		}

		// Costs
		if cfg.CostsHandler != nil {
			protected.GET("/costs", cfg.CostsHandler.Costs)
			protected.GET("/stories/:id/usage", cfg.CostsHandler.StoryUsage)
		}

		// Jobs
		if cfg.JobHandler != nil {
			protected.GET("/jobs", cfg.JobHandler.ListJobs)
			protected.GET("/jobs/:id", cfg.JobHandler.GetJob)
			protected.GET("/jobs/:id/events", cfg.JobHandler.ListJobEvents)
			protected.POST("/jobs/:id/cancel", cfg.JobHandler.CancelJob)
			protected.POST("/jobs/:id/restart", cfg.JobHandler.RestartJob)
		}
	}

	return r
}
