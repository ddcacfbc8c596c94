package app

import (
	"context"

	"gorm.io/gorm"

	"github.com/pandoapps/videoSoryBoard/internal/config"
	apphttp "github.com/pandoapps/videoSoryBoard/internal/http"
	httpH "github.com/pandoapps/videoSoryBoard/internal/http/handlers"
	httpMW "github.com/pandoapps/videoSoryBoard/internal/http/middleware"
	"github.com/pandoapps/videoSoryBoard/internal/observability"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
	"github.com/pandoapps/videoSoryBoard/internal/realtime"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health    *httpH.HealthHandler
	Realtime  *httpH.RealtimeHandler
	Story     *httpH.StoryHandler
	Chat      *httpH.ChatHandler
	Pipeline  *httpH.PipelineHandler
	Character *httpH.CharacterHandler
	Frame     *httpH.FrameHandler
	Clip      *httpH.ClipHandler
	Settings  *httpH.SettingsHandler
	Costs     *httpH.CostsHandler
	Job       *httpH.JobHandler
}

func wireMiddleware(log *logger.Logger, cfg *config.Config) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, cfg.JWTSecretKey),
	}
}

func wireHandlers(log *logger.Logger, db *gorm.DB, svc Services, hub *realtime.SSEHub) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:    httpH.NewHealthHandler(dbPing(db)),
		Realtime:  httpH.NewRealtimeHandler(log, hub),
		Story:     httpH.NewStoryHandler(svc.Stories),
		Chat:      httpH.NewChatHandler(svc.Stories, svc.Chat),
		Pipeline:  httpH.NewPipelineHandler(svc.Stories, svc.Orchestrator),
		Character: httpH.NewCharacterHandler(svc.Stories, svc.Characters),
		Frame:     httpH.NewFrameHandler(svc.Stories, svc.Frames),
		Clip:      httpH.NewClipHandler(svc.Stories, svc.Clips),
		Settings:  httpH.NewSettingsHandler(svc.Vault),
		Costs:     httpH.NewCostsHandler(svc.Stories, svc.Usage),
		Job:       httpH.NewJobHandler(svc.Jobs),
	}
}

func wireServer(log *logger.Logger, cfg *config.Config, metrics *observability.Metrics, handlers Handlers, mw Middleware) *apphttp.Server {
	return apphttp.NewServer(apphttp.RouterConfig{
		Log:              log,
		Metrics:          metrics,
		AllowedOrigins:   cfg.AllowedOrigins(),
		ServiceName:      cfg.ServiceName,
		AuthMiddleware:   mw.Auth,
		RealtimeHandler:  handlers.Realtime,
		StoryHandler:     handlers.Story,
		ChatHandler:      handlers.Chat,
		PipelineHandler:  handlers.Pipeline,
		CharacterHandler: handlers.Character,
		FrameHandler:     handlers.Frame,
		ClipHandler:      handlers.Clip,
		SettingsHandler:  handlers.Settings,
		CostsHandler:     handlers.Costs,
		JobHandler:       handlers.Job,
		HealthHandler:    handlers.Health,
	})
}

func dbPing(db *gorm.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}
