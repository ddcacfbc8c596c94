package app

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/pandoapps/videoSoryBoard/internal/config"
	"github.com/pandoapps/videoSoryBoard/internal/data/db"
	"github.com/pandoapps/videoSoryBoard/internal/data/repos"
	apphttp "github.com/pandoapps/videoSoryBoard/internal/http"
	"github.com/pandoapps/videoSoryBoard/internal/jobs/sweeper"
	"github.com/pandoapps/videoSoryBoard/internal/jobs/worker"
	"github.com/pandoapps/videoSoryBoard/internal/observability"
	"github.com/pandoapps/videoSoryBoard/internal/platform/dbctx"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
	"github.com/pandoapps/videoSoryBoard/internal/realtime"
	"github.com/pandoapps/videoSoryBoard/internal/temporalx"
	"github.com/pandoapps/videoSoryBoard/internal/temporalx/temporalworker"
)

// Regeneration polls that outlive this are cleared by the sweeper.
const regenerationExpiry = 30 * time.Minute

type App struct {
	Log      *logger.Logger
	Cfg      *config.Config
	Temporal temporalx.Config
	DB       *gorm.DB
	Repos    repos.Set
	Clients  Clients
	Services Services
	Metrics  *observability.Metrics
	SSEHub   *realtime.SSEHub
	Server   *apphttp.Server

	pg           *db.PostgresService
	sweeper      *sweeper.Sweeper
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New(ctx context.Context) (*App, error) {
	cfg, tcfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	})
	metrics := observability.Init(log)

	log.Info("Connecting to postgres", "dsn", cfg.MaskedPostgresDSN())
	pg, err := db.NewPostgresService(log, cfg.PostgresDSN())
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	reposet := wireRepos(theDB, log)

	clients, err := wireClients(ctx, log, cfg, tcfg)
	if err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, err
	}

	serviceset, err := wireServices(theDB, log, cfg, tcfg, reposet, clients)
	if err != nil {
		clients.Close()
		_ = pg.Close()
		log.Sync()
		return nil, err
	}

	a := &App{
		Log:          log,
		Cfg:          cfg,
		Temporal:     tcfg,
		DB:           theDB,
		Repos:        reposet,
		Clients:      clients,
		Services:     serviceset,
		Metrics:      metrics,
		pg:           pg,
		otelShutdown: otelShutdown,
	}

	if cfg.RunServer {
		a.SSEHub = realtime.NewSSEHub(log)
		handlerset := wireHandlers(log, theDB, serviceset, a.SSEHub)
		middleware := wireMiddleware(log, cfg)
		a.Server = wireServer(log, cfg, metrics, handlerset, middleware)
	}
	return a, nil
}

// Start launches the background side of the process: the event forwarder for
// API processes, the job worker, and the maintenance sweeper.
func (a *App) Start(ctx context.Context) error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if a.SSEHub != nil {
		if err := a.Clients.Bus.StartForwarder(ctx, a.SSEHub.Broadcast); err != nil {
			return fmt.Errorf("start event forwarder: %w", err)
		}
	}

	if a.Cfg.RunWorker {
		if err := a.startWorker(ctx); err != nil {
			return err
		}
		if a.Server == nil {
			a.Metrics.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
		}
	}

	a.sweeper = sweeper.New(a.Log, a.Cfg.StaleJobSweepCron)
	a.sweeper.Add(sweeper.RequeueStaleJobs(a.Repos.Jobs, a.Cfg.StaleJobAfter))
	a.sweeper.Add(sweeper.Task{
		Name: "expire_stuck_regenerations",
		Run: func(ctx context.Context) (int64, error) {
			n, err := a.Services.Editor.ExpireStuckRegenerations(dbctx.Context{Ctx: ctx, Tx: a.DB}, regenerationExpiry)
			return int64(n), err
		},
	})
	a.sweeper.Add(sweeper.Task{
		Name: "resume_final_video_polls",
		Run: func(ctx context.Context) (int64, error) {
			n, err := a.Services.Orchestrator.ResumeFinalVideoPolls(dbctx.Context{Ctx: ctx, Tx: a.DB})
			return int64(n), err
		},
	})
	return a.sweeper.Start()
}

func (a *App) startWorker(ctx context.Context) error {
	opts := worker.Options{
		Concurrency: a.Cfg.WorkerConcurrency,
		MaxAttempts: a.Cfg.JobMaxAttempts,
	}
	if a.Clients.Temporal != nil {
		runner, err := temporalworker.NewRunner(a.Log, a.Temporal, a.Clients.Temporal, a.DB, a.Repos,
			a.Services.JobRegistry, a.Services.JobNotifier, a.Metrics,
			temporalworker.Options{Concurrency: opts.Concurrency, MaxAttempts: opts.MaxAttempts})
		if err != nil {
			return fmt.Errorf("init temporal worker: %w", err)
		}
		return runner.Start(ctx)
	}
	w := worker.NewWorker(a.DB, a.Log, a.Repos.Jobs, a.Repos.JobEvents, a.Services.JobRegistry, a.Services.JobNotifier, a.Metrics, opts)
	w.Start(ctx)
	return nil
}

// Run serves HTTP until ctx is done. Worker-only processes just wait.
func (a *App) Run(ctx context.Context) error {
	if a == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Server == nil {
		a.Log.Info("RUN_SERVER disabled; running background work only")
		<-ctx.Done()
		return nil
	}
	addr := ":" + a.Cfg.Port
	a.Log.Info("HTTP server listening", "addr", addr)
	return a.Server.Run(ctx, addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	a.Clients.Close()
	if a.pg != nil {
		_ = a.pg.Close()
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.otelShutdown(ctx)
		cancel()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
