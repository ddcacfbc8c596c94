package sweeper

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pandoapps/videoSoryBoard/internal/data/repos"
	"github.com/pandoapps/videoSoryBoard/internal/platform/dbctx"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
)

// Task is one maintenance step run on every sweep.
type Task struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

// Sweeper periodically repairs state that a crashed worker can leave behind.
type Sweeper struct {
	log      *logger.Logger
	cron     *cron.Cron
	schedule string
	timeout  time.Duration

	mu    sync.Mutex
	tasks []Task
}

func New(log *logger.Logger, schedule string) *Sweeper {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		schedule = "@every 1m"
	}
	return &Sweeper{
		log:      log.With("component", "Sweeper"),
		cron:     cron.New(),
		schedule: schedule,
		timeout:  time.Minute,
	}
}

func (s *Sweeper) Add(t Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, t)
}

// RequeueStaleJobs puts running jobs whose heartbeat expired back in the queue.
func RequeueStaleJobs(repo repos.JobRunRepo, staleAfter time.Duration) Task {
	return Task{
		Name: "requeue_stale_jobs",
		Run: func(ctx context.Context) (int64, error) {
			return repo.RequeueStale(dbctx.Context{Ctx: ctx}, staleAfter)
		},
	}
}

func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunNow(context.Background()) }); err != nil {
		return fmt.Errorf("schedule sweeper %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.log.Info("Sweeper started", "schedule", s.schedule)
	return nil
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("Sweeper stopped")
}

// RunNow executes every task once; a failing task does not stop the others.
func (s *Sweeper) RunNow(ctx context.Context) map[string]int64 {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.mu.Lock()
	tasks := append([]Task(nil), s.tasks...)
	s.mu.Unlock()

	out := make(map[string]int64, len(tasks))
	for _, t := range tasks {
		n, err := t.Run(ctx)
		if err != nil {
			s.log.Warn("sweep task failed", "task", t.Name, "error", err)
			continue
		}
		out[t.Name] = n
		if n > 0 {
			s.log.Info("sweep task repaired rows", "task", t.Name, "rows", n)
		}
	}
	return out
}
