package clip_generate

import (
	"time"

	"gorm.io/gorm"

	"github.com/pandoapps/videoSoryBoard/internal/jobs/story/steps"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
)

type Pipeline struct {
	db   *gorm.DB
	log  *logger.Logger
	deps steps.Deps
}

func New(db *gorm.DB, baseLog *logger.Logger, deps steps.Deps) *Pipeline {
	log := baseLog.With("job", "clip_generate")
	return &Pipeline{
		db:   db,
		log:  log,
		deps: deps.Bind(db, log),
	}
}

func (p *Pipeline) Type() string { return "clip_generate" }

// Timeout bounds one submit or poll tick; waits between ticks are yields.
func (p *Pipeline) Timeout() time.Duration { return 2 * time.Minute }
