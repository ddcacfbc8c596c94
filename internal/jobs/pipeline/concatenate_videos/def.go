package concatenate_videos

import (
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
	log := baseLog.With("job", "concatenate_videos")
	return &Pipeline{
		db:   db,
		log:  log,
		deps: deps.Bind(db, log),
	}
}

func (p *Pipeline) Type() string { return "concatenate_videos" }
