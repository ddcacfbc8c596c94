// Package story wires the story pipeline job handlers into a runtime registry.
package story

import (
	"gorm.io/gorm"

	"github.com/pandoapps/videoSoryBoard/internal/jobs/pipeline/character_image"
	"github.com/pandoapps/videoSoryBoard/internal/jobs/pipeline/clip_generate"
	"github.com/pandoapps/videoSoryBoard/internal/jobs/pipeline/concatenate_videos"
	"github.com/pandoapps/videoSoryBoard/internal/jobs/pipeline/final_video_poll"
	"github.com/pandoapps/videoSoryBoard/internal/jobs/pipeline/frame_image"
	"github.com/pandoapps/videoSoryBoard/internal/jobs/pipeline/generate_characters"
	"github.com/pandoapps/videoSoryBoard/internal/jobs/pipeline/generate_storyboard"
	"github.com/pandoapps/videoSoryBoard/internal/jobs/pipeline/produce_video"
	jobrt "github.com/pandoapps/videoSoryBoard/internal/jobs/runtime"
	"github.com/pandoapps/videoSoryBoard/internal/jobs/story/steps"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
)

func Handlers(db *gorm.DB, log *logger.Logger, deps steps.Deps) []jobrt.Handler {
	return []jobrt.Handler{
		generate_characters.New(db, log, deps),
		generate_storyboard.New(db, log, deps),
		produce_video.New(db, log, deps),
		clip_generate.New(db, log, deps),
		concatenate_videos.New(db, log, deps),
		final_video_poll.New(db, log, deps),
		character_image.New(db, log, deps),
		frame_image.New(db, log, deps),
	}
}

func Register(reg *jobrt.Registry, db *gorm.DB, log *logger.Logger, deps steps.Deps) error {
	for _, h := range Handlers(db, log, deps) {
		if err := reg.Register(h); err != nil {
			return err
		}
	}
	return nil
}
