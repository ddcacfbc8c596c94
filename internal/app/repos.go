package app

import (
	"gorm.io/gorm"

	"github.com/pandoapps/videoSoryBoard/internal/data/repos"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
)

func wireRepos(db *gorm.DB, log *logger.Logger) repos.Set {
	log.Info("Wiring repos...")
	return repos.NewSet(db, log)
}
