package app

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"

	"github.com/pandoapps/videoSoryBoard/internal/config"
	"github.com/pandoapps/videoSoryBoard/internal/temporalx"
)

// LoadConfig reads an optional .env file, then the process environment.
// Variables already set in the environment win over .env entries.
func LoadConfig() (*config.Config, temporalx.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, temporalx.Config{}, fmt.Errorf("read .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, temporalx.Config{}, err
	}
	tcfg, err := temporalx.LoadConfig()
	if err != nil {
		return nil, temporalx.Config{}, fmt.Errorf("load temporal config: %w", err)
	}
	return cfg, tcfg, nil
}
