package app

import (
	"context"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/pandoapps/videoSoryBoard/internal/clients/imagegen"
	"github.com/pandoapps/videoSoryBoard/internal/clients/redis"
	"github.com/pandoapps/videoSoryBoard/internal/clients/textgen"
	"github.com/pandoapps/videoSoryBoard/internal/clients/videogen"
	"github.com/pandoapps/videoSoryBoard/internal/config"
	"github.com/pandoapps/videoSoryBoard/internal/platform/gcp"
	"github.com/pandoapps/videoSoryBoard/internal/platform/localmedia"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
	"github.com/pandoapps/videoSoryBoard/internal/realtime/bus"
	"github.com/pandoapps/videoSoryBoard/internal/temporalx"
)

const cachePrefix = "videosoryboard:"

// Clients holds every outbound connection. Redis and Temporal are nil when not configured.
type Clients struct {
	Redis    *goredis.Client
	Cache    redis.Cache
	Bus      bus.Bus
	Bucket   gcp.BucketService
	Text     textgen.Client
	Image    imagegen.Client
	Video    videogen.Client
	Media    localmedia.Tools
	Temporal temporalsdkclient.Client
}

func wireClients(ctx context.Context, log *logger.Logger, cfg *config.Config, tcfg temporalx.Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	// Redis
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		rdb, err := redis.NewClient(ctx, log, cfg.RedisAddr)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		b, err := bus.NewRedisBus(log, rdb, cfg.RedisChannel)
		if err != nil {
			_ = rdb.Close()
			return Clients{}, fmt.Errorf("init redis bus: %w", err)
		}
		out.Redis = rdb
		out.Cache = redis.NewCache(rdb, cachePrefix)
		out.Bus = b
	} else {
		if !cfg.RunServer || !cfg.RunWorker {
			log.Warn("REDIS_ADDR not set; events stay inside this process")
		}
		out.Cache = redis.NewMemoryCache()
		out.Bus = bus.NewLocalBus()
	}

	// Object storage
	bucket, err := gcp.NewBucketService(log)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init bucket: %w", err)
	}
	out.Bucket = bucket

	// Generation providers
	switch cfg.TextgenProvider {
	case "gemini":
		out.Text = textgen.NewGemini(log, textgen.GeminiOptions{Model: cfg.GeminiModel})
	default:
		out.Text = textgen.NewAnthropic(log, textgen.AnthropicOptions{Model: cfg.AnthropicModel})
	}
	out.Image = imagegen.NewNanoBanana(log, imagegen.NanoBananaOptions{
		BaseURL:    cfg.NanoBananaBaseURL,
		RatePerSec: cfg.ProviderRatePerSec,
	})
	switch cfg.VideogenProvider {
	case "higgsfield":
		out.Video = videogen.NewHiggsfield(log, videogen.HiggsfieldOptions{BaseURL: cfg.HiggsfieldBaseURL})
	default:
		out.Video = videogen.NewKling(log, videogen.KlingOptions{
			BaseURL:    cfg.KlingBaseURL,
			RatePerSec: cfg.ProviderRatePerSec,
			TokenCache: out.Cache,
		})
	}
	out.Media = localmedia.New(log)

	// Temporal
	tc, err := temporalx.NewClient(log, tcfg)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init temporal: %w", err)
	}
	out.Temporal = tc

	log.Info("Clients wired",
		"text_provider", out.Text.Provider(),
		"image_provider", out.Image.Provider(),
		"video_provider", out.Video.Provider(),
		"redis", out.Redis != nil,
		"temporal", out.Temporal != nil,
	)
	return out, nil
}

func (c *Clients) Close() {
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.Bus != nil {
		_ = c.Bus.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
