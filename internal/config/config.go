package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// Config is the process configuration read from the environment.
type Config struct {
	Port    string `envconfig:"PORT" default:"8080" validate:"required,numeric"`
	LogMode string `envconfig:"LOG_MODE" default:"development" validate:"oneof=development production prod test"`

	PostgresHost     string `envconfig:"POSTGRES_HOST" default:"localhost" validate:"required"`
	PostgresPort     string `envconfig:"POSTGRES_PORT" default:"5432" validate:"required,numeric"`
	PostgresUser     string `envconfig:"POSTGRES_USER" default:"postgres" validate:"required"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD"`
	PostgresName     string `envconfig:"POSTGRES_NAME" default:"videosoryboard" validate:"required"`
	PostgresSSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable" validate:"oneof=disable require verify-ca verify-full prefer allow"`

	RedisAddr    string `envconfig:"REDIS_ADDR"`
	RedisChannel string `envconfig:"REDIS_CHANNEL" default:"pipeline-events"`

	JWTSecretKey       string        `envconfig:"JWT_SECRET_KEY" validate:"required,min=16"`
	VaultEncryptionKey string        `envconfig:"VAULT_ENCRYPTION_KEY" validate:"required,min=16"`
	CORSAllowedOrigins string        `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:5173"`
	RunServer          bool          `envconfig:"RUN_SERVER" default:"true"`
	RunWorker          bool          `envconfig:"RUN_WORKER" default:"true"`
	WorkerConcurrency  int           `envconfig:"WORKER_CONCURRENCY" default:"4" validate:"min=1,max=64"`
	JobMaxAttempts     int           `envconfig:"JOB_MAX_ATTEMPTS" default:"3" validate:"min=1,max=20"`
	StaleJobSweepCron  string        `envconfig:"STALE_JOB_SWEEP_CRON" default:"@every 1m"`
	StaleJobAfter      time.Duration `envconfig:"STALE_JOB_AFTER" default:"15m"`
	TextgenProvider    string        `envconfig:"TEXTGEN_PROVIDER" default:"anthropic" validate:"oneof=anthropic gemini"`
	VideogenProvider   string        `envconfig:"VIDEOGEN_PROVIDER" default:"kling" validate:"oneof=kling higgsfield"`
	AnthropicModel     string        `envconfig:"ANTHROPIC_MODEL" default:"claude-sonnet-4-20250514"`
	GeminiModel        string        `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
	KlingBaseURL       string        `envconfig:"KLING_BASE_URL" default:"https://api-singapore.klingai.com" validate:"url"`
	HiggsfieldBaseURL  string        `envconfig:"HIGGSFIELD_BASE_URL" default:"https://cloud.higgsfield.ai/v1" validate:"url"`
	NanoBananaBaseURL  string        `envconfig:"NANOBANANA_BASE_URL" default:"https://api.nanobananaapi.ai/api/v1/nanobanana" validate:"url"`
	ProviderRatePerSec float64       `envconfig:"PROVIDER_RATE_PER_SEC" default:"2" validate:"gt=0"`
	// MetricsAddr serves /metrics on its own listener when no API server runs.
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
	ServiceName string `envconfig:"SERVICE_NAME" default:"videosoryboard"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

// Load reads and validates the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var msgs []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:     c.PostgresHost + ":" + c.PostgresPort,
		Path:     "/" + c.PostgresName,
		RawQuery: "sslmode=" + c.PostgresSSLMode,
	}
	return u.String()
}

// MaskedPostgresDSN is safe to log.
func (c *Config) MaskedPostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.PostgresUser, "********"),
		Host:     c.PostgresHost + ":" + c.PostgresPort,
		Path:     "/" + c.PostgresName,
		RawQuery: "sslmode=" + c.PostgresSSLMode,
	}
	return u.String()
}

func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
