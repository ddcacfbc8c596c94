package temporalx

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config selects the Temporal deployment job runs are dispatched to. An empty
// Address keeps every job on the local claim-loop worker.
type Config struct {
	Address   string `envconfig:"ADDRESS"`
	Namespace string `envconfig:"NAMESPACE" default:"default"`
	TaskQueue string `envconfig:"TASK_QUEUE" default:"pipeline"`

	ClientCertPath string `envconfig:"CLIENT_CERT_PATH"`
	ClientKeyPath  string `envconfig:"CLIENT_KEY_PATH"`
	ClientCAPath   string `envconfig:"CLIENT_CA_PATH"`

	AutoRegisterNamespace bool          `envconfig:"AUTO_REGISTER_NAMESPACE"`
	RetentionDays         int           `envconfig:"NAMESPACE_RETENTION_DAYS" default:"7"`
	DialTimeout           time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	DialMaxWait           time.Duration `envconfig:"DIAL_MAX_WAIT" default:"60s"`
	Backoff               time.Duration `envconfig:"DIAL_BACKOFF" default:"250ms"`
	BackoffMax            time.Duration `envconfig:"DIAL_BACKOFF_MAX" default:"5s"`
}

// LoadConfig reads TEMPORAL_* variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("TEMPORAL", &cfg); err != nil {
		return Config{}, fmt.Errorf("temporal config: %w", err)
	}
	cfg.Address = strings.TrimSpace(cfg.Address)
	if cfg.RetentionDays < 1 || cfg.RetentionDays > 365 {
		cfg.RetentionDays = 7
	}
	return cfg, nil
}

func (c Config) Enabled() bool { return c.Address != "" }

func (c Config) mTLS() bool {
	return c.ClientCertPath != "" || c.ClientKeyPath != "" || c.ClientCAPath != ""
}

// Backoff doubles base per attempt, capped at max.
func Backoff(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	sleep := base
	for i := 1; i < attempt; i++ {
		sleep *= 2
		if max > 0 && sleep >= max {
			return max
		}
	}
	if max > 0 && sleep > max {
		return max
	}
	return sleep
}
