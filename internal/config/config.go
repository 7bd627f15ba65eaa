// Package config loads engine configuration from the environment and the
// optional referral levels file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"

	"github.com/Goodisoft/vestearning/internal/app/domain/referral"
)

// Config is the engine runtime configuration, decoded from ENGINE_*
// environment variables.
type Config struct {
	// OpsAddr is the listen address for /healthz and /metrics.
	OpsAddr string `env:"ENGINE_OPS_ADDR,default=:9090"`

	// PostgresDSN selects the postgres store; empty runs in-memory.
	PostgresDSN string `env:"ENGINE_POSTGRES_DSN"`

	// RedisAddr enables the cross-process sweep lock when set.
	RedisAddr     string `env:"ENGINE_REDIS_ADDR"`
	RedisPassword string `env:"ENGINE_REDIS_PASSWORD"`

	// SweepInterval drives the maturity sweeper.
	SweepInterval time.Duration `env:"ENGINE_SWEEP_INTERVAL,default=30m"`

	// SweepSchedule is an optional cron expression overriding the interval,
	// e.g. "*/30 * * * *" or "@every 30m".
	SweepSchedule string `env:"ENGINE_SWEEP_SCHEDULE"`

	// ReferralConfigPath points at the YAML referral levels file.
	ReferralConfigPath string `env:"ENGINE_REFERRAL_CONFIG,default=config/referral.yaml"`
}

// Load decodes configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	return cfg, nil
}

// LoadReferralSettings reads the referral program configuration from the
// given YAML file, falling back to defaults when the file is absent.
func LoadReferralSettings(path string) (referral.Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultReferralSettings(), nil
		}
		return referral.Settings{}, fmt.Errorf("read referral config: %w", err)
	}

	var settings referral.Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return referral.Settings{}, fmt.Errorf("parse referral config: %w", err)
	}

	for _, level := range settings.Levels {
		if level.Level < 1 {
			return referral.Settings{}, fmt.Errorf("referral level %d: level must be >= 1", level.Level)
		}
		if level.CommissionRate < 0 {
			return referral.Settings{}, fmt.Errorf("referral level %d: commission rate cannot be negative", level.Level)
		}
	}
	return settings, nil
}

// DefaultReferralSettings is the three-level program used when no file is
// configured.
func DefaultReferralSettings() referral.Settings {
	return referral.Settings{
		Enabled: true,
		Levels: []referral.Level{
			{Level: 1, CommissionRate: 5},
			{Level: 2, CommissionRate: 2},
			{Level: 3, CommissionRate: 1},
		},
	}
}
