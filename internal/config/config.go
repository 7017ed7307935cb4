package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration, loaded from an optional yaml file
// with env-var overrides on top. Every field has a workable default so the
// server starts with no file at all.
type Config struct {
	Port   string `yaml:"port"`
	DBPath string `yaml:"db_path"`

	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Auth      AuthConfig      `yaml:"auth"`
}

type SnapshotConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

type RateLimitConfig struct {
	MessagesPerSecond float64 `yaml:"messages_per_second"`
	Burst             int     `yaml:"burst"`
}

type AuthConfig struct {
	// With anonymous mode on, unauthenticated connections get throwaway
	// identities and the membership gate admits everyone.
	AllowAnonymous bool `yaml:"allow_anonymous"`
}

func Default() Config {
	return Config{
		Port:   "8080",
		DBPath: "./data/tandem.db",
		Snapshot: SnapshotConfig{
			Enabled:  true,
			Interval: time.Minute,
		},
		RateLimit: RateLimitConfig{
			MessagesPerSecond: 100,
			Burst:             200,
		},
		Auth: AuthConfig{
			AllowAnonymous: true,
		},
	}
}

// Load reads the yaml file at path (skipped when empty or missing) and then
// applies PORT and TANDEM_DB_PATH from the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}
	if dbPath := os.Getenv("TANDEM_DB_PATH"); dbPath != "" {
		cfg.DBPath = dbPath
	}

	if cfg.Snapshot.Interval <= 0 {
		cfg.Snapshot.Interval = time.Minute
	}
	if cfg.RateLimit.MessagesPerSecond <= 0 {
		cfg.RateLimit.MessagesPerSecond = 100
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 200
	}

	return cfg, nil
}
