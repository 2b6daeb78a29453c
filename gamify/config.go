package gamify

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/notedrop/gamify/gamify/database"
	"github.com/pelletier/go-toml/v2"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

type Config struct {
	Log    LogConfig         `toml:"log"`
	DB     database.DBConfig `toml:"db"`
	Jobs   JobsConfig        `toml:"jobs"`
	Legacy LegacyConfig      `toml:"legacy"`
}

type LogConfig struct {
	Level slog.Level `toml:"level"`
}

type JobsConfig struct {
	RankIntervalMinutes      int `toml:"rank_interval_minutes"`
	ReconcileIntervalMinutes int `toml:"reconcile_interval_minutes"`
	CacheTTLSeconds          int `toml:"cache_ttl_seconds"`
}

// LegacyConfig points at the predecessor's MongoDB, used only by the importer.
type LegacyConfig struct {
	URI      string `toml:"uri"`
	Database string `toml:"database"`
}

func (c *Config) applyDefaults() {
	if c.Jobs.RankIntervalMinutes <= 0 {
		c.Jobs.RankIntervalMinutes = 60 // hourly-rank
	}
	if c.Jobs.ReconcileIntervalMinutes <= 0 {
		c.Jobs.ReconcileIntervalMinutes = 24 * 60 // daily-reconcile
	}
	if c.Jobs.CacheTTLSeconds <= 0 {
		c.Jobs.CacheTTLSeconds = 30
	}
}
