package app

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configurable parameters for the application.
type Config struct {
	LogLevel string      `yaml:"log_level"`
	Server   ServeConfig `yaml:"server"`
	Watch    WatchConfig `yaml:"watch"`
}

// ServeConfig configures the recording server.
type ServeConfig struct {
	Port         int    `yaml:"port"`
	DatabasePath string `yaml:"database_path"`
	BannerFile   string `yaml:"banner_file"`
	UpdatesSize  int    `yaml:"updates_size"`

	IngestRate  float64 `yaml:"ingest_rate"`
	IngestBurst int     `yaml:"ingest_burst"`

	RateLimiterTTL  time.Duration `yaml:"rate_limiter_ttl"`
	WatcherDebounce time.Duration `yaml:"watcher_debounce"`
	PingInterval    time.Duration `yaml:"ping_interval"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// WatchConfig configures the follower client.
type WatchConfig struct {
	URL            string        `yaml:"url"`
	Transport      string        `yaml:"transport"`
	SnapshotLimit  int           `yaml:"snapshot_limit"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`

	Filter   string   `yaml:"filter"`
	Fields   []string `yaml:"fields"`
	Template string   `yaml:"template"`
	Color    bool     `yaml:"color"`
	Verbose  bool     `yaml:"verbose"`
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Server: ServeConfig{
			Port:         8080,
			DatabasePath: "./data/apitrail.db",
			BannerFile:   "./banner.txt",
			UpdatesSize:  200,

			IngestRate:  50,
			IngestBurst: 100,

			RateLimiterTTL:  10 * time.Minute,
			WatcherDebounce: 500 * time.Millisecond,
			PingInterval:    15 * time.Second,

			ReadTimeout:     30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Watch: WatchConfig{
			URL:            "http://localhost:8080",
			Transport:      "sse",
			SnapshotLimit:  50,
			ReconnectDelay: 5 * time.Second,
			Color:          true,
		},
	}
}

// LoadConfigFile overlays the YAML file at path on the defaults. An empty path
// or a missing file yields the defaults.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the components cannot run with.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.DatabasePath == "" {
		return errors.New("server.database_path is required")
	}
	if c.Server.IngestRate < 0 || c.Server.IngestBurst < 0 {
		return errors.New("server ingest rate and burst must not be negative")
	}
	if c.Watch.ReconnectDelay < 0 {
		return errors.New("watch.reconnect_delay must not be negative")
	}
	switch c.Watch.Transport {
	case "sse", "ws":
	default:
		return fmt.Errorf("watch.transport %q must be sse or ws", c.Watch.Transport)
	}
	return nil
}
