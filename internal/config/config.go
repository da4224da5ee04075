package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Pigeon  PigeonConfig  `toml:"pigeon"`
	Storage StorageConfig `toml:"storage"`
	Redis   RedisConfig   `toml:"redis"`
	Server  ServerConfig  `toml:"server"`
}

type PigeonConfig struct {
	Name        string `toml:"name"`
	Interval    string `toml:"interval"`
	RunOnce     bool   `toml:"run_once"`
	BatchSize   int    `toml:"batch_size"`
	WorkingDir  string `toml:"working_dir"`
	MediaRoot   string `toml:"media_root"`
	TemplateDir string `toml:"template_dir"`
	Retention   string `toml:"history_retention"`
	LogLevel    string `toml:"log_level"`
}

type StorageConfig struct {
	Type string `toml:"type"`
	Path string `toml:"path"`
}

type RedisConfig struct {
	Enabled  bool   `toml:"enabled"`
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Channel  string `toml:"channel"`
}

type ServerConfig struct {
	Enabled  bool   `toml:"enabled"`
	Port     string `toml:"port"`
	FeedSize int    `toml:"feed_size"`
	CacheTTL string `toml:"cache_ttl"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func validateConfig(config *Config) error {
	if config.Pigeon.Name == "" {
		config.Pigeon.Name = "pigeon"
	}

	if config.Pigeon.Interval == "" {
		config.Pigeon.Interval = "1m"
	}

	interval, err := time.ParseDuration(config.Pigeon.Interval)
	if err != nil {
		return fmt.Errorf("invalid interval: %w", err)
	}
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", config.Pigeon.Interval)
	}

	if config.Pigeon.BatchSize <= 0 {
		config.Pigeon.BatchSize = 100
	}

	if config.Pigeon.WorkingDir == "" {
		config.Pigeon.WorkingDir = "./pigeon_out"
	}

	if config.Pigeon.MediaRoot == "" {
		config.Pigeon.MediaRoot = "./media"
	}

	if config.Pigeon.Retention != "" {
		if _, err := time.ParseDuration(config.Pigeon.Retention); err != nil {
			return fmt.Errorf("invalid history_retention: %w", err)
		}
	}

	if _, err := ParseLogLevel(config.Pigeon.LogLevel); err != nil {
		return err
	}

	if config.Storage.Type == "" {
		config.Storage.Type = "sqlite"
	}

	if config.Storage.Path == "" {
		config.Storage.Path = "./pigeon.db"
	}

	if config.Redis.Enabled {
		if config.Redis.Addr == "" {
			config.Redis.Addr = "localhost:6379"
		}
		if config.Redis.Channel == "" {
			config.Redis.Channel = "pigeon:saves"
		}
	}

	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}

	if config.Server.FeedSize <= 0 {
		config.Server.FeedSize = 100
	}

	if config.Server.CacheTTL == "" {
		config.Server.CacheTTL = "5m"
	}

	if _, err := time.ParseDuration(config.Server.CacheTTL); err != nil {
		return fmt.Errorf("invalid server cache_ttl: %w", err)
	}

	return nil
}

func (c *Config) IntervalDuration() time.Duration {
	return ParseDuration(c.Pigeon.Interval, time.Minute)
}

func (c *Config) RetentionDuration() time.Duration {
	return ParseDuration(c.Pigeon.Retention, 0)
}

func ParseDuration(s string, defaultValue time.Duration) time.Duration {
	if s == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultValue
	}
	return d
}

func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log_level: %q", s)
	}
}
