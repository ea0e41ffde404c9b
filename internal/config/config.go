package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime settings. Values come from the environment,
// optionally seeded from a .env file in the working directory.
type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN"`

	// Queue capacities. Overflowing the forward queue drops the new item,
	// overflowing history evicts the oldest entry.
	MaxQueueSize   int `env:"MAX_QUEUE_SIZE" envDefault:"10000"`
	MaxHistorySize int `env:"MAX_HISTORY_SIZE" envDefault:"100"`

	FFmpegPath   string        `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	ProxyURL     string        `env:"PROXY_URL"`
	ProbeTimeout time.Duration `env:"PROBE_TIMEOUT" envDefault:"5s"`
}

// New loads configuration from .env and the process environment.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[Config] No .env file found, falling back to system environment variables")
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.DiscordToken == "" {
		return nil, fmt.Errorf("DISCORD_TOKEN is not set")
	}
	if cfg.MaxQueueSize < 1 {
		cfg.MaxQueueSize = 1
	}
	if cfg.MaxHistorySize < 0 {
		cfg.MaxHistorySize = 0
	}

	return &cfg, nil
}
