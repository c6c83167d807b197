// Package config loads server settings from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the game server's runtime configuration.
type Config struct {
	Port              string        `env:"PORT"`
	GamePort          string        `env:"GAME_PORT" envDefault:"8081"`
	DBPath            string        `env:"ROSE_DB_PATH"` // empty keeps everything in memory
	OpponentDelay     time.Duration `env:"ROSE_OPPONENT_DELAY" envDefault:"0s"`
	Seed              int64         `env:"ROSE_SEED"` // 0 seeds each combat from crypto/rand
	DailyActionPoints int           `env:"ROSE_DAILY_ACTION_POINTS" envDefault:"10"`
	AllowedOrigin     string        `env:"ROSE_ALLOWED_ORIGIN" envDefault:"*"`
	AdminToken        string        `env:"ROSE_ADMIN_TOKEN"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates the server configuration.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.OpponentDelay < 0 {
		return Config{}, fmt.Errorf("ROSE_OPPONENT_DELAY must not be negative")
	}
	if cfg.DailyActionPoints < 1 {
		return Config{}, fmt.Errorf("ROSE_DAILY_ACTION_POINTS must be at least 1")
	}
	return cfg, nil
}

// ListenPort is PORT when set, GAME_PORT otherwise.
func (c Config) ListenPort() string {
	if c.Port != "" {
		return c.Port
	}
	return c.GamePort
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
