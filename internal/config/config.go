// Package config loads kiosk configuration from an optional YAML file
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full kiosk configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Detection DetectionConfig `yaml:"detection"`
	Auth      AuthConfig      `yaml:"auth"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type BridgeConfig struct {
	// URL is the websocket endpoint of the scale bridge,
	// e.g. ws://scale.local:9001/data.
	URL string `yaml:"url"`
}

type DetectionConfig struct {
	// TimeoutSeconds bounds how long an episode waits for an admissible
	// reading.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// SentinelLabel is the bridge's "no item present" placeholder.
	SentinelLabel string `yaml:"sentinel_label"`
}

type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	TokenTTLHours int    `yaml:"token_ttl_hours"`
}

// defaultSentinel is the placeholder string the bridge firmware emits
// when nothing is on the platter.
const defaultSentinel = "OniGarlicGarlicGarlicGarlicGarlic"

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server:   ServerConfig{Addr: ":8080"},
		Database: DatabaseConfig{Path: "./data/kiosk.db"},
		Bridge:   BridgeConfig{URL: "ws://localhost:9001/data"},
		Detection: DetectionConfig{
			TimeoutSeconds: 30,
			SentinelLabel:  defaultSentinel,
		},
		Auth: AuthConfig{TokenTTLHours: 12},
	}
}

// Load reads the YAML file at path (skipped when path is empty or the
// file does not exist) and applies environment overrides on top of the
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	applyEnv(&cfg)

	if cfg.Auth.JWTSecret == "" {
		return Config{}, fmt.Errorf("auth.jwt_secret (or KIOSK_JWT_SECRET) is required")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("KIOSK_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("KIOSK_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("KIOSK_BRIDGE_URL"); v != "" {
		cfg.Bridge.URL = v
	}
	if v := os.Getenv("KIOSK_SENTINEL_LABEL"); v != "" {
		cfg.Detection.SentinelLabel = v
	}
	if v := os.Getenv("KIOSK_DETECTION_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Detection.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("KIOSK_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("KIOSK_TOKEN_TTL_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Auth.TokenTTLHours = n
		}
	}
}

// DetectionTimeout returns the episode timeout as a duration.
func (c Config) DetectionTimeout() time.Duration {
	return time.Duration(c.Detection.TimeoutSeconds) * time.Second
}

// TokenTTL returns the clerk token lifetime as a duration.
func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLHours) * time.Hour
}
