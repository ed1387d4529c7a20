// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	SlackToken        string
	SlackAPIURL       string
	SlackRateInterval time.Duration

	StorageBackend string
	DatabasePath   string
	StateDir       string

	RulesPath     string
	PollInterval  time.Duration
	HistoryLimit  int
	MinDelay      time.Duration
	MaxDelay      time.Duration
	MaxMessageAge time.Duration

	TelegramBotToken string
	AllowedUsers     []int64
	HTTPAddr         string

	LogLevel string
}

// Load reads configuration from environment variables.
// Every component is optional; missing values fall back to defaults.
func Load() (*Config, error) {
	cfg := &Config{
		SlackToken:       os.Getenv("SLACK_TOKEN"),
		SlackAPIURL:      os.Getenv("SLACK_API_URL"),
		StorageBackend:   envOrDefault("STORAGE_BACKEND", "sqlite"),
		DatabasePath:     envOrDefault("DATABASE_PATH", "./data/stamper.db"),
		StateDir:         envOrDefault("STATE_DIR", "./data/state"),
		RulesPath:        os.Getenv("RULES_PATH"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		HTTPAddr:         os.Getenv("HTTP_ADDR"),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
	}

	switch cfg.StorageBackend {
	case "sqlite", "file":
	default:
		return nil, fmt.Errorf("invalid STORAGE_BACKEND %q: must be sqlite or file", cfg.StorageBackend)
	}

	var err error
	if cfg.SlackRateInterval, err = durationEnv("SLACK_RATE_INTERVAL", time.Second); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = durationEnv("POLL_INTERVAL", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.MinDelay, err = durationEnv("MIN_DELAY", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.MaxDelay, err = durationEnv("MAX_DELAY", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.MaxMessageAge, err = durationEnv("MAX_MESSAGE_AGE", time.Hour); err != nil {
		return nil, err
	}
	if cfg.MinDelay > cfg.MaxDelay {
		return nil, fmt.Errorf("MIN_DELAY (%s) must not exceed MAX_DELAY (%s)", cfg.MinDelay, cfg.MaxDelay)
	}

	cfg.HistoryLimit = 10
	if raw := os.Getenv("HISTORY_LIMIT"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid HISTORY_LIMIT %q: must be a positive integer", raw)
		}
		cfg.HistoryLimit = n
	}

	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
			}
			cfg.AllowedUsers = append(cfg.AllowedUsers, uid)
		}
	}

	return cfg, nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, raw)
	}
	return d, nil
}
