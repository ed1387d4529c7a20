package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ShotaNagafuchi/slack-stamp-mask/internal/config"
	"github.com/ShotaNagafuchi/slack-stamp-mask/internal/control"
	"github.com/ShotaNagafuchi/slack-stamp-mask/internal/filter"
	"github.com/ShotaNagafuchi/slack-stamp-mask/internal/scheduler"
	"github.com/ShotaNagafuchi/slack-stamp-mask/internal/slackapi"
	"github.com/ShotaNagafuchi/slack-stamp-mask/internal/storage"
)

const slackHTTPTimeout = 30 * time.Second

type app struct {
	cfg     *config.Config
	log     *slog.Logger
	store   storage.Storage
	manager *scheduler.Manager
	ctl     *control.Controller
}

func wireApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := newLogger(cfg.LogLevel)

	rules, err := filter.LoadRules(cfg.RulesPath)
	if err != nil {
		return nil, err
	}

	if err := ensureDataDir(cfg); err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.StorageBackend, cfg.DatabasePath, cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	opts := []slackapi.Option{
		slackapi.WithLimiter(rate.NewLimiter(rate.Every(cfg.SlackRateInterval), 1)),
	}
	if cfg.SlackAPIURL != "" {
		opts = append(opts, slackapi.WithBaseURL(cfg.SlackAPIURL))
	}
	client := slackapi.New(&http.Client{Timeout: slackHTTPTimeout}, log.With("component", "slack"), opts...)

	stamperOpts := scheduler.Options{
		Rules:        rules,
		PollInterval: cfg.PollInterval,
		MinDelay:     cfg.MinDelay,
		MaxDelay:     cfg.MaxDelay,
		MaxAge:       cfg.MaxMessageAge,
		HistoryLimit: cfg.HistoryLimit,
	}
	stamperLog := log.With("component", "stamper")
	manager := scheduler.NewManager(func(token string) *scheduler.Stamper {
		return scheduler.New(client, store, token, stamperOpts, stamperLog)
	}, log)

	return &app{
		cfg:     cfg,
		log:     log,
		store:   store,
		manager: manager,
		ctl:     control.New(manager, client, store, log),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Error("close storage", "error", err)
	}
}

// ensureDataDir creates the SQLite database directory. The file backend
// creates its own root with tighter permissions.
func ensureDataDir(cfg *config.Config) error {
	if cfg.StorageBackend != storage.BackendSQLite || cfg.DatabasePath == ":memory:" {
		return nil
	}
	dir := filepath.Dir(cfg.DatabasePath)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create data directory %s: %w", dir, err)
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
