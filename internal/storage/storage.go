// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ShotaNagafuchi/slack-stamp-mask/internal/model"
)

// Keys of the persisted settings.
const (
	KeyToken    = "slackToken"
	KeyAutoMode = "autoMode"
)

// Supported backends.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

// Storage is the interface for all persistence operations.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error

	RecordReaction(ctx context.Context, rec *model.ReactionRecord) error
	ListReactions(ctx context.Context, limit int) ([]model.ReactionRecord, error)

	Close() error
}

// Open selects the backend once. sqlite uses dbPath, file uses stateDir.
func Open(backend, dbPath, stateDir string) (Storage, error) {
	switch backend {
	case BackendSQLite, "":
		return NewSQLite(dbPath)
	case BackendFile:
		return NewFile(stateDir), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q (use %q or %q)", backend, BackendSQLite, BackendFile)
	}
}

// LoadToken returns the stored Slack token, or "" when none is stored.
func LoadToken(ctx context.Context, s Storage) (string, error) {
	v, _, err := s.Get(ctx, KeyToken)
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}
	return v, nil
}

// SaveToken persists the Slack token.
func SaveToken(ctx context.Context, s Storage, token string) error {
	if err := s.Set(ctx, KeyToken, token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// LoadAutoMode returns the persisted auto-mode toggle (false when unset).
func LoadAutoMode(ctx context.Context, s Storage) (bool, error) {
	v, ok, err := s.Get(ctx, KeyAutoMode)
	if err != nil {
		return false, fmt.Errorf("load auto mode: %w", err)
	}
	if !ok {
		return false, nil
	}
	on, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parse auto mode %q: %w", v, err)
	}
	return on, nil
}

// SaveAutoMode persists the auto-mode toggle.
func SaveAutoMode(ctx context.Context, s Storage, on bool) error {
	if err := s.Set(ctx, KeyAutoMode, strconv.FormatBool(on)); err != nil {
		return fmt.Errorf("save auto mode: %w", err)
	}
	return nil
}
