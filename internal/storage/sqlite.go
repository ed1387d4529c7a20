package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"github.com/ShotaNagafuchi/slack-stamp-mask/internal/model"
	"github.com/ShotaNagafuchi/slack-stamp-mask/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

var _ Storage = (*SQLite)(nil)

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Reactions are recorded from timer goroutines; a single connection
	// serialises writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Get returns the value stored under key. ok is false when the key is unset.
func (s *SQLite) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *SQLite) Set(ctx context.Context, key, value string) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now,
	)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// RecordReaction inserts a reaction log entry and populates its ID and CreatedAt.
func (s *SQLite) RecordReaction(ctx context.Context, rec *model.ReactionRecord) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reactions (channel, message_id, emoji, rule, source, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Channel, rec.MessageID, rec.Emoji, rec.Rule, string(rec.Source), rec.Error, now,
	)
	if err != nil {
		return fmt.Errorf("insert reaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	rec.ID = id
	rec.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// ListReactions returns up to limit reaction log entries, newest first.
func (s *SQLite) ListReactions(ctx context.Context, limit int) ([]model.ReactionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, channel, message_id, emoji, rule, source, error, created_at
		 FROM reactions ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query reactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var recs []model.ReactionRecord
	for rows.Next() {
		var r model.ReactionRecord
		var source, created string
		if err := rows.Scan(&r.ID, &r.Channel, &r.MessageID, &r.Emoji, &r.Rule, &source, &r.Error, &created); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		r.Source = model.ReactionSource(source)
		r.CreatedAt, _ = time.Parse(timeLayout, created)
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
