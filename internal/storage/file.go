package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ShotaNagafuchi/slack-stamp-mask/internal/model"
)

const (
	stateDirMode  = 0o700
	stateFileMode = 0o600

	reactionsFile = "reactions.jsonl"
)

// File implements Storage on plain files under a root directory.
// Settings live one per file under kv/, reactions are appended as JSON lines.
type File struct {
	root string
	mu   sync.RWMutex

	// lastID is read from the log once, then advanced on every append.
	lastID     int64
	lastIDRead bool
}

var _ Storage = (*File)(nil)

// NewFile returns a file-backed store rooted at root. Directories are created lazily.
func NewFile(root string) *File {
	return &File{root: filepath.Clean(root)}
}

// Get returns the value stored under key. ok is false when the key is unset.
func (f *File) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	path, err := f.pathForKey(key)
	if err != nil {
		return "", false, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %q: %w", key, err)
	}
	return string(data), true, nil
}

// Set stores value under key, replacing any previous value.
func (f *File) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := f.pathForKey(key)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), stateDirMode); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(value), stateFileMode); err != nil {
		return fmt.Errorf("write %q: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %q: %w", key, err)
	}
	return nil
}

// RecordReaction appends a reaction log entry and populates its ID and CreatedAt.
func (f *File) RecordReaction(ctx context.Context, rec *model.ReactionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(f.root, stateDirMode); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	if !f.lastIDRead {
		existing, err := f.readReactions()
		if err != nil {
			return err
		}
		if n := len(existing); n > 0 {
			f.lastID = existing[n-1].ID
		}
		f.lastIDRead = true
	}

	entry := *rec
	entry.ID = f.lastID + 1
	entry.CreatedAt = time.Now().UTC().Truncate(time.Second)

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode reaction: %w", err)
	}

	file, err := os.OpenFile(filepath.Join(f.root, reactionsFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, stateFileMode)
	if err != nil {
		return fmt.Errorf("open reaction log: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append reaction: %w", err)
	}
	f.lastID = entry.ID
	*rec = entry
	return nil
}

// ListReactions returns up to limit reaction log entries, newest first.
func (f *File) ListReactions(ctx context.Context, limit int) ([]model.ReactionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	f.mu.RLock()
	all, err := f.readReactions()
	f.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	var out []model.ReactionRecord
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

// Close is a no-op; every operation opens and closes its own files.
func (f *File) Close() error { return nil }

func (f *File) readReactions() ([]model.ReactionRecord, error) {
	file, err := os.Open(filepath.Join(f.root, reactionsFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open reaction log: %w", err)
	}
	defer func() { _ = file.Close() }()

	var recs []model.ReactionRecord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var r model.ReactionRecord
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			return nil, fmt.Errorf("decode reaction: %w", err)
		}
		recs = append(recs, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read reaction log: %w", err)
	}
	return recs, nil
}

func (f *File) pathForKey(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", errors.New("state key is empty")
	}
	cleaned := filepath.Clean(trimmed)
	if filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") || cleaned == "." || strings.ContainsRune(cleaned, filepath.Separator) {
		return "", fmt.Errorf("invalid state key %q", key)
	}
	return filepath.Join(f.root, "kv", cleaned), nil
}
