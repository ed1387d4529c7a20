// Package control is the inbound control surface shared by every adapter:
// it toggles auto mode, reports status and performs one-shot reactions.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ShotaNagafuchi/slack-stamp-mask/internal/model"
	"github.com/ShotaNagafuchi/slack-stamp-mask/internal/storage"
)

// Runner starts and stops the auto-stamp loop.
type Runner interface {
	Start(ctx context.Context, token string) error
	Stop()
	Status() model.Status
}

// Reactor adds a single reaction.
type Reactor interface {
	AddReaction(ctx context.Context, token, channel, ts, emoji string) error
}

// Controller wires adapters to the auto-stamp runner, the Slack client and storage.
type Controller struct {
	runner Runner
	api    Reactor
	store  storage.Storage
	log    *slog.Logger
}

// New creates a Controller.
func New(runner Runner, api Reactor, store storage.Storage, log *slog.Logger) *Controller {
	return &Controller{runner: runner, api: api, store: store, log: log}
}

// Start enables auto mode. A blank token falls back to the stored one.
// The token is persisted only after the stamper initialized. A failed start
// leaves nothing running, so the toggle is switched off to match.
func (c *Controller) Start(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		stored, err := storage.LoadToken(ctx, c.store)
		if err != nil {
			return err
		}
		token = stored
	}
	if err := ValidateToken(token); err != nil {
		return err
	}

	if err := c.runner.Start(ctx, token); err != nil {
		if saveErr := storage.SaveAutoMode(ctx, c.store, false); saveErr != nil {
			c.log.Error("save auto mode", "error", saveErr)
		}
		return fmt.Errorf("start auto mode: %w", err)
	}

	if err := storage.SaveToken(ctx, c.store, token); err != nil {
		return err
	}
	return storage.SaveAutoMode(ctx, c.store, true)
}

// Stop disables auto mode and cancels pending reactions.
func (c *Controller) Stop(ctx context.Context) error {
	c.runner.Stop()
	return storage.SaveAutoMode(ctx, c.store, false)
}

// Status reports the auto-stamp state.
func (c *Controller) Status() model.Status {
	return c.runner.Status()
}

// SetToken validates and stores a token without starting auto mode.
func (c *Controller) SetToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if err := ValidateToken(token); err != nil {
		return err
	}
	return storage.SaveToken(ctx, c.store, token)
}

// AddReaction performs a one-shot reaction, independent of auto mode.
// The attempt is recorded whether or not Slack accepted it.
func (c *Controller) AddReaction(ctx context.Context, req ReactionRequest) (model.ReactionRecord, error) {
	req = req.Sanitize()
	if err := req.Validate(); err != nil {
		return model.ReactionRecord{}, err
	}

	token := req.Token
	if token == "" {
		stored, err := storage.LoadToken(ctx, c.store)
		if err != nil {
			return model.ReactionRecord{}, err
		}
		if stored == "" {
			return model.ReactionRecord{}, &ValidationError{Field: "token", Message: "No Slack token configured. Set one first."}
		}
		token = stored
	}

	rec := model.ReactionRecord{
		Channel:   req.Channel,
		MessageID: req.Timestamp,
		Emoji:     req.Emoji,
		Source:    model.SourceManual,
	}
	apiErr := c.api.AddReaction(ctx, token, req.Channel, req.Timestamp, req.Emoji)
	if apiErr != nil {
		rec.Error = apiErr.Error()
	}

	if err := c.store.RecordReaction(ctx, &rec); err != nil {
		c.log.Error("record reaction", "channel", rec.Channel, "ts", rec.MessageID, "error", err)
	}

	if apiErr != nil {
		return rec, fmt.Errorf("add reaction: %w", apiErr)
	}
	c.log.Info("reaction added", "channel", rec.Channel, "ts", rec.MessageID, "emoji", rec.Emoji, "source", rec.Source)
	return rec, nil
}

// Resume restarts auto mode when it was left on and a token is stored.
func (c *Controller) Resume(ctx context.Context) error {
	on, err := storage.LoadAutoMode(ctx, c.store)
	if err != nil {
		return err
	}
	if !on {
		return nil
	}

	token, err := storage.LoadToken(ctx, c.store)
	if err != nil {
		return err
	}
	if token == "" {
		c.log.Warn("auto mode was on but no token is stored")
		return nil
	}

	if err := c.runner.Start(ctx, token); err != nil {
		return fmt.Errorf("resume auto mode: %w", err)
	}
	c.log.Info("auto mode resumed")
	return nil
}

// History returns the most recent reaction attempts, newest first.
func (c *Controller) History(ctx context.Context, limit int) ([]model.ReactionRecord, error) {
	recs, err := c.store.ListReactions(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	return recs, nil
}
