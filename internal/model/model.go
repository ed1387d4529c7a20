// Package model defines the domain types used across the application.
package model

import (
	"strconv"
	"time"
)

// Rule maps a set of keywords to candidate reaction emojis.
type Rule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Emojis   []string `yaml:"emojis"`
}

// Message is a single channel message fetched from history.
type Message struct {
	ID       string // Slack ts, unique within a channel
	Channel  string
	AuthorID string
	Text     string
}

// Key identifies the message across channels.
func (m Message) Key() string {
	return m.Channel + "/" + m.ID
}

// Time derives the posting time from the message ts ("1700000000.123456").
// The second return value is false when the ts cannot be parsed.
func (m Message) Time() (time.Time, bool) {
	secs, err := strconv.ParseFloat(m.ID, 64)
	if err != nil || secs <= 0 {
		return time.Time{}, false
	}
	whole := int64(secs)
	nanos := int64((secs - float64(whole)) * 1e9)
	return time.Unix(whole, nanos), true
}

// PendingReaction is a reaction scheduled to fire after a delay.
type PendingReaction struct {
	ID        string
	Channel   string
	MessageID string
	Rule      Rule
	FireAt    time.Time
}

// ReactionSource tells how a reaction was requested.
type ReactionSource string

// Supported reaction sources.
const (
	SourceAuto   ReactionSource = "auto"
	SourceManual ReactionSource = "manual"
)

// ReactionRecord is a log entry for an attempted reaction.
type ReactionRecord struct {
	ID        int64          `json:"id,omitempty"`
	Channel   string         `json:"channel"`
	MessageID string         `json:"message_id"`
	Emoji     string         `json:"emoji"`
	Rule      string         `json:"rule,omitempty"`
	Source    ReactionSource `json:"source"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// State is the lifecycle state of an auto-stamper session.
type State string

// Stamper states.
const (
	StateIdle         State = "idle"
	StateInitializing State = "initializing"
	StatePolling      State = "polling"
)

// Status summarises the auto-stamper for the control surface.
type Status struct {
	Active    bool  `json:"active"`
	State     State `json:"state"`
	Channels  int   `json:"channels"`
	Pending   int   `json:"pending"`
	Processed int   `json:"processed"`
}
