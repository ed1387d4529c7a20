package filter

import (
	"time"

	"github.com/ShotaNagafuchi/slack-stamp-mask/internal/model"
)

// DefaultMaxAge is how old a message may be and still trigger a reaction.
const DefaultMaxAge = time.Hour

// ProcessedSet tracks messages that already triggered a reaction.
// It is not safe for concurrent use.
type ProcessedSet map[string]struct{}

// NewProcessedSet returns an empty set.
func NewProcessedSet() ProcessedSet {
	return make(ProcessedSet)
}

// Add marks msg as processed.
func (p ProcessedSet) Add(msg model.Message) {
	p[msg.Key()] = struct{}{}
}

// Has reports whether msg was marked processed.
func (p ProcessedSet) Has(msg model.Message) bool {
	_, ok := p[msg.Key()]
	return ok
}

// ShouldProcess reports whether msg is eligible for rule matching.
// It rejects messages already processed, messages written by selfID and
// messages posted more than maxAge before now. A non-positive maxAge
// falls back to DefaultMaxAge.
func ShouldProcess(msg model.Message, selfID string, processed ProcessedSet, now time.Time, maxAge time.Duration) bool {
	if processed.Has(msg) {
		return false
	}
	if selfID != "" && msg.AuthorID == selfID {
		return false
	}

	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	posted, ok := msg.Time()
	if !ok {
		return false
	}
	return !posted.Before(now.Add(-maxAge))
}
