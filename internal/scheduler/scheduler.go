// Package scheduler runs the auto-stamp loop: it polls Slack channels,
// matches recent messages against rules and reacts after a random delay.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ShotaNagafuchi/slack-stamp-mask/internal/filter"
	"github.com/ShotaNagafuchi/slack-stamp-mask/internal/model"
	"github.com/ShotaNagafuchi/slack-stamp-mask/internal/slackapi"
)

// Defaults for Options fields left zero.
const (
	DefaultPollInterval = 60 * time.Second
	DefaultMinDelay     = 5 * time.Minute
	DefaultMaxDelay     = 15 * time.Minute
	DefaultHistoryLimit = 10
)

// ErrNotIdle is returned by Init when the stamper has already been started.
var ErrNotIdle = errors.New("stamper is not idle")

// API is the subset of the Slack client used by the stamper.
type API interface {
	Identify(ctx context.Context, token string) (slackapi.Identity, error)
	ListChannels(ctx context.Context, token string) ([]string, error)
	FetchRecent(ctx context.Context, token, channel string, limit int) ([]model.Message, error)
	AddReaction(ctx context.Context, token, channel, ts, emoji string) error
}

// Recorder persists the outcome of fired reactions.
type Recorder interface {
	RecordReaction(ctx context.Context, rec *model.ReactionRecord) error
}

// Options tunes a Stamper. Zero values fall back to the package defaults.
type Options struct {
	Rules        []model.Rule
	PollInterval time.Duration
	MinDelay     time.Duration
	MaxDelay     time.Duration
	MaxAge       time.Duration
	HistoryLimit int

	// Now and Seed are overridable for tests.
	Now  func() time.Time
	Seed uint64
}

func (o Options) withDefaults() Options {
	if o.Rules == nil {
		o.Rules = filter.DefaultRules()
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.MinDelay <= 0 {
		o.MinDelay = DefaultMinDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	if o.MaxDelay < o.MinDelay {
		o.MaxDelay = o.MinDelay
	}
	if o.MaxAge <= 0 {
		o.MaxAge = filter.DefaultMaxAge
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = DefaultHistoryLimit
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Seed == 0 {
		o.Seed = uint64(time.Now().UnixNano())
	}
	return o
}

type pending struct {
	model.PendingReaction
	timer *time.Timer
}

// Stamper is one auto-stamp session bound to a single token.
// It is not reusable: once Run returns, create a new Stamper.
type Stamper struct {
	api   API
	rec   Recorder
	token string
	opts  Options
	log   *slog.Logger

	fireCtx    context.Context
	fireCancel context.CancelFunc
	inflight   sync.WaitGroup

	mu        sync.Mutex
	state     model.State
	selfID    string
	channels  []string
	processed filter.ProcessedSet
	pending   map[string]*pending
	rng       *rand.Rand
}

// New creates an idle Stamper. rec may be nil.
func New(api API, rec Recorder, token string, opts Options, log *slog.Logger) *Stamper {
	opts = opts.withDefaults()
	fireCtx, fireCancel := context.WithCancel(context.Background())
	return &Stamper{
		api:        api,
		rec:        rec,
		token:      token,
		opts:       opts,
		log:        log,
		fireCtx:    fireCtx,
		fireCancel: fireCancel,
		state:      model.StateIdle,
		processed:  filter.NewProcessedSet(),
		pending:    make(map[string]*pending),
		rng:        rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
	}
}

// Init resolves the acting identity and the channel list.
// On failure the stamper returns to idle and nothing is scheduled.
func (s *Stamper) Init(ctx context.Context) error {
	s.mu.Lock()
	if s.state != model.StateIdle {
		s.mu.Unlock()
		return ErrNotIdle
	}
	s.state = model.StateInitializing
	s.mu.Unlock()

	id, err := s.api.Identify(ctx, s.token)
	if err != nil {
		s.setState(model.StateIdle)
		return fmt.Errorf("identify: %w", err)
	}

	channels, err := s.api.ListChannels(ctx, s.token)
	if err != nil {
		s.setState(model.StateIdle)
		return fmt.Errorf("list channels: %w", err)
	}

	s.mu.Lock()
	s.selfID = id.UserID
	s.channels = channels
	s.mu.Unlock()

	s.log.Info("stamper initialized", "user", id.User, "team", id.Team, "channels", len(channels))
	return nil
}

// Run polls once immediately and then every PollInterval until ctx is
// cancelled. On return every pending reaction has been cancelled and
// in-flight reactions have finished.
func (s *Stamper) Run(ctx context.Context) {
	s.setState(model.StatePolling)
	defer func() {
		s.cancelPending()
		s.fireCancel()
		s.inflight.Wait()
		s.setState(model.StateIdle)
		s.log.Info("stamper stopped")
	}()

	s.poll(ctx)

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

// Status reports the stamper counters. Active is left to the owner.
func (s *Stamper) Status() model.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.Status{
		State:     s.state,
		Channels:  len(s.channels),
		Pending:   len(s.pending),
		Processed: len(s.processed),
	}
}

func (s *Stamper) setState(st model.State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Stamper) poll(ctx context.Context) {
	s.mu.Lock()
	channels := s.channels
	s.mu.Unlock()

	scheduled := 0
	for _, ch := range channels {
		if ctx.Err() != nil {
			return
		}
		msgs, err := s.api.FetchRecent(ctx, s.token, ch, s.opts.HistoryLimit)
		if err != nil {
			s.log.Warn("fetch recent messages", "channel", ch, "error", err)
			continue
		}
		for _, msg := range msgs {
			if s.consider(msg) {
				scheduled++
			}
		}
	}

	if scheduled > 0 {
		s.log.Info("scheduled reactions", "count", scheduled)
	}
}

// consider marks a matching message processed and arms its reaction.
func (s *Stamper) consider(msg model.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !filter.ShouldProcess(msg, s.selfID, s.processed, s.opts.Now(), s.opts.MaxAge) {
		return false
	}
	rule := filter.Match(msg.Text, s.opts.Rules)
	if rule == nil || len(rule.Emojis) == 0 {
		return false
	}
	s.processed.Add(msg)

	delay := s.delayLocked()
	p := &pending{PendingReaction: model.PendingReaction{
		ID:        uuid.NewString(),
		Channel:   msg.Channel,
		MessageID: msg.ID,
		Rule:      *rule,
		FireAt:    s.opts.Now().Add(delay),
	}}
	s.pending[p.ID] = p
	s.inflight.Add(1)
	p.timer = time.AfterFunc(delay, func() { s.fire(p.ID) })

	s.log.Debug("reaction scheduled", "channel", msg.Channel, "ts", msg.ID, "rule", rule.Name, "delay", delay)
	return true
}

// delayLocked draws a delay uniformly from [MinDelay, MaxDelay] at
// millisecond granularity, both ends inclusive.
func (s *Stamper) delayLocked() time.Duration {
	lo := s.opts.MinDelay.Milliseconds()
	hi := s.opts.MaxDelay.Milliseconds()
	return time.Duration(lo+s.rng.Int64N(hi-lo+1)) * time.Millisecond
}

func (s *Stamper) fire(id string) {
	defer s.inflight.Done()

	s.mu.Lock()
	p, ok := s.pending[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.pending, id)
	emoji := p.Rule.Emojis[s.rng.IntN(len(p.Rule.Emojis))]
	s.mu.Unlock()

	rec := &model.ReactionRecord{
		Channel:   p.Channel,
		MessageID: p.MessageID,
		Emoji:     emoji,
		Rule:      p.Rule.Name,
		Source:    model.SourceAuto,
	}

	if err := s.api.AddReaction(s.fireCtx, s.token, p.Channel, p.MessageID, emoji); err != nil {
		s.log.Warn("add reaction", "channel", p.Channel, "ts", p.MessageID, "emoji", emoji, "error", err)
		rec.Error = err.Error()
	} else {
		s.log.Info("reaction added", "channel", p.Channel, "ts", p.MessageID, "emoji", emoji, "rule", p.Rule.Name)
	}

	if s.rec == nil {
		return
	}
	// Stop cancels fireCtx; a reaction Slack already accepted is still logged.
	if err := s.rec.RecordReaction(context.WithoutCancel(s.fireCtx), rec); err != nil {
		s.log.Error("record reaction", "channel", p.Channel, "ts", p.MessageID, "error", err)
	}
}

func (s *Stamper) cancelPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.pending {
		if p.timer.Stop() {
			s.inflight.Done()
		}
		delete(s.pending, id)
	}
}
