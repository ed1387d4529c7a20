package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ShotaNagafuchi/slack-stamp-mask/internal/filter"
	"github.com/ShotaNagafuchi/slack-stamp-mask/internal/model"
	"github.com/ShotaNagafuchi/slack-stamp-mask/internal/slackapi"
)

var testNow = time.Unix(1700000000, 0)

const selfID = "USELF"

type reaction struct {
	Channel string
	TS      string
	Emoji   string
}

type fakeAPI struct {
	mu          sync.Mutex
	identifyErr error
	listErr     error
	channels    []string
	history     map[string][]model.Message
	fetchErr    map[string]error
	reactions   []reaction
	reacted     chan reaction
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		history:  make(map[string][]model.Message),
		fetchErr: make(map[string]error),
		reacted:  make(chan reaction, 16),
	}
}

func (f *fakeAPI) Identify(_ context.Context, _ string) (slackapi.Identity, error) {
	if f.identifyErr != nil {
		return slackapi.Identity{}, f.identifyErr
	}
	return slackapi.Identity{UserID: selfID, User: "stamper", TeamID: "T1", Team: "team"}, nil
}

func (f *fakeAPI) ListChannels(_ context.Context, _ string) ([]string, error) {
	return f.channels, f.listErr
}

func (f *fakeAPI) FetchRecent(_ context.Context, _, channel string, _ int) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fetchErr[channel]; err != nil {
		return nil, err
	}
	return f.history[channel], nil
}

func (f *fakeAPI) AddReaction(_ context.Context, _, channel, ts, emoji string) error {
	r := reaction{Channel: channel, TS: ts, Emoji: emoji}
	f.mu.Lock()
	f.reactions = append(f.reactions, r)
	f.mu.Unlock()
	f.reacted <- r
	return nil
}

func (f *fakeAPI) getReactions() []reaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]reaction, len(f.reactions))
	copy(cp, f.reactions)
	return cp
}

type mockRecorder struct {
	mu   sync.Mutex
	recs []model.ReactionRecord
}

func (m *mockRecorder) RecordReaction(_ context.Context, rec *model.ReactionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, *rec)
	return nil
}

func (m *mockRecorder) get() []model.ReactionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]model.ReactionRecord, len(m.recs))
	copy(cp, m.recs)
	return cp
}

func msgAt(channel string, at time.Time, author, text string) model.Message {
	return model.Message{
		ID:       fmt.Sprintf("%d.%06d", at.Unix(), at.Nanosecond()/1000),
		Channel:  channel,
		AuthorID: author,
		Text:     text,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStamper(t *testing.T, api API, rec Recorder, opts Options) *Stamper {
	t.Helper()
	if opts.Now == nil {
		opts.Now = func() time.Time { return testNow }
	}
	if opts.Seed == 0 {
		opts.Seed = 42
	}
	st := New(api, rec, "xoxp-test", opts, testLogger())
	t.Cleanup(st.cancelPending)
	return st
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPollSchedulesMatchingMessages(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.channels = []string{"C1"}
	api.history["C1"] = []model.Message{
		msgAt("C1", testNow.Add(-time.Minute), "U2", "@channel please review"),
		msgAt("C1", testNow.Add(-2*time.Minute), selfID, "@here from myself"),
		msgAt("C1", testNow.Add(-2*time.Hour), "U2", "thanks, old news"),
		msgAt("C1", testNow.Add(-3*time.Minute), "U3", "lunch?"),
	}

	st := newTestStamper(t, api, nil, Options{})
	if err := st.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	st.poll(ctx)

	want := model.Status{State: model.StateInitializing, Channels: 1, Pending: 1, Processed: 1}
	if diff := cmp.Diff(want, st.Status()); diff != "" {
		t.Errorf("Status() mismatch (-want +got):\n%s", diff)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	for _, p := range st.pending {
		if diff := cmp.Diff("attention", p.Rule.Name); diff != "" {
			t.Errorf("rule mismatch (-want +got):\n%s", diff)
		}
		delay := p.FireAt.Sub(testNow)
		if delay < 5*time.Minute || delay > 15*time.Minute {
			t.Errorf("delay %v outside [5m, 15m]", delay)
		}
	}
}

func TestPollNeverSchedulesTwice(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.channels = []string{"C1"}
	api.history["C1"] = []model.Message{
		msgAt("C1", testNow.Add(-time.Minute), "U2", "Thank you so much"),
	}

	st := newTestStamper(t, api, nil, Options{})
	if err := st.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	for range 3 {
		st.poll(ctx)
	}

	if diff := cmp.Diff(1, st.Status().Pending); diff != "" {
		t.Errorf("pending mismatch (-want +got):\n%s", diff)
	}
}

func TestPollIsolatesChannelFailures(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.channels = []string{"C1", "C2"}
	api.fetchErr["C1"] = &slackapi.NetworkError{Method: "conversations.history", Err: io.ErrUnexpectedEOF}
	api.history["C2"] = []model.Message{
		msgAt("C2", testNow.Add(-time.Minute), "U2", "good job everyone"),
	}

	st := newTestStamper(t, api, nil, Options{})
	if err := st.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	st.poll(ctx)

	if diff := cmp.Diff(1, st.Status().Pending); diff != "" {
		t.Errorf("pending mismatch (-want +got):\n%s", diff)
	}
}

func TestDelayBounds(t *testing.T) {
	tests := []struct {
		name   string
		min    time.Duration
		max    time.Duration
		wantLo int64
		wantHi int64
	}{
		{name: "defaults", wantLo: 300000, wantHi: 900000},
		{name: "equal bounds", min: 2 * time.Second, max: 2 * time.Second, wantLo: 2000, wantHi: 2000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newTestStamper(t, newFakeAPI(), nil, Options{MinDelay: tt.min, MaxDelay: tt.max})
			for range 5000 {
				st.mu.Lock()
				ms := st.delayLocked().Milliseconds()
				st.mu.Unlock()
				if ms < tt.wantLo || ms > tt.wantHi {
					t.Fatalf("delay %dms outside [%d, %d]", ms, tt.wantLo, tt.wantHi)
				}
			}
		})
	}
}

func TestFireReachesEveryEmoji(t *testing.T) {
	api := newFakeAPI()
	api.reacted = make(chan reaction, 1000)
	st := newTestStamper(t, api, nil, Options{})

	rule := filter.DefaultRules()[1]
	for i := range 500 {
		id := fmt.Sprintf("p%d", i)
		st.mu.Lock()
		st.pending[id] = &pending{PendingReaction: model.PendingReaction{
			ID: id, Channel: "C1", MessageID: "1700000000.000001", Rule: rule,
		}}
		st.mu.Unlock()
		st.inflight.Add(1)
		st.fire(id)
	}

	seen := make(map[string]bool)
	for _, r := range api.getReactions() {
		seen[r.Emoji] = true
	}
	for _, e := range rule.Emojis {
		if !seen[e] {
			t.Errorf("emoji %q never chosen", e)
		}
	}
	if len(seen) != len(rule.Emojis) {
		t.Errorf("chose %d distinct emojis, want %d", len(seen), len(rule.Emojis))
	}
}

func TestRunFiresAndRecords(t *testing.T) {
	api := newFakeAPI()
	api.channels = []string{"C1"}
	msg := msgAt("C1", testNow.Add(-time.Minute), "U2", "@here deploy done")
	api.history["C1"] = []model.Message{msg}
	rec := &mockRecorder{}

	st := newTestStamper(t, api, rec, Options{
		MinDelay:     time.Millisecond,
		MaxDelay:     time.Millisecond,
		PollInterval: time.Hour,
	})
	ctx, cancel := context.WithCancel(context.Background())
	if err := st.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		st.Run(ctx)
	}()

	select {
	case r := <-api.reacted:
		if diff := cmp.Diff("C1", r.Channel); diff != "" {
			t.Errorf("channel mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(msg.ID, r.TS); diff != "" {
			t.Errorf("ts mismatch (-want +got):\n%s", diff)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reaction never fired")
	}

	cancel()
	<-done

	recs := rec.get()
	if len(recs) != 1 {
		t.Fatalf("recorded %d reactions, want 1", len(recs))
	}
	want := model.ReactionRecord{
		Channel:   "C1",
		MessageID: msg.ID,
		Emoji:     recs[0].Emoji,
		Rule:      "attention",
		Source:    model.SourceAuto,
	}
	if diff := cmp.Diff(want, recs[0]); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(model.StateIdle, st.Status().State); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}
}

func TestRunCancelsPendingOnExit(t *testing.T) {
	api := newFakeAPI()
	api.channels = []string{"C1"}
	api.history["C1"] = []model.Message{
		msgAt("C1", testNow.Add(-time.Minute), "U2", "@channel heads up"),
	}

	st := newTestStamper(t, api, nil, Options{PollInterval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	if err := st.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		st.Run(ctx)
	}()

	waitFor(t, "pending reaction", func() bool { return st.Status().Pending == 1 })
	cancel()
	<-done

	if diff := cmp.Diff(0, st.Status().Pending); diff != "" {
		t.Errorf("pending mismatch (-want +got):\n%s", diff)
	}
	if got := api.getReactions(); len(got) != 0 {
		t.Errorf("expected no reactions, got %v", got)
	}
}

// slowReactAPI reports success only after the stamper cancelled its
// reaction context, like a request Slack accepted while Stop was running.
type slowReactAPI struct {
	*fakeAPI
	entered chan struct{}
}

func (a *slowReactAPI) AddReaction(ctx context.Context, token, channel, ts, emoji string) error {
	close(a.entered)
	<-ctx.Done()
	return a.fakeAPI.AddReaction(context.Background(), token, channel, ts, emoji)
}

type ctxRecorder struct {
	mockRecorder
}

func (c *ctxRecorder) RecordReaction(ctx context.Context, rec *model.ReactionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.mockRecorder.RecordReaction(ctx, rec)
}

func TestRunRecordsReactionFinishingDuringStop(t *testing.T) {
	api := &slowReactAPI{fakeAPI: newFakeAPI(), entered: make(chan struct{})}
	api.channels = []string{"C1"}
	api.history["C1"] = []model.Message{
		msgAt("C1", testNow.Add(-time.Minute), "U2", "@here release is out"),
	}
	rec := &ctxRecorder{}

	st := newTestStamper(t, api, rec, Options{
		MinDelay:     time.Millisecond,
		MaxDelay:     time.Millisecond,
		PollInterval: time.Hour,
	})
	ctx, cancel := context.WithCancel(context.Background())
	if err := st.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		st.Run(ctx)
	}()

	select {
	case <-api.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("reaction never fired")
	}
	cancel()
	<-done

	if diff := cmp.Diff(1, len(api.getReactions())); diff != "" {
		t.Errorf("reactions mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(1, len(rec.get())); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestInitFailureReturnsToIdle(t *testing.T) {
	tests := []struct {
		name     string
		identify error
		list     error
	}{
		{name: "auth", identify: &slackapi.AuthError{Method: "auth.test", Code: "invalid_auth"}},
		{name: "channels", list: &slackapi.APIError{Method: "conversations.list", Code: "missing_scope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI()
			api.identifyErr = tt.identify
			api.listErr = tt.list

			st := newTestStamper(t, api, nil, Options{})
			err := st.Init(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.identify != nil {
				var authErr *slackapi.AuthError
				if !errors.As(err, &authErr) {
					t.Errorf("expected *AuthError, got %T", err)
				}
			}
			if diff := cmp.Diff(model.StateIdle, st.Status().State); diff != "" {
				t.Errorf("state mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestInitTwice(t *testing.T) {
	api := newFakeAPI()
	st := newTestStamper(t, api, nil, Options{})
	if err := st.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := st.Init(context.Background()); !errors.Is(err, ErrNotIdle) {
		t.Errorf("second Init error = %v, want ErrNotIdle", err)
	}
}
