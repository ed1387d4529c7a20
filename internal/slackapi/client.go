// Package slackapi wraps the Slack Web API methods used for reacting to messages.
package slackapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"golang.org/x/time/rate"

	"github.com/ShotaNagafuchi/slack-stamp-mask/internal/model"
)

const (
	// DefaultBaseURL is the Slack Web API root.
	DefaultBaseURL = "https://slack.com/api/"
	// DefaultHistoryLimit is the page size used when fetching channel history.
	DefaultHistoryLimit = 10
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Identity is the user a token belongs to.
type Identity struct {
	UserID string
	User   string
	TeamID string
	Team   string
}

// Client calls the Slack Web API on behalf of a bearer token.
// Calls are never retried.
type Client struct {
	http    HTTPClient
	baseURL string
	limiter *rate.Limiter
	log     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root (used by tests).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if !strings.HasSuffix(u, "/") {
			u += "/"
		}
		c.baseURL = u
	}
}

// WithLimiter replaces the default one-call-per-second limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// New creates a Client using the given HTTP client.
func New(httpClient HTTPClient, log *slog.Logger, opts ...Option) *Client {
	c := &Client{
		http:    httpClient,
		baseURL: DefaultBaseURL,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		log:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) api(token string) *slack.Client {
	return slack.New(token,
		slack.OptionHTTPClient(c.http),
		slack.OptionAPIURL(c.baseURL),
	)
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for rate limiter: %w", err)
	}
	return nil
}

// Identify resolves the user behind token. Any not-ok answer is an *AuthError.
func (c *Client) Identify(ctx context.Context, token string) (Identity, error) {
	if err := c.wait(ctx); err != nil {
		return Identity{}, err
	}

	resp, err := c.api(token).AuthTestContext(ctx)
	if err != nil {
		err = classify("auth.test", err)
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return Identity{}, &AuthError{Method: apiErr.Method, Code: apiErr.Code}
		}
		return Identity{}, err
	}

	return Identity{
		UserID: resp.UserID,
		User:   resp.User,
		TeamID: resp.TeamID,
		Team:   resp.Team,
	}, nil
}

// ListChannels returns the ids of all non-archived public and private
// channels visible to token, following pagination cursors.
func (c *Client) ListChannels(ctx context.Context, token string) ([]string, error) {
	api := c.api(token)
	params := &slack.GetConversationsParameters{
		Types:           []string{"public_channel", "private_channel"},
		ExcludeArchived: true,
		Limit:           200,
	}

	seen := make(map[string]bool)
	var ids []string
	for {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}

		channels, cursor, err := api.GetConversationsContext(ctx, params)
		if err != nil {
			return nil, classify("conversations.list", err)
		}
		for _, ch := range channels {
			if ch.ID == "" || seen[ch.ID] {
				continue
			}
			seen[ch.ID] = true
			ids = append(ids, ch.ID)
		}

		if cursor == "" {
			return ids, nil
		}
		params.Cursor = cursor
	}
}

// FetchRecent returns up to limit of the most recent messages in channel,
// newest first. A not-ok answer from Slack is logged and yields an empty
// slice; only transport failures are returned as errors.
func (c *Client) FetchRecent(ctx context.Context, token, channel string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.api(token).GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channel,
		Limit:     limit,
	})
	if err != nil {
		err = classify("conversations.history", err)
		if IsRemote(err) {
			c.log.Warn("fetch history", "channel", channel, "error", err)
			return nil, nil
		}
		return nil, err
	}

	msgs := make([]model.Message, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		msgs = append(msgs, model.Message{
			ID:       m.Timestamp,
			Channel:  channel,
			AuthorID: m.User,
			Text:     m.Text,
		})
	}
	return msgs, nil
}

// AddReaction reacts to the message identified by channel and ts.
// Surrounding colons are stripped from emoji (":tada:" -> "tada").
func (c *Client) AddReaction(ctx context.Context, token, channel, ts, emoji string) error {
	name := strings.Trim(strings.TrimSpace(emoji), ":")
	if name == "" {
		return &APIError{Method: "reactions.add", Code: "invalid_name"}
	}
	if err := c.wait(ctx); err != nil {
		return err
	}

	err := c.api(token).AddReactionContext(ctx, name, slack.NewRefToMessage(channel, ts))
	return classify("reactions.add", err)
}
