package control

import (
	"regexp"
	"strings"
)

var (
	channelRe   = regexp.MustCompile(`^[CGD][A-Z0-9]{8,}$`)
	timestampRe = regexp.MustCompile(`^\d{10}\.\d{6}$`)
	emojiRe     = regexp.MustCompile(`^[a-z0-9_+'-]+$`)
)

// ValidationError reports malformed user input for a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ReactionRequest is a one-shot reaction request. Token may be empty to
// use the stored token.
type ReactionRequest struct {
	Channel   string `json:"channel"`
	Timestamp string `json:"timestamp"`
	Emoji     string `json:"emoji"`
	Token     string `json:"token,omitempty"`
}

// Sanitize trims every field, lower-cases the emoji and strips its colons.
func (r ReactionRequest) Sanitize() ReactionRequest {
	return ReactionRequest{
		Channel:   strings.TrimSpace(r.Channel),
		Timestamp: strings.TrimSpace(r.Timestamp),
		Emoji:     strings.Trim(strings.ToLower(strings.TrimSpace(r.Emoji)), ":"),
		Token:     strings.TrimSpace(r.Token),
	}
}

// Validate checks a sanitized request. The token is checked only when present.
func (r ReactionRequest) Validate() error {
	switch {
	case r.Channel == "":
		return &ValidationError{Field: "channel", Message: "Channel ID is required"}
	case !channelRe.MatchString(r.Channel):
		return &ValidationError{Field: "channel", Message: `Channel ID must start with "C", "G" or "D" followed by uppercase letters and digits`}
	case r.Timestamp == "":
		return &ValidationError{Field: "timestamp", Message: "Message timestamp is required"}
	case !timestampRe.MatchString(r.Timestamp):
		return &ValidationError{Field: "timestamp", Message: "Timestamp must be in format: 1234567890.123456"}
	case r.Emoji == "":
		return &ValidationError{Field: "emoji", Message: "Emoji name is required"}
	case !emojiRe.MatchString(r.Emoji):
		return &ValidationError{Field: "emoji", Message: "Emoji name can only contain letters, numbers, underscores, apostrophes, plus and minus signs"}
	}
	if r.Token != "" {
		return ValidateToken(r.Token)
	}
	return nil
}

// ValidateToken checks the token shape without calling Slack.
func ValidateToken(token string) error {
	if token == "" {
		return &ValidationError{Field: "token", Message: "Slack token is required"}
	}
	if !strings.HasPrefix(token, "xox") {
		return &ValidationError{Field: "token", Message: `Slack token must start with "xox"`}
	}
	return nil
}
