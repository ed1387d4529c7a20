package slackapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/slack-go/slack"
)

// CodeRateLimited is reported when Slack answers with HTTP 429.
const CodeRateLimited = "rate_limited"

var errorMessages = map[string]string{
	"invalid_auth":                        "Invalid OAuth token. Please check your access token.",
	"channel_not_found":                   "Channel not found. Please verify the Channel ID.",
	"message_not_found":                   "Message not found. Please check the timestamp.",
	"invalid_name":                        "Invalid emoji name. Please use a valid emoji name.",
	"already_reacted":                     "You have already reacted to this message with this emoji.",
	"no_reaction":                         "Unable to add reaction. The emoji might not exist in your workspace.",
	"rate_limited":                        "Rate limited. Please wait a moment before trying again.",
	"not_in_channel":                      "You are not a member of this channel.",
	"thread_locked":                       "This thread is locked and reactions cannot be added.",
	"compliance_exports_prevent_deletion": "Cannot add reaction due to compliance export restrictions.",
	"ekm_access_denied":                   "Access denied due to enterprise key management restrictions.",
	"not_authed":                          "No authentication token provided.",
	"account_inactive":                    "Authentication token is for a deleted user or workspace.",
	"token_revoked":                       "Authentication token has been revoked.",
	"invalid_arg_name":                    "The method was passed an argument whose name falls outside the bounds of accepted or expected values.",
	"invalid_arguments":                   "The method was either called with invalid arguments or some detail about the arguments passed is invalid.",
	"invalid_array_arg":                   "The method was passed an array as an argument.",
	"invalid_charset":                     "The method was called via a POST request, but the charset specified in the Content-Type header was invalid.",
	"invalid_form_data":                   "The method was called via a POST request with Content-Type application/x-www-form-urlencoded or multipart/form-data, but the form data was either missing or syntactically invalid.",
	"invalid_post_type":                   "The method was called via a POST request, but the specified Content-Type was invalid.",
	"missing_post_type":                   "The method was called via a POST request and included a data payload, but the request did not include a Content-Type header.",
	"team_added_to_org":                   "The workspace associated with your request is currently undergoing migration to an Enterprise Grid organization.",
	"request_timeout":                     "The method was called via a POST request, but the POST data was either missing or truncated.",
	"fatal_error":                         "The server could not complete your operation(s) without encountering a catastrophic error.",
	"internal_error":                      "The server could not complete your operation(s) without encountering an error, likely due to a transient issue on our end.",
}

var authCodes = map[string]bool{
	"invalid_auth":     true,
	"not_authed":       true,
	"account_inactive": true,
	"token_revoked":    true,
	"token_expired":    true,
}

// ErrorMessage maps a Slack error code to a human-readable message.
func ErrorMessage(code string) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return "API error: " + code
}

// AuthError reports a missing, invalid or revoked token.
type AuthError struct {
	Method string
	Code   string
}

func (e *AuthError) Error() string {
	return ErrorMessage(e.Code)
}

// APIError reports a not-ok Slack response for a reason other than auth.
type APIError struct {
	Method     string
	Code       string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return ErrorMessage(e.Code)
}

// NetworkError reports a transport-level failure.
type NetworkError struct {
	Method string
	Err    error
}

func (e *NetworkError) Error() string {
	return "Unable to connect to Slack API. Please check your network connection."
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// classify converts a slack-go error into the package taxonomy.
// Context cancellation is returned unchanged.
func classify(method string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var remote slack.SlackErrorResponse
	if errors.As(err, &remote) {
		if authCodes[remote.Err] {
			return &AuthError{Method: method, Code: remote.Err}
		}
		return &APIError{Method: method, Code: remote.Err}
	}

	var limited *slack.RateLimitedError
	if errors.As(err, &limited) {
		return &APIError{Method: method, Code: CodeRateLimited, RetryAfter: limited.RetryAfter}
	}

	var status slack.StatusCodeError
	if errors.As(err, &status) {
		return &APIError{Method: method, Code: fmt.Sprintf("http_%d", status.Code)}
	}

	return &NetworkError{Method: method, Err: err}
}

// IsRemote reports whether err is a not-ok answer from Slack (auth or API).
func IsRemote(err error) bool {
	var authErr *AuthError
	var apiErr *APIError
	return errors.As(err, &authErr) || errors.As(err, &apiErr)
}
