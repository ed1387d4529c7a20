package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ShotaNagafuchi/slack-stamp-mask/internal/control"
)

// ParseAutoArgs parses "/auto on [token]" and "/auto off".
func ParseAutoArgs(args string) (on bool, token string, err error) {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		return false, "", fmt.Errorf("usage: /auto on [token] | /auto off")
	}

	switch strings.ToLower(parts[0]) {
	case "on":
		if len(parts) > 2 {
			return false, "", fmt.Errorf("usage: /auto on [token]")
		}
		if len(parts) == 2 {
			token = parts[1]
		}
		return true, token, nil
	case "off":
		if len(parts) > 1 {
			return false, "", fmt.Errorf("usage: /auto off")
		}
		return false, "", nil
	default:
		return false, "", fmt.Errorf("usage: /auto on [token] | /auto off")
	}
}

// ParseReactArgs parses "<channel> <ts> <emoji>" into a reaction request.
// Field validation is left to the controller.
func ParseReactArgs(args string) (control.ReactionRequest, error) {
	parts := strings.Fields(args)
	if len(parts) != 3 {
		return control.ReactionRequest{}, fmt.Errorf("usage: /react <channel> <ts> <emoji>")
	}
	return control.ReactionRequest{
		Channel:   parts[0],
		Timestamp: parts[1],
		Emoji:     parts[2],
	}, nil
}

// ParseLimitArg extracts an optional positive count, capped at upper.
func ParseLimitArg(args string, def, upper int) (int, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.Fields(s)[0])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("count must be a positive number")
	}
	if n > upper {
		n = upper
	}
	return n, nil
}
