package bot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ShotaNagafuchi/slack-stamp-mask/internal/control"
	"github.com/ShotaNagafuchi/slack-stamp-mask/internal/model"
	"github.com/ShotaNagafuchi/slack-stamp-mask/internal/slackapi"
)

const (
	statusActive = "on"
	statusIdle   = "off"
)

// FormatStatus formats the auto-stamp status for display.
func FormatStatus(st model.Status) string {
	mode := statusIdle
	if st.Active {
		mode = statusActive
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Auto mode: %s (%s)\n", mode, st.State)
	if st.Active {
		fmt.Fprintf(&b, "Channels watched: %d\n", st.Channels)
		fmt.Fprintf(&b, "Pending reactions: %d\n", st.Pending)
		fmt.Fprintf(&b, "Messages matched: %d\n", st.Processed)
	}
	return b.String()
}

// FormatHistory formats reaction log entries, newest first.
func FormatHistory(recs []model.ReactionRecord) string {
	if len(recs) == 0 {
		return "No reactions yet."
	}
	var b strings.Builder
	b.WriteString("Recent reactions:\n")
	for _, r := range recs {
		fmt.Fprintf(&b, "\n%s :%s: %s/%s [%s]", r.CreatedAt.Format("2006-01-02 15:04 UTC"), r.Emoji, r.Channel, r.MessageID, sourceLabel(r))
		if r.Error != "" {
			fmt.Fprintf(&b, "\n   failed: %s", r.Error)
		}
	}
	return b.String()
}

// ErrorText turns a controller error into a message fit for the user.
func ErrorText(err error) string {
	var (
		vErr    *control.ValidationError
		authErr *slackapi.AuthError
		apiErr  *slackapi.APIError
		netErr  *slackapi.NetworkError
	)
	switch {
	case errors.As(err, &vErr):
		return vErr.Error()
	case errors.As(err, &authErr):
		return authErr.Error()
	case errors.As(err, &apiErr):
		return apiErr.Error()
	case errors.As(err, &netErr):
		return netErr.Error()
	default:
		return err.Error()
	}
}

func sourceLabel(r model.ReactionRecord) string {
	if r.Rule != "" {
		return fmt.Sprintf("%s, %s", r.Source, r.Rule)
	}
	return string(r.Source)
}
