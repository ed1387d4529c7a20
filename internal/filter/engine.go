// Package filter implements rule matching and the dedup/recency checks
// applied to channel messages before a reaction is scheduled.
package filter

import (
	"strings"

	"github.com/ShotaNagafuchi/slack-stamp-mask/internal/model"
)

// Match returns the first rule, in declaration order, that has at least one
// keyword contained in text. Matching is case-insensitive.
// Returns nil for empty text or when no rule matches.
func Match(text string, rules []model.Rule) *model.Rule {
	if text == "" {
		return nil
	}

	lower := strings.ToLower(text)
	for i := range rules {
		for _, kw := range rules[i].Keywords {
			if kw == "" {
				continue
			}
			if strings.Contains(lower, strings.ToLower(kw)) {
				return &rules[i]
			}
		}
	}
	return nil
}
