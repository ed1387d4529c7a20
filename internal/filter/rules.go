package filter

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ShotaNagafuchi/slack-stamp-mask/internal/model"
)

// DefaultRules returns the built-in rule set.
func DefaultRules() []model.Rule {
	return []model.Rule{
		{
			Name:     "attention",
			Keywords: []string{"@all", "@channel", "@here"},
			Emojis:   []string{"eyes", "alert", "loudspeaker", "warning", "bell"},
		},
		{
			Name:     "positive",
			Keywords: []string{"お疲れ様", "助かりました", "ありがとう", "thanks", "thank you", "good job", "素晴らしい", "完璧"},
			Emojis:   []string{"clap", "pray", "thumbsup", "heart", "smile", "tada", "100"},
		},
	}
}

type rulesFile struct {
	Rules []model.Rule `yaml:"rules"`
}

// LoadRules reads a YAML rule file. An empty path returns DefaultRules.
//
//	rules:
//	  - name: attention
//	    keywords: ["@here"]
//	    emojis: [eyes]
func LoadRules(path string) ([]model.Rule, error) {
	if path == "" {
		return DefaultRules(), nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes and validates a YAML rule document.
func ParseRules(data []byte) ([]model.Rule, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("rules file defines no rules")
	}
	if err := ValidateRules(f.Rules); err != nil {
		return nil, err
	}
	return f.Rules, nil
}

// ValidateRules checks that every rule is named and has keywords and emojis.
func ValidateRules(rules []model.Rule) error {
	seen := make(map[string]bool, len(rules))
	for i, r := range rules {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return fmt.Errorf("rule #%d: name is required", i+1)
		}
		if seen[name] {
			return fmt.Errorf("rule %q: duplicate name", name)
		}
		seen[name] = true
		if len(r.Keywords) == 0 {
			return fmt.Errorf("rule %q: at least one keyword is required", name)
		}
		if len(r.Emojis) == 0 {
			return fmt.Errorf("rule %q: at least one emoji is required", name)
		}
	}
	return nil
}
