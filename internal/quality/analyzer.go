// Package quality scores issue descriptions for testability gaps: missing
// text, too little text, and absent acceptance criteria.
package quality

import (
	"fmt"
	"strings"

	"github.com/planbot/pkg/models"
)

// Config holds the heuristic thresholds. They were tuned by trial in
// production and are deliberately configuration, not constants.
type Config struct {
	MinChars int `koanf:"min_chars"`
	MinWords int `koanf:"min_words"`
}

// DefaultConfig returns the thresholds used when none are configured.
func DefaultConfig() Config {
	return Config{MinChars: 50, MinWords: 10}
}

// acceptance-criteria markers, matched case-insensitively.
var acMarkers = []string{
	"acceptance criteria",
	"ac:",
	"acceptance:",
	"should:",
	"must:",
	"given",
	"when",
	"then",
}

// verification-keyword markers.
var testMarkers = []string{
	"test", "verify", "validate", "ensure", "check", "expected", "behavior",
}

// issue types for which a missing acceptance-criteria marker is worth a
// warning.
var acRelevant = map[models.IssueType]bool{
	models.TypeStory: true,
	models.TypeBug:   true,
}

// Analyze scores a plain-text description. Deterministic: no randomness,
// no external calls.
func Analyze(description string, issueType models.IssueType, cfg Config) models.DescriptionQuality {
	text := strings.TrimSpace(description)
	if text == "" {
		return models.DescriptionQuality{
			HasDescription: false,
			IsWeak:         true,
			Warnings:       []string{"No description provided in the ticket"},
		}
	}

	charCount := len(text)
	wordCount := len(strings.Fields(text))
	lower := strings.ToLower(text)

	var warnings []string
	if charCount < cfg.MinChars {
		warnings = append(warnings, fmt.Sprintf(
			"Description is very short (%d characters). More detail may be needed for comprehensive test planning.", charCount))
	} else if wordCount < cfg.MinWords {
		warnings = append(warnings, fmt.Sprintf(
			"Description contains only %d words. Consider providing more context.", wordCount))
	}

	if charCount >= cfg.MinChars && acRelevant[issueType] && !containsAny(lower, acMarkers) {
		warnings = append(warnings,
			"No explicit acceptance criteria (AC) detected. You may need to provide testing context manually.")
	}

	if charCount >= cfg.MinChars && !containsAny(lower, testMarkers) {
		warnings = append(warnings,
			"No testing or validation keywords found. Consider what behaviors need verification.")
	}

	return models.DescriptionQuality{
		HasDescription: true,
		IsWeak:         len(warnings) > 0,
		Warnings:       warnings,
		CharCount:      charCount,
		WordCount:      wordCount,
	}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
