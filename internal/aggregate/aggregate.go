// Package aggregate merges collector output into one size-bounded context
// bundle. All caps are fixed named constants so prompt size stays
// predictable; ranking inside each cap is deterministic.
package aggregate

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/planbot/pkg/models"
)

// Size caps applied when merging collector output into a bundle.
const (
	MaxImages       = 4  // total image parts per prompt
	MaxIssueImages  = 2  // from the issue's own attachments
	MaxParentImages = 2  // from the parent's attachments
	MaxPRFiles      = 15 // per pull request, largest changes first
	MaxPRComments   = 10 // per pull request, most recent first
	MaxCommits      = 10 // most recent commits kept

	MaxLinkedPerType = 5 // linked issues kept per relation type

	ReadmeCharBudget     = 2000 // README excerpt length
	ParentDescCharBudget = 1000 // inherited parent description length
)

// Config tunes the multi-category heuristic.
type Config struct {
	MultiCategoryThreshold int
}

// DefaultConfig returns the stock aggregator thresholds.
func DefaultConfig() Config {
	return Config{MultiCategoryThreshold: 3}
}

// categoryMarkers maps a test-concern category to the keywords that signal
// it in issue text. The multi-category flag fires when the issue spans
// several of these, hinting the prompt toward a larger plan.
var categoryMarkers = map[string][]string{
	"security":    {"auth", "permission", "role", "token", "security", "credential"},
	"validation":  {"valid", "required field", "format", "input", "sanitiz"},
	"boundary":    {"limit", "maximum", "minimum", "boundary", "threshold", "quota"},
	"integration": {"api", "webhook", "integration", "third-party", "sync"},
	"ui":          {"screen", "button", "page", "layout", "display", "modal"},
	"data":        {"database", "migration", "record", "storage", "export"},
	"performance": {"performance", "latency", "concurrent", "load", "timeout"},
}

// Merge folds collector partials into a bundle in fixed source order:
// development, linked issues, parent, design, repo doc. Nil partials are
// skipped; a later partial never overrides an earlier one for the same
// field.
func Merge(issue models.Issue, testing models.TestingContext, partials []*models.PartialContext, cfg Config) models.ContextBundle {
	bundle := models.ContextBundle{Issue: issue, Testing: testing}

	for _, p := range partials {
		if p == nil {
			continue
		}
		if p.Development != nil && bundle.Development == nil {
			bundle.Development = capDevelopment(p.Development)
			bundle.CollectorNotes = append(bundle.CollectorNotes, "development")
		}
		if len(p.Linked) > 0 && bundle.Linked == nil {
			bundle.Linked = capLinked(p.Linked)
			bundle.CollectorNotes = append(bundle.CollectorNotes, "linked_issues")
		}
		if p.Parent != nil && bundle.Parent == nil {
			bundle.Parent = capParent(p.Parent)
			bundle.CollectorNotes = append(bundle.CollectorNotes, "parent")
		}
		if p.Design != nil && bundle.Design == nil {
			bundle.Design = p.Design
			bundle.CollectorNotes = append(bundle.CollectorNotes, "design")
		}
		if p.RepoDoc != "" && bundle.RepoDoc == "" {
			bundle.RepoDoc = truncate(p.RepoDoc, ReadmeCharBudget)
			bundle.CollectorNotes = append(bundle.CollectorNotes, "repo_doc")
		}
	}

	bundle.Images = mergeImages(issue, bundle.Parent)

	threshold := cfg.MultiCategoryThreshold
	if threshold <= 0 {
		threshold = DefaultConfig().MultiCategoryThreshold
	}
	bundle.MultiCategory = countCategories(issue.Description+" "+testing.SpecialInstructions) >= threshold

	log.Debug().Strs("sources", bundle.CollectorNotes).Bool("multi_category", bundle.MultiCategory).
		Int("images", len(bundle.Images)).Msg("aggregated context bundle")

	return bundle
}

// capDevelopment bounds commits, and per PR its files and comments. Files
// rank by change size descending with filename as the tiebreaker; comments
// keep the most recent first. Sorting copies nothing the caller still owns;
// collector output is handed over here.
func capDevelopment(dev *models.DevelopmentActivity) *models.DevelopmentActivity {
	if len(dev.Commits) > MaxCommits {
		sort.SliceStable(dev.Commits, func(i, j int) bool {
			return dev.Commits[i].Date.After(dev.Commits[j].Date)
		})
		dev.Commits = dev.Commits[:MaxCommits]
	}

	for i := range dev.PullRequests {
		pr := &dev.PullRequests[i]

		sort.SliceStable(pr.Files, func(a, b int) bool {
			if pr.Files[a].Changes != pr.Files[b].Changes {
				return pr.Files[a].Changes > pr.Files[b].Changes
			}
			return pr.Files[a].Filename < pr.Files[b].Filename
		})
		if len(pr.Files) > MaxPRFiles {
			pr.Files = pr.Files[:MaxPRFiles]
		}

		sort.SliceStable(pr.Comments, func(a, b int) bool {
			return pr.Comments[a].CreatedAt.After(pr.Comments[b].CreatedAt)
		})
		if len(pr.Comments) > MaxPRComments {
			pr.Comments = pr.Comments[:MaxPRComments]
		}
	}

	return dev
}

// capLinked keeps at most MaxLinkedPerType issues of each relation type,
// preserving the collector's order within each type.
func capLinked(linked []models.LinkedIssue) []models.LinkedIssue {
	perType := make(map[string]int)
	capped := make([]models.LinkedIssue, 0, len(linked))
	for _, l := range linked {
		if perType[l.Relation] >= MaxLinkedPerType {
			continue
		}
		perType[l.Relation]++
		capped = append(capped, l)
	}
	return capped
}

func capParent(parent *models.ParentContext) *models.ParentContext {
	parent.Description = truncate(parent.Description, ParentDescCharBudget)
	return parent
}

// mergeImages picks up to two image attachments from the issue and two from
// the parent, issue first.
func mergeImages(issue models.Issue, parent *models.ParentContext) []models.Attachment {
	var images []models.Attachment

	taken := 0
	for _, a := range issue.Attachments {
		if !strings.HasPrefix(a.MimeType, "image/") {
			continue
		}
		images = append(images, a)
		taken++
		if taken >= MaxIssueImages {
			break
		}
	}

	if parent != nil {
		taken = 0
		for _, a := range parent.Attachments {
			if !strings.HasPrefix(a.MimeType, "image/") {
				continue
			}
			images = append(images, a)
			taken++
			if taken >= MaxParentImages {
				break
			}
		}
	}

	if len(images) > MaxImages {
		images = images[:MaxImages]
	}
	return images
}

func countCategories(text string) int {
	lower := strings.ToLower(text)
	count := 0
	for _, markers := range categoryMarkers {
		for _, m := range markers {
			if strings.Contains(lower, m) {
				count++
				break
			}
		}
	}
	return count
}

// truncate cuts s to at most max bytes without splitting a multi-byte
// rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
