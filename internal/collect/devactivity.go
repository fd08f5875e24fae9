package collect

import (
	"context"
	"time"

	"github.com/planbot/internal/github"
	"github.com/planbot/pkg/models"
)

// MaxEnrichedPRs bounds how many linked pull requests get the expensive
// per-PR enrichment (files, discussion) from the source-control host.
const MaxEnrichedPRs = 3

// DevActivityName is the collector name; callers that supply precomputed
// activity use it to skip the refetch.
const DevActivityName = "development"

// DevActivityFetcher is the tracker-side view of development activity.
type DevActivityFetcher interface {
	FetchDevActivity(ctx context.Context, key string) (*models.DevelopmentActivity, error)
}

// PREnricher adds file and discussion detail to a pull request.
type PREnricher interface {
	Enabled() bool
	FetchPRDetails(ctx context.Context, ref github.PRRef) (*github.PRDetails, error)
}

// DevActivityCollector fetches commits, pull requests and branches linked
// to the issue, then enriches the first few PRs with changed files and
// review discussion when a source-control credential is configured.
type DevActivityCollector struct {
	Tracker  DevActivityFetcher
	Enricher PREnricher
}

func (c *DevActivityCollector) Name() string { return DevActivityName }

func (c *DevActivityCollector) Fetch(ctx context.Context, issue *models.Issue) (*models.PartialContext, error) {
	activity, err := c.Tracker.FetchDevActivity(ctx, issue.Key)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, nil
	}

	if c.Enricher != nil && c.Enricher.Enabled() {
		enriched := 0
		for i := range activity.PullRequests {
			if enriched >= MaxEnrichedPRs {
				break
			}
			pr := &activity.PullRequests[i]
			ref, ok := github.ParsePRURL(pr.URL)
			if !ok {
				continue
			}
			details, err := c.Enricher.FetchPRDetails(ctx, ref)
			if err != nil || details == nil {
				continue
			}
			pr.Description = details.Description
			pr.TotalAdditions = details.TotalAdditions
			pr.TotalDeletions = details.TotalDeletions
			for _, f := range details.Files {
				pr.Files = append(pr.Files, models.FileChange{
					Filename:  f.Filename,
					Status:    f.Status,
					Additions: f.Additions,
					Deletions: f.Deletions,
					Changes:   f.Changes,
				})
			}
			for _, cm := range details.Comments {
				created, _ := time.Parse(time.RFC3339, cm.CreatedAt)
				pr.Comments = append(pr.Comments, models.PRComment{
					Author:    cm.Author,
					Body:      cm.Body,
					CreatedAt: created,
					Type:      cm.Type,
				})
			}
			enriched++
		}
	}

	return &models.PartialContext{Development: activity}, nil
}
