package collect

import (
	"context"

	"github.com/planbot/internal/github"
	"github.com/planbot/pkg/models"
)

// RepoDocFetcher fetches a repository's README.
type RepoDocFetcher interface {
	Enabled() bool
	FetchRepoDoc(ctx context.Context, owner, repo string) (string, error)
}

// RepoDocCollector locates the repository behind the issue's first linked
// pull request and fetches its README, giving the prompt a sense of what
// the system under test actually is. Runs independently of the development
// collector, so it resolves dev activity itself.
type RepoDocCollector struct {
	Tracker DevActivityFetcher
	Docs    RepoDocFetcher
}

func (c *RepoDocCollector) Name() string { return "repo_doc" }

func (c *RepoDocCollector) Fetch(ctx context.Context, issue *models.Issue) (*models.PartialContext, error) {
	if c.Docs == nil || !c.Docs.Enabled() {
		return nil, nil
	}

	activity, err := c.Tracker.FetchDevActivity(ctx, issue.Key)
	if err != nil || activity == nil {
		return nil, err
	}

	for _, pr := range activity.PullRequests {
		ref, ok := github.ParsePRURL(pr.URL)
		if !ok {
			continue
		}
		doc, err := c.Docs.FetchRepoDoc(ctx, ref.Owner, ref.Repo)
		if err != nil || doc == "" {
			continue
		}
		return &models.PartialContext{RepoDoc: doc}, nil
	}

	return nil, nil
}
