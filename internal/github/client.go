// Package github enriches pull-request context via the GitHub REST API:
// changed files, discussion comments, and repository README excerpts.
package github

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	gh "github.com/google/go-github/v41/github"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

var prURLPattern = regexp.MustCompile(`github\.com/([^/]+)/([^/]+)/pull/(\d+)`)

// Client wraps the GitHub API with a small outbound rate limit so PR
// enrichment for one generation request cannot burn through the API quota.
type Client struct {
	gh      *gh.Client
	limiter *rate.Limiter
	enabled bool
}

// NewClient creates a GitHub client. An empty token yields a disabled
// client whose fetches all report absence, keeping GitHub strictly
// optional.
func NewClient(ctx context.Context, token string) *Client {
	if token == "" {
		return &Client{enabled: false}
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return &Client{
		gh:      gh.NewClient(oauth2.NewClient(ctx, ts)),
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		enabled: true,
	}
}

// Enabled reports whether a token was configured.
func (c *Client) Enabled() bool { return c.enabled }

// PRRef identifies one pull request.
type PRRef struct {
	Owner  string
	Repo   string
	Number int
}

// ParsePRURL extracts the owner/repo/number from a GitHub PR URL.
func ParsePRURL(url string) (PRRef, bool) {
	m := prURLPattern.FindStringSubmatch(url)
	if m == nil {
		return PRRef{}, false
	}
	number, err := strconv.Atoi(m[3])
	if err != nil {
		return PRRef{}, false
	}
	return PRRef{Owner: m[1], Repo: m[2], Number: number}, true
}

// FileChange is one changed file in a PR.
type FileChange struct {
	Filename  string
	Status    string
	Additions int
	Deletions int
	Changes   int
}

// Comment is one PR conversation or review comment.
type Comment struct {
	Author    string
	Body      string
	CreatedAt string
	Type      string // "conversation" or "review_comment"
}

// PRDetails is the enrichment fetched for one pull request.
type PRDetails struct {
	Description    string
	Files          []FileChange
	TotalAdditions int
	TotalDeletions int
	Comments       []Comment
}

// FetchPRDetails fetches description, changed files and discussion for one
// PR. Returns (nil, nil) when the client is disabled or the PR is
// inaccessible: enrichment is best-effort.
func (c *Client) FetchPRDetails(ctx context.Context, ref PRRef) (*PRDetails, error) {
	if !c.enabled {
		return nil, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	pr, _, err := c.gh.PullRequests.Get(ctx, ref.Owner, ref.Repo, ref.Number)
	if err != nil {
		log.Warn().Err(err).Str("repo", ref.Owner+"/"+ref.Repo).Int("pr", ref.Number).
			Msg("pull request fetch failed, skipping enrichment")
		return nil, nil
	}

	details := &PRDetails{Description: pr.GetBody()}

	files, _, err := c.gh.PullRequests.ListFiles(ctx, ref.Owner, ref.Repo, ref.Number, &gh.ListOptions{PerPage: 100})
	if err == nil {
		for _, f := range files {
			details.Files = append(details.Files, FileChange{
				Filename:  f.GetFilename(),
				Status:    f.GetStatus(),
				Additions: f.GetAdditions(),
				Deletions: f.GetDeletions(),
				Changes:   f.GetChanges(),
			})
			details.TotalAdditions += f.GetAdditions()
			details.TotalDeletions += f.GetDeletions()
		}
	}

	details.Comments = c.fetchComments(ctx, ref)
	return details, nil
}

// fetchComments collects conversation comments (PRs are issues) and
// line-level review comments. Review comments carry their file path as
// context.
func (c *Client) fetchComments(ctx context.Context, ref PRRef) []Comment {
	var comments []Comment

	conversation, _, err := c.gh.Issues.ListComments(ctx, ref.Owner, ref.Repo, ref.Number, nil)
	if err == nil {
		for _, ic := range conversation {
			comments = append(comments, Comment{
				Author:    ic.GetUser().GetLogin(),
				Body:      ic.GetBody(),
				CreatedAt: ic.GetCreatedAt().Format("2006-01-02T15:04:05Z"),
				Type:      "conversation",
			})
		}
	}

	reviews, _, err := c.gh.PullRequests.ListComments(ctx, ref.Owner, ref.Repo, ref.Number, nil)
	if err == nil {
		for _, rc := range reviews {
			body := rc.GetBody()
			if path := rc.GetPath(); path != "" {
				body = fmt.Sprintf("[%s] %s", path, body)
			}
			comments = append(comments, Comment{
				Author:    rc.GetUser().GetLogin(),
				Body:      body,
				CreatedAt: rc.GetCreatedAt().Format("2006-01-02T15:04:05Z"),
				Type:      "review_comment",
			})
		}
	}

	return comments
}

// CheckAuth verifies the configured token against the authenticated-user
// endpoint.
func (c *Client) CheckAuth(ctx context.Context) error {
	if !c.enabled {
		return fmt.Errorf("github token not configured")
	}
	if _, _, err := c.gh.Users.Get(ctx, ""); err != nil {
		return fmt.Errorf("github token rejected: %w", err)
	}
	return nil
}

// FetchRepoDoc fetches the repository README. Returns ("", nil) when the
// client is disabled or the repository has no README.
func (c *Client) FetchRepoDoc(ctx context.Context, owner, repo string) (string, error) {
	if !c.enabled {
		return "", nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	readme, _, err := c.gh.Repositories.GetReadme(ctx, owner, repo, nil)
	if err != nil {
		return "", nil
	}
	content, err := readme.GetContent()
	if err != nil {
		return "", nil
	}
	return content, nil
}
