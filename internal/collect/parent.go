package collect

import (
	"context"
	"strings"

	"github.com/planbot/internal/figma"
	"github.com/planbot/pkg/models"
)

// IssueFetcher fetches one issue from the tracker.
type IssueFetcher interface {
	FetchIssue(ctx context.Context, key string) (*models.Issue, error)
}

// ParentCollector pulls in the slice of the parent issue worth inheriting:
// description, labels, design links found in the parent text, and image
// attachments. Sub-tasks and stories under an epic often carry thin
// descriptions while the parent holds the real requirements.
type ParentCollector struct {
	Tracker IssueFetcher
	Design  DesignFetcher
}

func (c *ParentCollector) Name() string { return "parent" }

func (c *ParentCollector) Fetch(ctx context.Context, issue *models.Issue) (*models.PartialContext, error) {
	if issue.ParentKey == "" {
		return nil, nil
	}

	parent, err := c.Tracker.FetchIssue(ctx, issue.ParentKey)
	if err != nil {
		return nil, err
	}

	pc := &models.ParentContext{
		Key:         parent.Key,
		Summary:     parent.Summary,
		Description: parent.Description,
		Labels:      parent.Labels,
	}

	for _, a := range parent.Attachments {
		if strings.HasPrefix(a.MimeType, "image/") {
			pc.Attachments = append(pc.Attachments, a)
		}
	}

	if c.Design != nil && c.Design.Enabled() {
		if keys := figma.FindFileKeys(parent.Description); len(keys) > 0 {
			if dc, err := c.Design.FetchFileContext(ctx, keys[0]); err == nil && dc != nil {
				pc.Design = dc
			}
		}
	}

	return &models.PartialContext{Parent: pc}, nil
}
