package collect

import (
	"context"

	"github.com/planbot/internal/figma"
	"github.com/planbot/pkg/models"
)

// DesignFetcher resolves a design file key into frames and components.
type DesignFetcher interface {
	Enabled() bool
	FetchFileContext(ctx context.Context, fileKey string) (*models.DesignContext, error)
}

// DesignCollector scans the issue description for design-tool URLs and
// fetches the first referenced file's frames and components.
type DesignCollector struct {
	Design DesignFetcher
}

func (c *DesignCollector) Name() string { return "design" }

func (c *DesignCollector) Fetch(ctx context.Context, issue *models.Issue) (*models.PartialContext, error) {
	if c.Design == nil || !c.Design.Enabled() {
		return nil, nil
	}

	keys := figma.FindFileKeys(issue.Description)
	if len(keys) == 0 {
		return nil, nil
	}

	dc, err := c.Design.FetchFileContext(ctx, keys[0])
	if err != nil || dc == nil {
		return nil, err
	}
	return &models.PartialContext{Design: dc}, nil
}
