package collect

import (
	"context"

	"github.com/planbot/pkg/models"
)

// relationOrder lists the relation types worth surfacing in a test plan
// prompt, in output order. Everything else ("relates to", "duplicates",
// "clones") is noise at test-planning time.
var relationOrder = []string{"blocks", "is blocked by", "causes", "is caused by"}

// LinkedCollector filters the raw issue links already carried on the issue
// down to the high-value dependency and causality relations. No network
// calls; the tracker resolves link summaries and statuses at issue fetch
// time. Size capping happens in the aggregator with the other caps.
type LinkedCollector struct{}

func (c *LinkedCollector) Name() string { return "linked_issues" }

func (c *LinkedCollector) Fetch(_ context.Context, issue *models.Issue) (*models.PartialContext, error) {
	if len(issue.Links) == 0 {
		return nil, nil
	}

	byRelation := make(map[string][]models.LinkedIssue)
	for _, link := range issue.Links {
		byRelation[link.Relation] = append(byRelation[link.Relation], models.LinkedIssue{
			Relation: link.Relation,
			Key:      link.Key,
			Summary:  link.Summary,
			Status:   link.Status,
		})
	}

	var linked []models.LinkedIssue
	for _, relation := range relationOrder {
		linked = append(linked, byRelation[relation]...)
	}

	if len(linked) == 0 {
		return nil, nil
	}
	return &models.PartialContext{Linked: linked}, nil
}
