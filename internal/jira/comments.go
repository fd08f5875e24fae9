package jira

import (
	"context"
	"fmt"
	"strings"

	jiralib "github.com/andygrunwald/go-jira"
	"github.com/rs/zerolog/log"
)

// CommentMarker identifies comments authored by this tool. Post-back
// locates a previous bot comment by this marker and updates it in place,
// so repeated runs never stack duplicate plans on an issue.
const CommentMarker = "[planbot] auto-generated test plan"

type commentPage struct {
	Comments []struct {
		ID   string `json:"id"`
		Body string `json:"body"`
	} `json:"comments"`
}

// PostComment posts text to an issue, prefixed with the bot marker. If a
// marked comment already exists it is updated rather than duplicated.
// Returns the comment ID and whether an existing comment was replaced.
func (c *Client) PostComment(ctx context.Context, key, text string) (string, bool, error) {
	body := CommentMarker + "\n\n" + text

	var page commentPage
	if err := c.get(ctx, fmt.Sprintf("rest/api/2/issue/%s/comment", key), &page); err != nil {
		return "", false, err
	}

	for _, existing := range page.Comments {
		if strings.Contains(existing.Body, CommentMarker) {
			updated := &jiralib.Comment{ID: existing.ID, Body: body}
			if _, _, err := c.client.Issue.UpdateCommentWithContext(ctx, key, updated); err != nil {
				return "", false, fmt.Errorf("%w: %v", ErrUnreachable, err)
			}
			log.Info().Str("key", key).Str("comment_id", existing.ID).Msg("updated existing test plan comment")
			return existing.ID, true, nil
		}
	}

	created, _, err := c.client.Issue.AddCommentWithContext(ctx, key, &jiralib.Comment{Body: body})
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	log.Info().Str("key", key).Str("comment_id", created.ID).Msg("posted test plan comment")
	return created.ID, false, nil
}
