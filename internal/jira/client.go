// Package jira wraps the Jira Cloud REST API: v3 issue fetch with ADF
// descriptions, the dev-status sub-resource, and marker-based comment
// post-back.
package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	jiralib "github.com/andygrunwald/go-jira"
	"github.com/rs/zerolog/log"

	"github.com/planbot/internal/adf"
	"github.com/planbot/internal/quality"
	"github.com/planbot/pkg/models"
)

// Sentinel errors for the required issue fetch. The pipeline maps these to
// caller-facing statuses.
var (
	ErrNotFound    = errors.New("jira: issue not found")
	ErrAuth        = errors.New("jira: authentication failed")
	ErrForbidden   = errors.New("jira: access forbidden")
	ErrUnreachable = errors.New("jira: unreachable")
)

// Config for the Jira client.
type Config struct {
	BaseURL string
	Email   string
	Token   string
	Quality quality.Config
}

// Client talks to one Jira Cloud site.
type Client struct {
	client  *jiralib.Client
	http    *http.Client
	quality quality.Config

	mu  sync.Mutex
	ids map[string]string // issue key -> numeric ID, needed by dev-status
}

func (c *Client) rememberID(key, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ids == nil {
		c.ids = make(map[string]string)
	}
	c.ids[key] = id
}

func (c *Client) issueID(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ids[key]
}

// NewClient creates a Jira client with basic-auth transport.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("jira base URL is required")
	}

	tp := jiralib.BasicAuthTransport{
		Username: cfg.Email,
		Password: cfg.Token,
	}
	httpClient := tp.Client()

	client, err := jiralib.NewClient(httpClient, cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create jira client: %w", err)
	}

	q := cfg.Quality
	if q.MinChars == 0 {
		q = quality.DefaultConfig()
	}

	return &Client{client: client, http: httpClient, quality: q}, nil
}

// issueV3 mirrors the slice of the /rest/api/3/issue response we consume.
// Description stays raw so the ADF extractor can flatten it.
type issueV3 struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Fields struct {
		Summary     string          `json:"summary"`
		Description json.RawMessage `json:"description"`
		IssueType   struct {
			Name string `json:"name"`
		} `json:"issuetype"`
		Labels []string `json:"labels"`
		Parent *struct {
			Key string `json:"key"`
		} `json:"parent"`
		IssueLinks []struct {
			Type struct {
				Inward  string `json:"inward"`
				Outward string `json:"outward"`
			} `json:"type"`
			InwardIssue  *linkedIssueV3 `json:"inwardIssue"`
			OutwardIssue *linkedIssueV3 `json:"outwardIssue"`
		} `json:"issuelinks"`
		Attachment []struct {
			Filename string `json:"filename"`
			MimeType string `json:"mimeType"`
			Size     int64  `json:"size"`
			Content  string `json:"content"`
		} `json:"attachment"`
	} `json:"fields"`
}

type linkedIssueV3 struct {
	Key    string `json:"key"`
	Fields struct {
		Summary string `json:"summary"`
		Status  struct {
			Name string `json:"name"`
		} `json:"status"`
	} `json:"fields"`
}

// FetchIssue fetches one issue and flattens its rich-text description.
func (c *Client) FetchIssue(ctx context.Context, key string) (*models.Issue, error) {
	path := fmt.Sprintf("rest/api/3/issue/%s?fields=summary,description,issuetype,labels,parent,issuelinks,attachment", key)

	var raw issueV3
	if err := c.get(ctx, path, &raw); err != nil {
		return nil, err
	}

	description := adf.Extract(raw.Fields.Description)
	q := quality.Analyze(description, models.IssueType(raw.Fields.IssueType.Name), c.quality)

	issue := &models.Issue{
		Key:         raw.Key,
		Summary:     raw.Fields.Summary,
		Description: description,
		Type:        models.IssueType(raw.Fields.IssueType.Name),
		Labels:      raw.Fields.Labels,
		Quality:     &q,
	}

	if raw.Fields.Parent != nil {
		issue.ParentKey = raw.Fields.Parent.Key
	}

	for _, link := range raw.Fields.IssueLinks {
		switch {
		case link.OutwardIssue != nil:
			issue.Links = append(issue.Links, models.RawLink{
				Relation: link.Type.Outward,
				Key:      link.OutwardIssue.Key,
				Summary:  link.OutwardIssue.Fields.Summary,
				Status:   link.OutwardIssue.Fields.Status.Name,
			})
		case link.InwardIssue != nil:
			issue.Links = append(issue.Links, models.RawLink{
				Relation: link.Type.Inward,
				Key:      link.InwardIssue.Key,
				Summary:  link.InwardIssue.Fields.Summary,
				Status:   link.InwardIssue.Fields.Status.Name,
			})
		}
	}

	for _, a := range raw.Fields.Attachment {
		issue.Attachments = append(issue.Attachments, models.Attachment{
			Filename: a.Filename,
			MimeType: a.MimeType,
			Size:     a.Size,
			URL:      a.Content,
		})
	}

	// The numeric issue ID is needed later for the dev-status resource.
	c.rememberID(raw.Key, raw.ID)

	log.Debug().Str("key", raw.Key).Str("type", string(issue.Type)).
		Int("links", len(issue.Links)).Int("attachments", len(issue.Attachments)).
		Msg("fetched issue")

	return issue, nil
}

// devStatusDetail mirrors the dev-status detail payload.
type devStatusDetail struct {
	Detail []struct {
		Repositories []struct {
			Commits []struct {
				Message string `json:"message"`
				Author  struct {
					Name string `json:"name"`
				} `json:"author"`
				AuthorTimestamp string `json:"authorTimestamp"`
				URL             string `json:"url"`
			} `json:"commits"`
		} `json:"repositories"`
		PullRequests []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
			URL    string `json:"url"`
			Source struct {
				Branch string `json:"branch"`
			} `json:"source"`
			Destination struct {
				Branch string `json:"branch"`
			} `json:"destination"`
		} `json:"pullRequests"`
		Branches []struct {
			Name string `json:"name"`
		} `json:"branches"`
	} `json:"detail"`
}

// FetchDevActivity fetches commits, pull requests and branch names linked
// to an issue via the dev-status sub-resource. Returns (nil, nil) when the
// resource is empty or unavailable: absence of development activity is not
// an error.
func (c *Client) FetchDevActivity(ctx context.Context, key string) (*models.DevelopmentActivity, error) {
	id := c.issueID(key)
	if id == "" {
		// Resolve the numeric ID if the issue was not fetched by us.
		var raw issueV3
		if err := c.get(ctx, fmt.Sprintf("rest/api/3/issue/%s?fields=summary", key), &raw); err != nil {
			return nil, nil
		}
		id = raw.ID
		c.rememberID(key, id)
	}

	activity := &models.DevelopmentActivity{}

	var repos devStatusDetail
	if err := c.get(ctx, fmt.Sprintf("rest/dev-status/1.0/issue/detail?issueId=%s&applicationType=GitHub&dataType=repository", id), &repos); err == nil {
		for _, d := range repos.Detail {
			for _, r := range d.Repositories {
				for _, commit := range r.Commits {
					ts, _ := time.Parse(time.RFC3339, commit.AuthorTimestamp)
					activity.Commits = append(activity.Commits, models.Commit{
						Message: commit.Message,
						Author:  commit.Author.Name,
						Date:    ts,
						URL:     commit.URL,
					})
				}
			}
		}
	}

	var prs devStatusDetail
	if err := c.get(ctx, fmt.Sprintf("rest/dev-status/1.0/issue/detail?issueId=%s&applicationType=GitHub&dataType=pullrequest", id), &prs); err == nil {
		for _, d := range prs.Detail {
			for _, pr := range d.PullRequests {
				activity.PullRequests = append(activity.PullRequests, models.PullRequest{
					Title:             pr.Name,
					Status:            pr.Status,
					URL:               pr.URL,
					SourceBranch:      pr.Source.Branch,
					DestinationBranch: pr.Destination.Branch,
				})
			}
			for _, b := range d.Branches {
				activity.Branches = append(activity.Branches, b.Name)
			}
		}
	}

	if len(activity.Commits) == 0 && len(activity.PullRequests) == 0 && len(activity.Branches) == 0 {
		return nil, nil
	}
	return activity, nil
}

// maxAttachmentBytes caps one attachment download. Screenshots worth
// sending to a vision model are well under this.
const maxAttachmentBytes = 5 << 20

// DownloadAttachment fetches attachment bytes on the configured credential.
// Attachment content URLs require authentication, so the bytes must be
// pulled here before they can be handed to a model.
func (c *Client) DownloadAttachment(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNotFound
	case http.StatusUnauthorized:
		return nil, ErrAuth
	case http.StatusForbidden:
		return nil, ErrForbidden
	default:
		return nil, fmt.Errorf("%w: attachment fetch returned %d", ErrUnreachable, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAttachmentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if len(data) > maxAttachmentBytes {
		return nil, fmt.Errorf("attachment exceeds %d bytes", maxAttachmentBytes)
	}
	return data, nil
}

// CheckAuth verifies the configured credential against the current-user
// endpoint.
func (c *Client) CheckAuth(ctx context.Context) error {
	var me struct {
		AccountID string `json:"accountId"`
	}
	return c.get(ctx, "rest/api/2/myself", &me)
}

// get issues an authenticated GET and decodes the JSON body into v,
// mapping HTTP statuses to the package sentinels.
func (c *Client) get(ctx context.Context, path string, v interface{}) error {
	req, err := c.client.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	resp, err := c.client.Do(req, v)
	if resp != nil {
		switch resp.StatusCode {
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusUnauthorized:
			return ErrAuth
		case http.StatusForbidden:
			return ErrForbidden
		}
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return nil
}
