package jira

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planbot/pkg/models"
)

const issuePayload = `{
  "id": "10042",
  "key": "PROJ-1",
  "fields": {
    "summary": "Add export button",
    "description": {
      "type": "doc",
      "version": 1,
      "content": [
        {"type": "paragraph", "content": [{"type": "text", "text": "Users can export their data as CSV."}]},
        {"type": "bulletList", "content": [
          {"type": "listItem", "content": [{"type": "paragraph", "content": [{"type": "text", "text": "include headers"}]}]}
        ]}
      ]
    },
    "issuetype": {"name": "Story"},
    "labels": ["exports"],
    "parent": {"key": "PROJ-100"},
    "issuelinks": [
      {
        "type": {"inward": "is blocked by", "outward": "blocks"},
        "outwardIssue": {"key": "PROJ-2", "fields": {"summary": "API endpoint", "status": {"name": "Done"}}}
      }
    ],
    "attachment": [
      {"filename": "mock.png", "mimeType": "image/png", "size": 1024, "content": "https://jira/attach/mock.png"}
    ]
  }
}`

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{BaseURL: srv.URL, Email: "bot@example.com", Token: "secret"})
	require.NoError(t, err)
	return client, srv
}

func TestFetchIssueMapsFields(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rest/api/3/issue/PROJ-1" {
			w.Write([]byte(issuePayload))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	issue, err := client.FetchIssue(context.Background(), "PROJ-1")
	require.NoError(t, err)

	assert.Equal(t, "PROJ-1", issue.Key)
	assert.Equal(t, models.TypeStory, issue.Type)
	assert.Equal(t, "PROJ-100", issue.ParentKey)
	assert.Contains(t, issue.Description, "export their data as CSV")
	assert.Contains(t, issue.Description, "• include headers")

	require.Len(t, issue.Links, 1)
	assert.Equal(t, "blocks", issue.Links[0].Relation)
	assert.Equal(t, "PROJ-2", issue.Links[0].Key)

	require.Len(t, issue.Attachments, 1)
	assert.Equal(t, "image/png", issue.Attachments[0].MimeType)

	require.NotNil(t, issue.Quality)
	assert.True(t, issue.Quality.HasDescription)
}

func TestFetchIssueStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, ErrNotFound},
		{http.StatusUnauthorized, ErrAuth},
		{http.StatusForbidden, ErrForbidden},
	}

	for _, tc := range cases {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))

		_, err := client.FetchIssue(context.Background(), "PROJ-404")
		assert.ErrorIs(t, err, tc.want, tc.status)
	}
}

func TestFetchDevActivityUsesCachedID(t *testing.T) {
	var devStatusID string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/api/3/issue/PROJ-1":
			w.Write([]byte(issuePayload))
		case "/rest/dev-status/1.0/issue/detail":
			devStatusID = r.URL.Query().Get("issueId")
			if r.URL.Query().Get("dataType") == "pullrequest" {
				w.Write([]byte(`{"detail": [{"pullRequests": [
					{"name": "Add export", "status": "MERGED", "url": "https://github.com/acme/shop/pull/9",
					 "source": {"branch": "feature/export"}, "destination": {"branch": "main"}}
				], "branches": [{"name": "feature/export"}]}]}`))
			} else {
				w.Write([]byte(`{"detail": [{"repositories": [{"commits": [
					{"message": "add csv writer", "author": {"name": "alice"}, "authorTimestamp": "2025-05-01T10:00:00Z"}
				]}]}]}`))
			}
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	_, err := client.FetchIssue(context.Background(), "PROJ-1")
	require.NoError(t, err)

	activity, err := client.FetchDevActivity(context.Background(), "PROJ-1")
	require.NoError(t, err)
	require.NotNil(t, activity)

	assert.Equal(t, "10042", devStatusID)
	require.Len(t, activity.Commits, 1)
	assert.Equal(t, "alice", activity.Commits[0].Author)
	require.Len(t, activity.PullRequests, 1)
	assert.Equal(t, "MERGED", activity.PullRequests[0].Status)
	assert.Equal(t, []string{"feature/export"}, activity.Branches)
}

func TestFetchDevActivityEmptyIsAbsent(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/api/3/issue/PROJ-1":
			w.Write([]byte(issuePayload))
		case "/rest/dev-status/1.0/issue/detail":
			w.Write([]byte(`{"detail": []}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	activity, err := client.FetchDevActivity(context.Background(), "PROJ-1")
	assert.NoError(t, err)
	assert.Nil(t, activity)
}

func TestDownloadAttachmentUsesCredential(t *testing.T) {
	png := []byte{0x89, 0x50, 0x4e, 0x47}
	client, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/secure/attachment/10001/mock.png" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "bot@example.com" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write(png)
	}))

	data, err := client.DownloadAttachment(context.Background(), srv.URL+"/secure/attachment/10001/mock.png")
	require.NoError(t, err)
	assert.Equal(t, png, data)
}

func TestDownloadAttachmentStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, ErrNotFound},
		{http.StatusUnauthorized, ErrAuth},
		{http.StatusForbidden, ErrForbidden},
	}

	for _, tc := range cases {
		client, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))

		_, err := client.DownloadAttachment(context.Background(), srv.URL+"/secure/attachment/1/x.png")
		assert.ErrorIs(t, err, tc.want, tc.status)
	}
}

func TestPostCommentCreatesThenUpdates(t *testing.T) {
	var comments []map[string]string
	var updates int

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/rest/api/2/issue/PROJ-1/comment":
			json.NewEncoder(w).Encode(map[string]interface{}{"comments": comments})
		case r.Method == http.MethodPost && r.URL.Path == "/rest/api/2/issue/PROJ-1/comment":
			var body struct {
				Body string `json:"body"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			comments = append(comments, map[string]string{"id": "10001", "body": body.Body})
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id": "10001", "body": "created"}`))
		case r.Method == http.MethodPut && r.URL.Path == "/rest/api/2/issue/PROJ-1/comment/10001":
			updates++
			w.Write([]byte(`{"id": "10001", "body": "updated"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	id, updated, err := client.PostComment(context.Background(), "PROJ-1", "plan v1")
	require.NoError(t, err)
	assert.Equal(t, "10001", id)
	assert.False(t, updated)

	// Second post finds the marked comment and updates instead of stacking.
	id, updated, err = client.PostComment(context.Background(), "PROJ-1", "plan v2")
	require.NoError(t, err)
	assert.Equal(t, "10001", id)
	assert.True(t, updated)
	assert.Equal(t, 1, updates)
	assert.Len(t, comments, 1)
}
