package aggregate

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planbot/pkg/models"
)

func TestMergeFixedSourceOrder(t *testing.T) {
	issue := models.Issue{Key: "PROJ-1"}
	partials := []*models.PartialContext{
		nil,
		{Linked: []models.LinkedIssue{{Key: "PROJ-2", Relation: "blocks"}}},
		{Development: &models.DevelopmentActivity{Branches: []string{"feature/x"}}},
		{RepoDoc: "readme text"},
	}

	bundle := Merge(issue, models.TestingContext{}, partials, DefaultConfig())

	assert.Equal(t, []string{"linked_issues", "development", "repo_doc"}, bundle.CollectorNotes)
	require.NotNil(t, bundle.Development)
	assert.Len(t, bundle.Linked, 1)
	assert.Equal(t, "readme text", bundle.RepoDoc)
}

func TestCapDevelopmentFilesRankByChangeSize(t *testing.T) {
	pr := models.PullRequest{Title: "big PR"}
	for i := 0; i < 20; i++ {
		pr.Files = append(pr.Files, models.FileChange{
			Filename: fmt.Sprintf("file%02d.go", i),
			Changes:  i,
		})
	}
	pr.Files = append(pr.Files, models.FileChange{Filename: "aaa.go", Changes: 19})

	dev := capDevelopment(&models.DevelopmentActivity{PullRequests: []models.PullRequest{pr}})

	files := dev.PullRequests[0].Files
	require.Len(t, files, MaxPRFiles)
	assert.Equal(t, 19, files[0].Changes)
	// Tie on change count breaks by filename.
	assert.Equal(t, "aaa.go", files[0].Filename)
	assert.Equal(t, "file19.go", files[1].Filename)
}

func TestCapDevelopmentCommentsMostRecent(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	pr := models.PullRequest{}
	for i := 0; i < 15; i++ {
		pr.Comments = append(pr.Comments, models.PRComment{
			Body:      fmt.Sprintf("comment %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}

	dev := capDevelopment(&models.DevelopmentActivity{PullRequests: []models.PullRequest{pr}})

	comments := dev.PullRequests[0].Comments
	require.Len(t, comments, MaxPRComments)
	assert.Equal(t, "comment 14", comments[0].Body)
	assert.Equal(t, "comment 5", comments[len(comments)-1].Body)
}

func TestMergeImagesSplit(t *testing.T) {
	issue := models.Issue{
		Attachments: []models.Attachment{
			{Filename: "a.png", MimeType: "image/png"},
			{Filename: "b.jpg", MimeType: "image/jpeg"},
			{Filename: "c.png", MimeType: "image/png"},
			{Filename: "doc.pdf", MimeType: "application/pdf"},
		},
	}
	parent := &models.ParentContext{
		Attachments: []models.Attachment{
			{Filename: "p1.png", MimeType: "image/png"},
			{Filename: "p2.png", MimeType: "image/png"},
			{Filename: "p3.png", MimeType: "image/png"},
		},
	}

	bundle := Merge(issue, models.TestingContext{}, []*models.PartialContext{{Parent: parent}}, DefaultConfig())

	require.Len(t, bundle.Images, MaxImages)
	assert.Equal(t, "a.png", bundle.Images[0].Filename)
	assert.Equal(t, "b.jpg", bundle.Images[1].Filename)
	assert.Equal(t, "p1.png", bundle.Images[2].Filename)
	assert.Equal(t, "p2.png", bundle.Images[3].Filename)
}

func TestLinkedIssuesCappedPerRelationType(t *testing.T) {
	var linked []models.LinkedIssue
	for i := 0; i < 9; i++ {
		linked = append(linked, models.LinkedIssue{
			Relation: "blocks", Key: fmt.Sprintf("PROJ-%d", 100+i),
		})
	}
	linked = append(linked,
		models.LinkedIssue{Relation: "is caused by", Key: "PROJ-300"},
		models.LinkedIssue{Relation: "is caused by", Key: "PROJ-301"},
	)

	bundle := Merge(models.Issue{}, models.TestingContext{},
		[]*models.PartialContext{{Linked: linked}}, DefaultConfig())

	counts := map[string]int{}
	for _, l := range bundle.Linked {
		counts[l.Relation]++
	}
	assert.Equal(t, MaxLinkedPerType, counts["blocks"])
	assert.Equal(t, 2, counts["is caused by"])
	// Order within a type is preserved.
	assert.Equal(t, "PROJ-100", bundle.Linked[0].Key)
}

func TestReadmeAndParentTruncation(t *testing.T) {
	longDoc := strings.Repeat("r", ReadmeCharBudget+500)
	longParent := strings.Repeat("p", ParentDescCharBudget+500)

	bundle := Merge(models.Issue{}, models.TestingContext{}, []*models.PartialContext{
		{RepoDoc: longDoc},
		{Parent: &models.ParentContext{Key: "PROJ-9", Description: longParent}},
	}, DefaultConfig())

	assert.LessOrEqual(t, len(bundle.RepoDoc), ReadmeCharBudget+len("…"))
	assert.LessOrEqual(t, len(bundle.Parent.Description), ParentDescCharBudget+len("…"))
}

func TestTruncateCutsOnRuneBoundary(t *testing.T) {
	// Three-byte runes; a cap of 7 bytes lands mid-rune and must back off.
	s := strings.Repeat("日", 10)
	out := truncate(s, 7)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, strings.Repeat("日", 2)+"…", out)

	// ASCII under the cap passes through untouched.
	assert.Equal(t, "short", truncate("short", 7))
}

func TestParentTruncationKeepsValidUTF8(t *testing.T) {
	desc := strings.Repeat("café ", ParentDescCharBudget)
	bundle := Merge(models.Issue{}, models.TestingContext{}, []*models.PartialContext{
		{Parent: &models.ParentContext{Key: "PROJ-9", Description: desc}},
	}, DefaultConfig())

	assert.True(t, utf8.ValidString(bundle.Parent.Description))
	assert.LessOrEqual(t, len(bundle.Parent.Description), ParentDescCharBudget+len("…"))
}

func TestMultiCategoryHeuristic(t *testing.T) {
	issue := models.Issue{Description: "Users need role based permissions, input format validation, and API webhook integration."}
	bundle := Merge(issue, models.TestingContext{}, nil, DefaultConfig())
	assert.True(t, bundle.MultiCategory)

	simple := models.Issue{Description: "Fix the typo on the welcome banner."}
	bundle = Merge(simple, models.TestingContext{}, nil, DefaultConfig())
	assert.False(t, bundle.MultiCategory)
}

func TestMultiCategoryUsesSpecialInstructions(t *testing.T) {
	issue := models.Issue{Description: "Add rate limit handling."}
	guidance := models.TestingContext{SpecialInstructions: "cover auth token expiry and database migration paths"}

	bundle := Merge(issue, guidance, nil, Config{MultiCategoryThreshold: 3})
	assert.True(t, bundle.MultiCategory)
}

func TestCommitsCappedMostRecent(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	dev := &models.DevelopmentActivity{}
	for i := 0; i < 14; i++ {
		dev.Commits = append(dev.Commits, models.Commit{
			Message: fmt.Sprintf("commit %d", i),
			Date:    base.AddDate(0, 0, i),
		})
	}

	capped := capDevelopment(dev)
	require.Len(t, capped.Commits, MaxCommits)
	assert.Equal(t, "commit 13", capped.Commits[0].Message)
}
