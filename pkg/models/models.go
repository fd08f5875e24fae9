// Package models contains the shared data types passed between the
// collectors, the aggregator, the prompt builder and the exporters.
// Values are built once per generation request and never mutated after
// construction.
package models

import "time"

// IssueType is the tracker-side classification of an issue.
type IssueType string

const (
	TypeStory   IssueType = "Story"
	TypeBug     IssueType = "Bug"
	TypeTask    IssueType = "Task"
	TypeEpic    IssueType = "Epic"
	TypeSpike   IssueType = "Spike"
	TypeSubTask IssueType = "Sub-task"
)

// Testable reports whether test plans can be generated for this issue
// type. Epics (and anything unrecognized) are containers, not units of
// testable work.
func (t IssueType) Testable() bool {
	switch t {
	case TypeStory, TypeBug, TypeTask, TypeSpike, TypeSubTask:
		return true
	}
	return false
}

// Issue is a Jira issue with its description already flattened to plain
// text. Immutable for the duration of one generation request.
type Issue struct {
	Key         string              `json:"key"`
	Summary     string              `json:"summary"`
	Description string              `json:"description"`
	Type        IssueType           `json:"issue_type"`
	Labels      []string            `json:"labels,omitempty"`
	Quality     *DescriptionQuality `json:"description_quality,omitempty"`
	ParentKey   string              `json:"parent_key,omitempty"`
	Links       []RawLink           `json:"links,omitempty"`
	Attachments []Attachment        `json:"attachments,omitempty"`
}

// RawLink is an unfiltered issue link as reported by the tracker. The
// linked-issue collector filters these down to the relation types worth
// including in a prompt.
type RawLink struct {
	Relation string `json:"relation"` // e.g. "blocks", "is blocked by"
	Key      string `json:"key"`
	Summary  string `json:"summary"`
	Status   string `json:"status"`
}

// DescriptionQuality is the analyzer's verdict on an issue description.
// IsWeak implies Warnings is non-empty.
type DescriptionQuality struct {
	HasDescription bool     `json:"has_description"`
	IsWeak         bool     `json:"is_weak"`
	Warnings       []string `json:"warnings"`
	CharCount      int      `json:"char_count"`
	WordCount      int      `json:"word_count"`
}

// Attachment is an image attached to an issue. The URL is the tracker's
// authenticated content endpoint; Data holds the downloaded bytes once the
// pipeline has fetched them on the caller's credential.
type Attachment struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	URL      string `json:"url"`
	Data     []byte `json:"-"`
}

// Commit is one commit linked to an issue via the dev-status resource.
type Commit struct {
	Message string    `json:"message"`
	Author  string    `json:"author,omitempty"`
	Date    time.Time `json:"date,omitempty"`
	URL     string    `json:"url,omitempty"`
}

// FileChange is one changed file in a pull request.
type FileChange struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"` // added, modified, removed, renamed
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Changes   int    `json:"changes"`
}

// PRComment is one conversation or review comment on a pull request.
type PRComment struct {
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	Type      string    `json:"type"` // "conversation" or "review_comment"
}

// PullRequest is a pull request linked to an issue, optionally enriched
// with file and discussion detail from the source-control host.
type PullRequest struct {
	Title             string       `json:"title"`
	Status            string       `json:"status"` // OPEN, MERGED, DECLINED, CLOSED
	URL               string       `json:"url,omitempty"`
	SourceBranch      string       `json:"source_branch,omitempty"`
	DestinationBranch string       `json:"destination_branch,omitempty"`
	Description       string       `json:"description,omitempty"`
	Files             []FileChange `json:"files,omitempty"`
	TotalAdditions    int          `json:"total_additions,omitempty"`
	TotalDeletions    int          `json:"total_deletions,omitempty"`
	Comments          []PRComment  `json:"comments,omitempty"`
}

// DevelopmentActivity is the commits/PRs/branches context for one issue.
// Absence of activity is not an error.
type DevelopmentActivity struct {
	Commits      []Commit      `json:"commits,omitempty"`
	PullRequests []PullRequest `json:"pull_requests,omitempty"`
	Branches     []string      `json:"branches,omitempty"`
}

// LinkedIssue is a resolved high-value issue relation.
type LinkedIssue struct {
	Relation string `json:"relation"` // blocks, is blocked by, causes, is caused by
	Key      string `json:"key"`
	Summary  string `json:"summary"`
	Status   string `json:"status"`
}

// DesignFrame is one frame/screen in a design file.
type DesignFrame struct {
	Name string `json:"name"`
	Type string `json:"type"` // FRAME, COMPONENT, CANVAS
}

// DesignComponent is one reusable component defined in a design file.
type DesignComponent struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// DesignContext is the design-tool context for an issue. Degrades to nil
// when the URL is unparseable or the credential is missing.
type DesignContext struct {
	FileName   string            `json:"file_name"`
	FileKey    string            `json:"file_key"`
	Frames     []DesignFrame     `json:"frames,omitempty"`
	Components []DesignComponent `json:"components,omitempty"`
}

// ParentContext is the slice of a parent issue worth inheriting: its
// description, labels, design links and image attachments.
type ParentContext struct {
	Key         string         `json:"key"`
	Summary     string         `json:"summary"`
	Description string         `json:"description,omitempty"`
	Labels      []string       `json:"labels,omitempty"`
	Design      *DesignContext `json:"design,omitempty"`
	Attachments []Attachment   `json:"attachments,omitempty"`
}

// TestingContext is user-supplied guidance. All fields are optional free
// text; nothing is validated beyond type.
type TestingContext struct {
	AcceptanceCriteria  string `json:"acceptanceCriteria,omitempty"`
	TestDataNotes       string `json:"testDataNotes,omitempty"`
	Environments        string `json:"environments,omitempty"`
	RolesPermissions    string `json:"rolesPermissions,omitempty"`
	OutOfScope          string `json:"outOfScope,omitempty"`
	RiskAreas           string `json:"riskAreas,omitempty"`
	SpecialInstructions string `json:"specialInstructions,omitempty"`
}

// PartialContext is the output of one collector. Every field is optional;
// a collector fills exactly the fields its source provides.
type PartialContext struct {
	Development *DevelopmentActivity
	Linked      []LinkedIssue
	Parent      *ParentContext
	Design      *DesignContext
	RepoDoc     string
}

// ContextBundle is the merged, size-bounded input to the prompt builder.
// Ownership is exclusive to one generation request.
type ContextBundle struct {
	Issue          Issue
	Testing        TestingContext
	Development    *DevelopmentActivity
	Linked         []LinkedIssue
	Parent         *ParentContext
	Design         *DesignContext
	RepoDoc        string
	Images         []Attachment
	MultiCategory  bool
	CollectorNotes []string // sources that contributed, in fixed priority order
}

// TestCase is one test case inside a TestPlan. The JSON field names are a
// published contract; exporters and the UI depend on them.
type TestCase struct {
	Title    string   `json:"title"`
	Steps    []string `json:"steps"`
	Expected string   `json:"expected"`
	TestData string   `json:"test_data,omitempty"`
	Priority string   `json:"priority,omitempty"` // critical, high, medium
	Category string   `json:"category,omitempty"` // security, boundary, error_handling, integration
}

// TestPlan is the validated structured output of one generation request.
type TestPlan struct {
	HappyPath           []TestCase `json:"happy_path"`
	EdgeCases           []TestCase `json:"edge_cases"`
	RegressionChecklist []string   `json:"regression_checklist"`
	IntegrationTests    []TestCase `json:"integration_tests,omitempty"`
}
