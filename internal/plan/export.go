package plan

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/planbot/pkg/models"
)

// Format names accepted by the CLI and the API.
const (
	FormatMarkdown = "markdown"
	FormatJira     = "jira"
	FormatJSON     = "json"
)

// Export renders a plan in the named format.
func Export(plan *models.TestPlan, issueKey, format string) (string, error) {
	switch format {
	case FormatMarkdown:
		return Markdown(plan, issueKey), nil
	case FormatJira:
		return JiraText(plan, issueKey), nil
	case FormatJSON:
		return JSON(plan)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// Markdown renders the plan as a GitHub-flavored markdown document. Every
// section present in the plan appears; titles are reproduced verbatim.
func Markdown(plan *models.TestPlan, issueKey string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Test Plan: %s\n", issueKey)

	writeMarkdownCases(&b, "Happy Path", plan.HappyPath)
	writeMarkdownCases(&b, "Edge Cases", plan.EdgeCases)

	if len(plan.RegressionChecklist) > 0 {
		b.WriteString("\n## Regression Checklist\n\n")
		for _, item := range plan.RegressionChecklist {
			fmt.Fprintf(&b, "- [ ] %s\n", item)
		}
	}

	writeMarkdownCases(&b, "Integration Tests", plan.IntegrationTests)

	return b.String()
}

func writeMarkdownCases(b *strings.Builder, heading string, cases []models.TestCase) {
	if len(cases) == 0 {
		return
	}

	fmt.Fprintf(b, "\n## %s\n", heading)
	for i, tc := range cases {
		fmt.Fprintf(b, "\n### %d. %s\n\n", i+1, tc.Title)
		if tc.Priority != "" {
			fmt.Fprintf(b, "**Priority:** %s", tc.Priority)
			if tc.Category != "" {
				fmt.Fprintf(b, " · **Category:** %s", tc.Category)
			}
			b.WriteString("\n\n")
		}
		for j, step := range tc.Steps {
			fmt.Fprintf(b, "%d. %s\n", j+1, step)
		}
		fmt.Fprintf(b, "\n**Expected:** %s\n", tc.Expected)
		if tc.TestData != "" {
			fmt.Fprintf(b, "**Test data:** %s\n", tc.TestData)
		}
	}
}

// JiraText renders the plan as plain text suitable for a ticket comment.
func JiraText(plan *models.TestPlan, issueKey string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Test Plan for %s\n", issueKey)

	writeJiraCases(&b, "HAPPY PATH", plan.HappyPath)
	writeJiraCases(&b, "EDGE CASES", plan.EdgeCases)

	if len(plan.RegressionChecklist) > 0 {
		b.WriteString("\nREGRESSION CHECKLIST\n")
		for _, item := range plan.RegressionChecklist {
			fmt.Fprintf(&b, "* %s\n", item)
		}
	}

	writeJiraCases(&b, "INTEGRATION TESTS", plan.IntegrationTests)

	return b.String()
}

func writeJiraCases(b *strings.Builder, heading string, cases []models.TestCase) {
	if len(cases) == 0 {
		return
	}

	fmt.Fprintf(b, "\n%s\n", heading)
	for i, tc := range cases {
		fmt.Fprintf(b, "\n%d. %s", i+1, tc.Title)
		if tc.Priority != "" {
			fmt.Fprintf(b, " (%s)", tc.Priority)
		}
		b.WriteString("\n")
		for _, step := range tc.Steps {
			fmt.Fprintf(b, "   - %s\n", step)
		}
		fmt.Fprintf(b, "   Expected: %s\n", tc.Expected)
		if tc.TestData != "" {
			fmt.Fprintf(b, "   Test data: %s\n", tc.TestData)
		}
	}
}

// JSON renders the plan as indented JSON with the contract field names.
func JSON(plan *models.TestPlan) (string, error) {
	out, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode plan: %w", err)
	}
	return string(out), nil
}
