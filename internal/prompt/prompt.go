// Package prompt turns an aggregated context bundle into the payload sent
// to the LLM gateway: one instruction text plus ordered content parts
// (context text, then image references).
package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/planbot/pkg/models"
)

// MaxPromptChars bounds the total text size of one payload. Context beyond
// the budget is truncated, never the schema or the generation rules.
const MaxPromptChars = 60000

// Stage names, used as section markers inside the payload so provider logs
// and tests can tell the two framings apart.
const (
	StageAnalysis   = "CONTEXT ANALYSIS"
	StageGeneration = "TEST PLAN GENERATION"
)

// Part is one content part of a payload: text, downloaded image bytes, or
// a publicly fetchable image URL. Exactly one variant is set.
type Part struct {
	Text      string
	ImageData []byte
	ImageMIME string
	ImageURL  string
}

// Payload is the ordered multimodal input for one generation call.
type Payload struct {
	Parts []Part
}

// Text returns the concatenated text parts.
func (p Payload) Text() string {
	var b strings.Builder
	for _, part := range p.Parts {
		b.WriteString(part.Text)
	}
	return b.String()
}

// Images returns the image URLs in order.
func (p Payload) Images() []string {
	var urls []string
	for _, part := range p.Parts {
		if part.ImageURL != "" {
			urls = append(urls, part.ImageURL)
		}
	}
	return urls
}

// schemaContract is the exact output shape the model must produce. The
// field names are a published contract shared with the validator and the
// exporters.
const schemaContract = `Respond with a single JSON object and nothing else. No prose before or
after, no markdown fence. The object must have exactly this shape:

{
  "happy_path": [
    {"title": "...", "steps": ["...", "..."], "expected": "...", "test_data": "...", "priority": "critical|high|medium", "category": ""}
  ],
  "edge_cases": [
    {"title": "...", "steps": ["..."], "expected": "...", "test_data": "...", "priority": "...", "category": "security|boundary|error_handling|integration"}
  ],
  "regression_checklist": ["...", "..."],
  "integration_tests": [
    {"title": "...", "steps": ["..."], "expected": "...", "priority": "...", "category": "integration"}
  ]
}

"happy_path", "edge_cases" and "regression_checklist" are required.
"integration_tests" may be omitted when nothing external is involved.`

const analysisInstruction = `Before writing any test cases, analyze the context below. First classify
the ticket: a simple single-concern change, a change spanning multiple
concern areas, or a dependency/SDK update. Then identify the highest-risk
areas of the change. Your classification and risk assessment determine how
deep and broad the plan must be; state assumptions you had to make.`

const priorityCriteria = `Priority rules:
- critical: authentication, payments, data loss, or security exposure
- high: core user flows and data integrity
- medium: everything else
Order test cases within each section by priority, critical first.`

const exclusionRules = `Do NOT write test cases for build-time concerns: linting, type checking,
bundling, compilation, or CI pipeline configuration. Those are verified
before deployment; this plan covers runtime behavior only.`

const dependencyUpdateBias = `This change updates a dependency or SDK. Focus on regression coverage of
the features that consume the updated package, API-contract compatibility,
and version-specific behavior changes, rather than new-feature scenarios.`

// Build composes the payload for one bundle. Image attachments become
// separate image parts after the text, capped upstream by the aggregator.
func Build(bundle models.ContextBundle) (Payload, error) {
	if bundle.Issue.Key == "" {
		return Payload{}, fmt.Errorf("bundle has no issue")
	}

	var ctx strings.Builder
	writeAnalysisStage(&ctx, bundle)

	context := ctx.String()
	var rules strings.Builder
	writeGenerationStage(&rules, bundle)

	if len(context)+rules.Len() > MaxPromptChars {
		keep := MaxPromptChars - rules.Len()
		if keep < 0 {
			keep = 0
		}
		// Back off to a rune boundary so the cut never splits a
		// multi-byte character.
		for keep > 0 && !utf8.RuneStart(context[keep]) {
			keep--
		}
		log.Warn().Int("context_chars", len(context)).Int("kept", keep).
			Msg("context exceeds prompt budget, truncating")
		context = context[:keep] + "\n[context truncated]\n"
	}

	payload := Payload{Parts: []Part{{Text: context}}}
	shown := 0
	for _, img := range bundle.Images {
		// Tracker attachment URLs need the caller's credential; only
		// images whose bytes were already fetched can reach the model.
		if len(img.Data) == 0 {
			log.Debug().Str("filename", img.Filename).Msg("skipping image without downloaded bytes")
			continue
		}
		shown++
		payload.Parts = append(payload.Parts,
			Part{Text: fmt.Sprintf("\nAttached screenshot %d: %s\n", shown, img.Filename)},
			Part{ImageData: img.Data, ImageMIME: img.MimeType},
		)
	}
	payload.Parts = append(payload.Parts, Part{Text: rules.String()})

	return payload, nil
}

func writeAnalysisStage(b *strings.Builder, bundle models.ContextBundle) {
	issue := bundle.Issue

	fmt.Fprintf(b, "You are a senior QA engineer writing a test plan.\n\n=== %s ===\n\n", StageAnalysis)
	b.WriteString(analysisInstruction)
	b.WriteString("\n\n")
	fmt.Fprintf(b, "Issue %s (%s): %s\n", issue.Key, issue.Type, issue.Summary)
	if len(issue.Labels) > 0 {
		fmt.Fprintf(b, "Labels: %s\n", strings.Join(issue.Labels, ", "))
	}
	fmt.Fprintf(b, "\nDescription:\n%s\n", orPlaceholder(issue.Description, "(no description provided)"))

	if issue.Quality != nil && issue.Quality.IsWeak {
		b.WriteString("\nNote: the description is thin. Lean on the surrounding context below and state assumptions explicitly in test data.\n")
	}

	writeTestingContext(b, bundle.Testing)
	writeDevelopment(b, bundle.Development)
	writeLinked(b, bundle.Linked)
	writeParent(b, bundle.Parent)
	writeDesign(b, bundle.Design)

	if bundle.RepoDoc != "" {
		fmt.Fprintf(b, "\nRepository overview:\n%s\n", bundle.RepoDoc)
	}
}

func writeTestingContext(b *strings.Builder, tc models.TestingContext) {
	sections := []struct{ label, value string }{
		{"Acceptance criteria", tc.AcceptanceCriteria},
		{"Test data notes", tc.TestDataNotes},
		{"Environments", tc.Environments},
		{"Roles and permissions", tc.RolesPermissions},
		{"Out of scope", tc.OutOfScope},
		{"Risk areas", tc.RiskAreas},
		{"Special instructions", tc.SpecialInstructions},
	}

	wrote := false
	for _, s := range sections {
		if s.value == "" {
			continue
		}
		if !wrote {
			b.WriteString("\nTester-supplied guidance:\n")
			wrote = true
		}
		fmt.Fprintf(b, "- %s: %s\n", s.label, s.value)
	}
}

func writeDevelopment(b *strings.Builder, dev *models.DevelopmentActivity) {
	if dev == nil {
		return
	}
	b.WriteString("\nDevelopment activity:\n")

	for _, pr := range dev.PullRequests {
		fmt.Fprintf(b, "- PR %q [%s] %s -> %s\n", pr.Title, pr.Status, pr.SourceBranch, pr.DestinationBranch)
		if pr.Description != "" {
			fmt.Fprintf(b, "  %s\n", firstLines(pr.Description, 5))
		}
		for _, f := range pr.Files {
			fmt.Fprintf(b, "  file: %s (%s, +%d/-%d)\n", f.Filename, f.Status, f.Additions, f.Deletions)
		}
		for _, cm := range pr.Comments {
			fmt.Fprintf(b, "  review by %s: %s\n", cm.Author, firstLines(cm.Body, 3))
		}
	}
	for _, commit := range dev.Commits {
		fmt.Fprintf(b, "- commit: %s\n", firstLines(commit.Message, 1))
	}
	if len(dev.Branches) > 0 {
		fmt.Fprintf(b, "- branches: %s\n", strings.Join(dev.Branches, ", "))
	}
}

func writeLinked(b *strings.Builder, linked []models.LinkedIssue) {
	if len(linked) == 0 {
		return
	}
	b.WriteString("\nLinked issues:\n")
	for _, l := range linked {
		fmt.Fprintf(b, "- %s %s [%s]: %s\n", l.Relation, l.Key, l.Status, l.Summary)
	}
}

func writeParent(b *strings.Builder, parent *models.ParentContext) {
	if parent == nil {
		return
	}
	fmt.Fprintf(b, "\nParent issue %s: %s\n", parent.Key, parent.Summary)
	if parent.Description != "" {
		fmt.Fprintf(b, "%s\n", parent.Description)
	}
	if len(parent.Labels) > 0 {
		fmt.Fprintf(b, "Parent labels: %s\n", strings.Join(parent.Labels, ", "))
	}
	if parent.Design != nil {
		writeDesign(b, parent.Design)
	}
}

func writeDesign(b *strings.Builder, design *models.DesignContext) {
	if design == nil {
		return
	}
	fmt.Fprintf(b, "\nDesign file %q:\n", design.FileName)
	for _, frame := range design.Frames {
		fmt.Fprintf(b, "- %s: %s\n", strings.ToLower(frame.Type), frame.Name)
	}
	for _, comp := range design.Components {
		if comp.Description != "" {
			fmt.Fprintf(b, "- component: %s (%s)\n", comp.Name, comp.Description)
		} else {
			fmt.Fprintf(b, "- component: %s\n", comp.Name)
		}
	}
}

func writeGenerationStage(b *strings.Builder, bundle models.ContextBundle) {
	fmt.Fprintf(b, "\n=== %s ===\n\n", StageGeneration)

	if bundle.MultiCategory {
		b.WriteString("This issue spans several concern areas. Produce a thorough plan: cover each area in both happy-path and edge-case sections.\n\n")
	}
	if isDependencyUpdate(bundle) {
		b.WriteString(dependencyUpdateBias)
		b.WriteString("\n\n")
	}

	b.WriteString(exclusionRules)
	b.WriteString("\n\n")
	b.WriteString(priorityCriteria)
	b.WriteString("\n\n")
	b.WriteString(schemaContract)
	b.WriteString("\n")
}

// isDependencyUpdate detects SDK/package-bump changes from the issue title
// and linked development activity.
func isDependencyUpdate(bundle models.ContextBundle) bool {
	markers := []string{"upgrade", "bump", "update sdk", "update dependency", "dependency update", "sdk update"}
	candidates := []string{strings.ToLower(bundle.Issue.Summary)}

	if bundle.Development != nil {
		for _, pr := range bundle.Development.PullRequests {
			candidates = append(candidates, strings.ToLower(pr.Title))
		}
		for _, c := range bundle.Development.Commits {
			candidates = append(candidates, strings.ToLower(c.Message))
		}
	}

	for _, text := range candidates {
		for _, m := range markers {
			if strings.Contains(text, m) {
				return true
			}
		}
	}
	return false
}

func orPlaceholder(s, placeholder string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}

func firstLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, " ")
}
