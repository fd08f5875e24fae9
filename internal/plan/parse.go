// Package plan validates raw model output into a TestPlan and renders
// plans for export. Validation is two-tier: the top-level shape is strict,
// the nested case fields are coerced leniently.
package plan

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/rs/zerolog/log"

	"github.com/planbot/pkg/models"
)

// requiredSections are the top-level keys the model must produce. A plan
// missing any of these is rejected outright; everything nested is coerced.
var requiredSections = []string{"happy_path", "edge_cases", "regression_checklist"}

// SchemaError reports why raw output could not become a TestPlan.
type SchemaError struct {
	Reasons []string
}

func (e *SchemaError) Error() string {
	return "test plan output rejected: " + strings.Join(e.Reasons, "; ")
}

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// Parse turns raw model output into a validated TestPlan. It tries the raw
// text as JSON first, then recovers from markdown fences and surrounding
// prose, then hands the candidate to jsonrepair before giving up.
func Parse(raw string) (*models.TestPlan, error) {
	candidate := extractJSON(raw)
	if candidate == "" {
		return nil, &SchemaError{Reasons: []string{"no JSON object found in output"}}
	}

	if !json.Valid([]byte(candidate)) {
		repaired, err := jsonrepair.JSONRepair(candidate)
		if err != nil {
			return nil, &SchemaError{Reasons: []string{fmt.Sprintf("unparseable JSON: %v", err)}}
		}
		log.Debug().Msg("model output needed JSON repair")
		candidate = repaired
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &top); err != nil {
		return nil, &SchemaError{Reasons: []string{"output is not a JSON object"}}
	}

	var reasons []string
	for _, key := range requiredSections {
		if _, ok := top[key]; !ok {
			reasons = append(reasons, "missing required section "+key)
		}
	}
	if len(reasons) > 0 {
		return nil, &SchemaError{Reasons: reasons}
	}

	happy, happyReasons := strictCases(top["happy_path"], "happy_path")
	edge, edgeReasons := strictCases(top["edge_cases"], "edge_cases")
	checklist, checklistReasons := strictChecklist(top["regression_checklist"])

	reasons = append(reasons, happyReasons...)
	reasons = append(reasons, edgeReasons...)
	reasons = append(reasons, checklistReasons...)
	if len(reasons) > 0 {
		return nil, &SchemaError{Reasons: reasons}
	}

	plan := &models.TestPlan{
		HappyPath:           happy,
		EdgeCases:           edge,
		RegressionChecklist: checklist,
		IntegrationTests:    coerceCases(top["integration_tests"]),
	}

	return plan, nil
}

// strictCases enforces the container contract for a required case section:
// it must be an array of objects, and a case without a title is unusable.
// Untitled cases are dropped; a section whose every case was dropped is a
// rejection, not a silent empty section.
func strictCases(raw json.RawMessage, key string) ([]models.TestCase, []string) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, []string{key + " must be an array of test case objects"}
	}

	cases := make([]models.TestCase, 0, len(elems))
	for i, elem := range elems {
		var lc looseCase
		if err := json.Unmarshal(elem, &lc); err != nil {
			return nil, []string{fmt.Sprintf("%s[%d] is not a test case object", key, i)}
		}
		if strings.TrimSpace(lc.Title) == "" {
			log.Debug().Str("section", key).Int("index", i).Msg("dropping untitled test case")
			continue
		}
		cases = append(cases, models.TestCase{
			Title:    lc.Title,
			Steps:    coerceSteps(lc.Steps),
			Expected: lc.Expected,
			TestData: lc.TestData,
			Priority: strings.ToLower(lc.Priority),
			Category: lc.Category,
		})
	}

	if len(elems) > 0 && len(cases) == 0 {
		return nil, []string{key + " has no case with a title"}
	}
	return cases, nil
}

// strictChecklist enforces that the checklist is an array. Elements stay
// lenient: strings, or objects whose title stands in for the line.
func strictChecklist(raw json.RawMessage) ([]string, []string) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, []string{"regression_checklist must be an array"}
	}

	items := make([]string, 0, len(elems))
	for i, elem := range elems {
		var s string
		if err := json.Unmarshal(elem, &s); err == nil {
			items = append(items, s)
			continue
		}
		var lc looseCase
		if err := json.Unmarshal(elem, &lc); err == nil && strings.TrimSpace(lc.Title) != "" {
			items = append(items, lc.Title)
			continue
		}
		return nil, []string{fmt.Sprintf("regression_checklist[%d] is neither a string nor a titled item", i)}
	}
	return items, nil
}

// extractJSON finds the JSON object inside raw output: verbatim, inside a
// markdown fence, or embedded in prose between the first "{" and the last
// "}".
func extractJSON(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return trimmed
	}

	if m := fencePattern.FindStringSubmatch(trimmed); m != nil {
		inner := strings.TrimSpace(m[1])
		if inner != "" {
			return inner
		}
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		return trimmed[start : end+1]
	}
	return ""
}

// looseCase tolerates the shapes models actually emit: steps as an array,
// a single string, or absent.
type looseCase struct {
	Title    string          `json:"title"`
	Steps    json.RawMessage `json:"steps"`
	Expected string          `json:"expected"`
	TestData string          `json:"test_data"`
	Priority string          `json:"priority"`
	Category string          `json:"category"`
}

func coerceCases(raw json.RawMessage) []models.TestCase {
	if len(raw) == 0 {
		return nil
	}

	var loose []looseCase
	if err := json.Unmarshal(raw, &loose); err != nil {
		return nil
	}

	cases := make([]models.TestCase, 0, len(loose))
	for _, lc := range loose {
		cases = append(cases, models.TestCase{
			Title:    lc.Title,
			Steps:    coerceSteps(lc.Steps),
			Expected: lc.Expected,
			TestData: lc.TestData,
			Priority: strings.ToLower(lc.Priority),
			Category: lc.Category,
		})
	}
	return cases
}

func coerceSteps(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return []string{}
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return []string{single}
	}
	return []string{}
}
