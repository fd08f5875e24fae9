package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validOutput = `{
  "happy_path": [
    {"title": "User logs in with TOTP", "steps": ["open login", "enter code"], "expected": "session created", "priority": "critical"}
  ],
  "edge_cases": [
    {"title": "Expired code rejected", "steps": ["enter stale code"], "expected": "error shown", "category": "security"}
  ],
  "regression_checklist": ["password login still works"]
}`

func TestParseStrictJSON(t *testing.T) {
	plan, err := Parse(validOutput)
	require.NoError(t, err)

	require.Len(t, plan.HappyPath, 1)
	assert.Equal(t, "User logs in with TOTP", plan.HappyPath[0].Title)
	assert.Equal(t, []string{"open login", "enter code"}, plan.HappyPath[0].Steps)
	assert.Equal(t, "critical", plan.HappyPath[0].Priority)
	require.Len(t, plan.EdgeCases, 1)
	assert.Equal(t, "security", plan.EdgeCases[0].Category)
	assert.Equal(t, []string{"password login still works"}, plan.RegressionChecklist)
	assert.Empty(t, plan.IntegrationTests)
}

func TestParseRecoversFromFence(t *testing.T) {
	raw := "Here is the plan:\n```json\n" + validOutput + "\n```\nLet me know if you need more."

	plan, err := Parse(raw)
	require.NoError(t, err)
	assert.Len(t, plan.HappyPath, 1)
}

func TestParseRecoversFromProse(t *testing.T) {
	raw := "Sure! " + validOutput + " Hope this helps."

	plan, err := Parse(raw)
	require.NoError(t, err)
	assert.Len(t, plan.EdgeCases, 1)
}

func TestParseRepairsMalformedJSON(t *testing.T) {
	// Trailing comma and single quotes, the classic model sins.
	raw := `{
  "happy_path": [{"title": "works", "steps": ["a",], "expected": "ok"}],
  "edge_cases": [],
  "regression_checklist": ["nothing broke",],
}`

	plan, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "works", plan.HappyPath[0].Title)
}

func TestParseMissingSectionIsSchemaError(t *testing.T) {
	raw := "```json\n" + `{"happy_path": [], "regression_checklist": []}` + "\n```"

	_, err := Parse(raw)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Contains(t, schemaErr.Reasons[0], "edge_cases")
}

func TestParseNoJSONAtAll(t *testing.T) {
	_, err := Parse("I am unable to produce a test plan for this issue.")
	var schemaErr *SchemaError
	assert.ErrorAs(t, err, &schemaErr)
}

func TestParseLenientNestedCoercion(t *testing.T) {
	raw := `{
  "happy_path": [{"title": "no steps given", "expected": "still passes"}],
  "edge_cases": [{"title": "steps as string", "steps": "do the thing", "expected": "ok"}],
  "regression_checklist": [{"title": "checklist as objects"}]
}`

	plan, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, []string{}, plan.HappyPath[0].Steps)
	assert.Equal(t, []string{"do the thing"}, plan.EdgeCases[0].Steps)
	assert.Equal(t, []string{"checklist as objects"}, plan.RegressionChecklist)
}

func TestParseRejectsWrongContainerTypes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{
			"happy_path as string",
			`{"happy_path": "none", "edge_cases": [], "regression_checklist": []}`,
			"happy_path must be an array",
		},
		{
			"edge_cases as number",
			`{"happy_path": [], "edge_cases": 42, "regression_checklist": []}`,
			"edge_cases must be an array",
		},
		{
			"checklist as object",
			`{"happy_path": [], "edge_cases": [], "regression_checklist": {"a": 1}}`,
			"regression_checklist must be an array",
		},
		{
			"case element not an object",
			`{"happy_path": ["just a string"], "edge_cases": [], "regression_checklist": []}`,
			"happy_path[0] is not a test case object",
		},
	}

	for _, tc := range cases {
		_, err := Parse(tc.raw)
		var schemaErr *SchemaError
		require.ErrorAs(t, err, &schemaErr, tc.name)
		assert.Contains(t, schemaErr.Error(), tc.want, tc.name)
	}
}

func TestParseDropsUntitledCases(t *testing.T) {
	raw := `{
  "happy_path": [
    {"title": "  ", "steps": ["ghost"], "expected": "never"},
    {"title": "real case", "steps": ["go"], "expected": "ok"}
  ],
  "edge_cases": [],
  "regression_checklist": []
}`

	plan, err := Parse(raw)
	require.NoError(t, err)

	require.Len(t, plan.HappyPath, 1)
	assert.Equal(t, "real case", plan.HappyPath[0].Title)
	for _, tc := range plan.HappyPath {
		assert.NotEmpty(t, tc.Title)
	}
}

func TestParseRejectsSectionOfOnlyUntitledCases(t *testing.T) {
	raw := `{
  "happy_path": [{"title": "", "steps": [], "expected": ""}],
  "edge_cases": [],
  "regression_checklist": []
}`

	_, err := Parse(raw)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Contains(t, schemaErr.Error(), "happy_path has no case with a title")
}

func TestParseNormalizesPriorityCase(t *testing.T) {
	raw := `{
  "happy_path": [{"title": "t", "steps": [], "expected": "e", "priority": "Critical"}],
  "edge_cases": [],
  "regression_checklist": []
}`

	plan, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "critical", plan.HappyPath[0].Priority)
}
