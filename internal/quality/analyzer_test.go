package quality

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planbot/pkg/models"
)

func TestAnalyze_MissingDescription(t *testing.T) {
	for _, desc := range []string{"", "   ", "\n\t"} {
		q := Analyze(desc, models.TypeStory, DefaultConfig())
		assert.False(t, q.HasDescription)
		assert.True(t, q.IsWeak)
		require.NotEmpty(t, q.Warnings)
		assert.Zero(t, q.CharCount)
		assert.Zero(t, q.WordCount)
	}
}

func TestAnalyze_ShortDescriptionIsWeak(t *testing.T) {
	q := Analyze("fix the button", models.TypeBug, DefaultConfig())

	assert.True(t, q.HasDescription)
	assert.True(t, q.IsWeak)
	require.NotEmpty(t, q.Warnings)
	assert.Contains(t, q.Warnings[0], "very short")
	assert.Equal(t, 14, q.CharCount)
	assert.Equal(t, 3, q.WordCount)
}

func TestAnalyze_AcceptanceCriteriaDetected(t *testing.T) {
	desc := "Given a signed-in user, when they open the settings page, " +
		"then the notification toggle must reflect the stored preference and changes are verified on reload."

	q := Analyze(desc, models.TypeStory, DefaultConfig())

	assert.True(t, q.HasDescription)
	assert.False(t, q.IsWeak)
	assert.Empty(t, q.Warnings)
}

func TestAnalyze_NoAcceptanceCriteriaWarnsForStoryAndBug(t *testing.T) {
	desc := strings.Repeat("the new dashboard layout rearranges widgets into a responsive grid ", 3)

	for _, typ := range []models.IssueType{models.TypeStory, models.TypeBug} {
		q := Analyze(desc, typ, DefaultConfig())
		assert.True(t, q.IsWeak, "type %s", typ)
		assert.Contains(t, strings.Join(q.Warnings, " "), "acceptance criteria", "type %s", typ)
	}

	// Tasks are not held to the acceptance-criteria standard.
	q := Analyze(desc, models.TypeTask, DefaultConfig())
	for _, w := range q.Warnings {
		assert.NotContains(t, w, "acceptance criteria")
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	desc := "short one"
	first := Analyze(desc, models.TypeBug, DefaultConfig())
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Analyze(desc, models.TypeBug, DefaultConfig()))
	}
}

func TestAnalyze_ConfigurableThreshold(t *testing.T) {
	cfg := Config{MinChars: 5, MinWords: 1}
	q := Analyze("verify login works", models.TypeTask, cfg)
	assert.False(t, q.IsWeak)
}
