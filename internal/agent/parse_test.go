package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iemarjay/reviewbot/internal/domain"
)

func TestExtractReview_HappyPath(t *testing.T) {
	text := `here's my review:
<review>
{"verdict":"request_changes","summary":"needs work","findings":[{"path":"main.go","line":10,"severity":"critical","title":"nil deref","body":"oops","skill":"go-safety"}]}
</review>
done`
	review, err := ExtractReview(text)
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictRequestChanges, review.Verdict)
	assert.Equal(t, "needs work", review.Summary)
	require.Len(t, review.Findings, 1)
	assert.Equal(t, "main.go", review.Findings[0].Path)
	assert.Equal(t, 10, review.Findings[0].Line)
	assert.Equal(t, domain.SeverityCritical, review.Findings[0].Severity)
	assert.Equal(t, "go-safety", review.Findings[0].Skill)
}

func TestExtractReview_TakesFirstBlockOnly(t *testing.T) {
	text := `<review>{"verdict":"approve","summary":"first","findings":[]}</review>
<review>{"verdict":"comment","summary":"second","findings":[]}</review>`
	review, err := ExtractReview(text)
	require.NoError(t, err)
	assert.Equal(t, "first", review.Summary)
	assert.Equal(t, domain.VerdictApprove, review.Verdict)
}

func TestExtractReview_StripsFencedJSONBlock(t *testing.T) {
	text := "<review>\n```json\n{\"verdict\":\"approve\",\"summary\":\"ok\",\"findings\":[]}\n```\n</review>"
	review, err := ExtractReview(text)
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictApprove, review.Verdict)
}

func TestExtractReview_NoBlockFound(t *testing.T) {
	_, err := ExtractReview("no review tags here")
	assert.Error(t, err)
}

func TestExtractReview_InvalidJSON(t *testing.T) {
	_, err := ExtractReview("<review>not json</review>")
	assert.Error(t, err)
}

func TestExtractReview_RejectsUnknownVerdict(t *testing.T) {
	_, err := ExtractReview(`<review>{"verdict":"reject","summary":"x","findings":[]}</review>`)
	assert.Error(t, err)
}

func TestExtractReview_DropsFindingsMissingPathOrLine(t *testing.T) {
	text := `<review>{"verdict":"comment","summary":"x","findings":[{"path":"main.go"},{"line":5},{"path":"ok.go","line":1}]}</review>`
	review, err := ExtractReview(text)
	require.NoError(t, err)
	require.Len(t, review.Findings, 1)
	assert.Equal(t, "ok.go", review.Findings[0].Path)
}

func TestExtractReview_FindingDefaults(t *testing.T) {
	text := `<review>{"verdict":"comment","summary":"x","findings":[{"path":"a.go","line":1}]}</review>`
	review, err := ExtractReview(text)
	require.NoError(t, err)
	require.Len(t, review.Findings, 1)
	f := review.Findings[0]
	assert.Equal(t, "unknown", f.Skill)
	assert.Equal(t, domain.SeveritySuggestion, f.Severity)
	assert.Equal(t, "Finding", f.Title)
	assert.Equal(t, "", f.Body)
	assert.Nil(t, f.EndLine)
}
