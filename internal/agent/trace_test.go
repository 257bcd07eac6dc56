package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrace_AppendAssignsSequentialTurnNumbers(t *testing.T) {
	tr := newTrace()
	tr.append(TraceTurn{Role: "user"})
	tr.append(TraceTurn{Role: "assistant"})
	tr.append(TraceTurn{Role: "tool"})

	turns := tr.Turns()
	assert.Equal(t, 1, turns[0].TurnNumber)
	assert.Equal(t, 2, turns[1].TurnNumber)
	assert.Equal(t, 3, turns[2].TurnNumber)
}

func TestTrace_AppendPreservesFields(t *testing.T) {
	tr := newTrace()
	tr.append(TraceTurn{Role: "tool", ToolName: "read_file", Content: "body"})

	turns := tr.Turns()
	assert.Equal(t, "read_file", turns[0].ToolName)
	assert.Equal(t, "body", turns[0].Content)
}

func TestPreview_ShorterThanCapReturnsUnchanged(t *testing.T) {
	s := "a short string"
	assert.Equal(t, s, preview(s))
}

func TestPreview_TruncatesAtCap(t *testing.T) {
	s := strings.Repeat("x", previewLen+500)
	got := preview(s)
	assert.Len(t, got, previewLen)
}

func TestPreview_ExactlyAtCapReturnsUnchanged(t *testing.T) {
	s := strings.Repeat("y", previewLen)
	assert.Equal(t, s, preview(s))
}
