package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGitDiff_RejectsInvalidSHA(t *testing.T) {
	e := NewExecutor(t.TempDir())
	_, err := e.GitDiff(t.Context(), "not-a-sha")
	assert.Error(t, err)
}

func TestGitDiff_RejectsShortSHABelowMinimum(t *testing.T) {
	e := NewExecutor(t.TempDir())
	_, err := e.GitDiff(t.Context(), "abc12")
	assert.Error(t, err)
}

func TestGitDiff_AcceptsSHABoundaryLengths(t *testing.T) {
	assert.True(t, gitDiffShaRe.MatchString("abc1234"))
	assert.True(t, gitDiffShaRe.MatchString("0123456789abcdef0123456789abcdef01234567"))
	assert.False(t, gitDiffShaRe.MatchString("abc123"))
}
