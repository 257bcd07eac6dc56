package skills

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchGlob_LiteralMatch(t *testing.T) {
	assert.True(t, MatchGlob("main.go", "main.go"))
	assert.False(t, MatchGlob("main.go", "other.go"))
}

func TestMatchGlob_StarWithinSegment(t *testing.T) {
	assert.True(t, MatchGlob("*.go", "main.go"))
	assert.False(t, MatchGlob("*.go", "pkg/mainXgo"))
}

func TestMatchGlob_GlobstarSpansSlash(t *testing.T) {
	assert.True(t, MatchGlob("**/*.go", "pkg/internal/main.go"))
	assert.True(t, MatchGlob("**/*.go", "main.go"))
}

func TestMatchGlob_AnchoredAtSegmentBoundary(t *testing.T) {
	assert.True(t, MatchGlob("*.go", "pkg/main.go"))
	assert.False(t, MatchGlob("*.go", "pkg/mainXgo"))
}

func TestMatchGlob_PrefixThenGlobstarMatchesImmediateChild(t *testing.T) {
	// src/**/*.ts must match src/a.ts directly, not only deeper paths
	// like src/x/y.ts: "**" matches zero directories too.
	assert.True(t, MatchGlob("src/**/*.ts", "src/a.ts"))
	assert.True(t, MatchGlob("src/**/*.ts", "src/x/y.ts"))
	assert.False(t, MatchGlob("src/**/*.ts", "other/a.ts"))
}

func TestMatchGlob_DirectoryPrefixGlobstar(t *testing.T) {
	assert.True(t, MatchGlob("vendor/**", "vendor/a/b/c.go"))
	assert.False(t, MatchGlob("vendor/**", "other/a/b/c.go"))
}

func TestMatchGlob_NoMatchWhenPatternLongerThanPath(t *testing.T) {
	assert.False(t, MatchGlob("pkg/internal/main.go", "main.go"))
}

func TestMatchGlob_EmptyPatternOnlyMatchesEmptyPath(t *testing.T) {
	assert.True(t, MatchGlob("", ""))
	assert.False(t, MatchGlob("", "main.go"))
}
