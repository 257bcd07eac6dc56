package tools

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath_DropsDotAndEmptySegments(t *testing.T) {
	assert.Equal(t, "a/b", normalizePath("./a//b/."))
}

func TestNormalizePath_PopsSegmentOnDotDot(t *testing.T) {
	assert.Equal(t, "b", normalizePath("a/../b"))
}

func TestNormalizePath_CannotTraverseAboveRoot(t *testing.T) {
	assert.Equal(t, "", normalizePath("../.."))
	assert.Equal(t, "etc/passwd", normalizePath("../../etc/passwd"))
}

func TestReadFile_ReadsWithinSandbox(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main"), 0o644))

	e := NewExecutor(dir)
	content, err := e.ReadFile("main.go")
	require.NoError(t, err)
	assert.Equal(t, "package main", content)
}

func TestReadFile_TraversalIsNeutralizedNotEscaped(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "passwd"), []byte("secret"), 0o644))

	e := NewExecutor(dir)
	// "../../../../etc/passwd" normalizes to "etc/passwd" inside the
	// sandbox root, not a real filesystem escape, so this looks for a
	// file that doesn't exist rather than reading outside dir.
	_, err := e.ReadFile("../../../../etc/passwd")
	assert.Error(t, err)

	content, err := e.ReadFile("../../passwd")
	require.NoError(t, err)
	assert.Equal(t, "secret", content)
}

func TestReadFile_RejectsNullByte(t *testing.T) {
	dir := t.TempDir()
	e := NewExecutor(dir)
	_, err := e.ReadFile("main.go\x00.txt")
	assert.Error(t, err)
}

func TestReadFile_NormalizesDotDotWithinSandbox(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main"), 0o644))

	e := NewExecutor(dir)
	content, err := e.ReadFile("sub/../main.go")
	require.NoError(t, err)
	assert.Equal(t, "package main", content)
}
