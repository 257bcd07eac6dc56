package tools

import (
	"context"
	"fmt"
	"strings"
)

// ListFiles runs `git ls-files` optionally filtered by pattern.
func (e *Executor) ListFiles(ctx context.Context, pattern string) (string, error) {
	if pattern != "" && hasShellMetachar(pattern) {
		return "", fmt.Errorf("list_files: pattern contains disallowed characters")
	}

	args := []string{"ls-files"}
	if pattern != "" {
		args = append(args, "--", pattern)
	}

	out, err := e.run(ctx, commandTimeout, e.workdir, "git", args...)
	if err != nil {
		return "", fmt.Errorf("list_files: %w", err)
	}
	return capLines(out, maxFileListEntries), nil
}

func capLines(s string, max int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= max {
		return s
	}
	return strings.Join(lines[:max], "\n")
}
