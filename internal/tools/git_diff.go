package tools

import (
	"context"
	"fmt"
	"regexp"
)

var gitDiffShaRe = regexp.MustCompile(`^[0-9a-fA-F]{7,40}$`)

// GitDiff runs `git diff <base>...HEAD`, capped to maxDiffChars.
func (e *Executor) GitDiff(ctx context.Context, baseSHA string) (string, error) {
	if !gitDiffShaRe.MatchString(baseSHA) {
		return "", fmt.Errorf("git_diff: base_sha %q does not match required pattern", baseSHA)
	}

	out, err := e.runCapped(ctx, diffTimeout, e.workdir, maxDiffChars, "git", "diff", baseSHA+"...HEAD")
	if err != nil {
		return "", fmt.Errorf("git_diff: %w", err)
	}
	return out, nil
}
