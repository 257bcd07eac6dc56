package tools

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/iemarjay/reviewbot/internal/scrub"
)

const searchMaxMatches = 200

// SearchContent runs ripgrep for pattern, optionally scoped to glob and
// case sensitivity. Executed directly (not via run_command) since ripgrep's
// own exit code of 1 with empty stderr means "no matches", not an error.
func (e *Executor) SearchContent(ctx context.Context, pattern, glob string, caseSensitive bool) (string, error) {
	if hasShellMetachar(pattern) {
		return "", fmt.Errorf("search_content: pattern contains disallowed characters")
	}
	if glob != "" && hasShellMetachar(glob) {
		return "", fmt.Errorf("search_content: glob contains disallowed characters")
	}

	args := []string{"--no-heading", "--line-number", "-m", fmt.Sprintf("%d", searchMaxMatches)}
	if !caseSensitive {
		args = append(args, "-i")
	}
	if glob != "" {
		args = append(args, "--glob", glob)
	}
	args = append(args, pattern)

	cctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, "rg", args...)
	cmd.Dir = e.workdir
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 && len(exitErr.Stderr) == 0 {
			return "", nil
		}
		return "", fmt.Errorf("search_content: %s", scrub.Error(err))
	}
	return truncate(string(out), maxOutputChars), nil
}
