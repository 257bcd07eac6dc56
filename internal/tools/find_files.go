package tools

import (
	"context"
	"fmt"
)

const maxFindDepth = 15

// FindFiles runs `find . -maxdepth N [-type f|d] -name <pattern>`.
func (e *Executor) FindFiles(ctx context.Context, pattern, fileType string, maxDepth int) (string, error) {
	if hasShellMetachar(pattern) {
		return "", fmt.Errorf("find_files: pattern contains disallowed characters")
	}
	if maxDepth <= 0 || maxDepth > maxFindDepth {
		maxDepth = maxFindDepth
	}

	args := []string{".", "-maxdepth", fmt.Sprintf("%d", maxDepth)}
	switch fileType {
	case "f", "d":
		args = append(args, "-type", fileType)
	case "":
	default:
		return "", fmt.Errorf("find_files: type must be \"f\" or \"d\"")
	}
	args = append(args, "-name", pattern)

	out, err := e.run(ctx, commandTimeout, e.workdir, "find", args...)
	if err != nil {
		return "", fmt.Errorf("find_files: %w", err)
	}
	return capLines(out, maxFileListEntries), nil
}
