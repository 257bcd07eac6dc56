package tools

import (
	"context"
	"fmt"
	"strings"
)

// commandAllowlist is the static set of benign test runners, linters,
// and git subcommands run_command may execute. "cd" is deliberately
// absent: callers pass a working directory instead of chaining cd.
var commandAllowlist = []string{
	"go test",
	"go build",
	"go vet",
	"go fmt",
	"golangci-lint run",
	"npm test",
	"npm run",
	"yarn test",
	"pytest",
	"python -m pytest",
	"ruff check",
	"eslint",
	"git status",
	"git log",
	"git show",
	"git blame",
	"git ls-files",
}

// RunCommand executes command in cwd (relative to the sandbox root) if
// it contains no shell metacharacters and matches an allowlisted prefix.
func (e *Executor) RunCommand(ctx context.Context, command, cwd string) (string, error) {
	if hasShellMetachar(command) {
		return "", fmt.Errorf("run_command: command contains disallowed characters")
	}

	trimmed := strings.TrimSpace(command)
	if !isAllowlisted(trimmed) {
		return "", fmt.Errorf("run_command: %q is not an allowlisted command", trimmed)
	}

	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return "", fmt.Errorf("run_command: empty command")
	}

	dir := e.workdir
	if cwd != "" {
		dir = joinSandboxPath(e.workdir, cwd)
	}

	out, err := e.run(ctx, commandTimeout, dir, fields[0], fields[1:]...)
	if err != nil {
		return "", fmt.Errorf("run_command: %w", err)
	}
	return out, nil
}

func isAllowlisted(trimmed string) bool {
	for _, prefix := range commandAllowlist {
		if trimmed == prefix || strings.HasPrefix(trimmed, prefix+" ") {
			return true
		}
	}
	return false
}

func joinSandboxPath(workdir, cwd string) string {
	clean := normalizePath(cwd)
	if clean == "" {
		return workdir
	}
	return workdir + "/" + clean
}
