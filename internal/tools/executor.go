// Package tools implements the sandboxed tool surface of spec.md §4.F:
// seven functions over a validated sandbox workdir. The listing, search,
// command and diff tools cap their output and scrub credentials from
// subprocess errors; read_file and check_vulnerabilities return their
// output uncapped.
package tools

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"time"

	"github.com/iemarjay/reviewbot/internal/scrub"
)

const (
	maxFileListEntries = 500
	maxOutputChars     = 30000
	maxDiffChars       = 50000

	commandTimeout = 30 * time.Second
	diffTimeout    = 15 * time.Second
)

// shellMetachar matches any character run_command/search_content/
// find_files must reject from user-controlled fields.
var shellMetachar = regexp.MustCompile("[;|&`$(){}<>\n\r\\\\!\"#~]")

// Executor runs subprocesses rooted at one sandbox workdir.
type Executor struct {
	workdir string
}

// NewExecutor builds an Executor over workdir.
func NewExecutor(workdir string) *Executor {
	return &Executor{workdir: workdir}
}

// Workdir returns the sandbox root this executor is bound to.
func (e *Executor) Workdir() string {
	return e.workdir
}

func (e *Executor) run(ctx context.Context, timeout time.Duration, cwd string, name string, args ...string) (string, error) {
	return e.runCapped(ctx, timeout, cwd, maxOutputChars, name, args...)
}

func (e *Executor) runCapped(ctx context.Context, timeout time.Duration, cwd string, maxChars int, name string, args ...string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, name, args...)
	cmd.Dir = cwd
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s", scrub.Error(fmt.Errorf("%s: %w: %s", name, err, truncate(string(out), maxChars))))
	}
	return truncate(string(out), maxChars), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func hasShellMetachar(s string) bool {
	return shellMetachar.MatchString(s)
}
