// Package sandbox implements the one-per-repo working tree controller
// of spec.md §4.E: cold clone, warm refresh, and credential scrubbing.
package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/iemarjay/reviewbot/internal/apperr"
	"github.com/iemarjay/reviewbot/internal/ingest"
	"github.com/iemarjay/reviewbot/internal/scrub"
)

const (
	cloneTimeout  = 120 * time.Second
	fetchTimeout  = 60 * time.Second
	smallOpTimeout = 10 * time.Second
)

// Result reports what Setup did.
type Result struct {
	Cloned     bool
	DurationMs int64
}

// Controller manages one working tree per repository, identified by
// repo full name with "/" replaced by "--".
type Controller struct {
	baseDir string
}

// NewController builds a Controller rooted at baseDir.
func NewController(baseDir string) *Controller {
	return &Controller{baseDir: baseDir}
}

// WorkdirFor returns the sandbox directory for a repo full name.
func (c *Controller) WorkdirFor(repoFullName string) string {
	return filepath.Join(c.baseDir, strings.ReplaceAll(repoFullName, "/", "--"))
}

// Setup brings the sandbox for repoFullName to headSha on headRef,
// injecting token into the clone URL's userinfo for the duration of the
// git operations and always scrubbing it from the remote afterward.
func (c *Controller) Setup(ctx context.Context, repoFullName, cloneURL, headRef, headSha, token string) (Result, error) {
	if err := ingest.ValidateRefAndSHA(headRef, headSha); err != nil {
		return Result{}, &apperr.ValidationError{Field: "headRef/headSha", Message: err.Error()}
	}

	authedURL, err := injectToken(cloneURL, token)
	if err != nil {
		return Result{}, &apperr.SandboxError{Op: "inject_token", Message: err.Error(), Retryable: false}
	}
	quotedAuthedURL := shellQuoteSingle(authedURL)

	workdir := c.WorkdirFor(repoFullName)
	start := time.Now()

	var cloned bool
	if isGitWorkTree(ctx, workdir) {
		if err := c.warmRefresh(ctx, workdir, quotedAuthedURL, headRef, headSha); err != nil {
			return Result{}, &apperr.SandboxError{Op: "warm_refresh", Message: scrub.Error(err), Retryable: true}
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(workdir), 0o755); err != nil {
			return Result{}, &apperr.SandboxError{Op: "mkdir", Message: err.Error(), Retryable: true}
		}
		if err := c.coldClone(ctx, workdir, quotedAuthedURL, headRef, headSha); err != nil {
			return Result{}, &apperr.SandboxError{Op: "cold_clone", Message: scrub.Error(err), Retryable: true}
		}
		cloned = true
	}

	// Always rewrite the remote to the token-less URL so subsequent tool
	// invocations cannot read the credential.
	if err := c.run(ctx, workdir, smallOpTimeout, "git", "remote", "set-url", "origin", cloneURL); err != nil {
		return Result{}, &apperr.SandboxError{Op: "scrub_remote_url", Message: scrub.Error(err), Retryable: true}
	}

	return Result{Cloned: cloned, DurationMs: time.Since(start).Milliseconds()}, nil
}

func (c *Controller) warmRefresh(ctx context.Context, workdir, quotedAuthedURL, headRef, headSha string) error {
	if err := c.runShell(ctx, workdir, smallOpTimeout, fmt.Sprintf("git remote set-url origin %s", quotedAuthedURL)); err != nil {
		return err
	}

	refspec := fmt.Sprintf("+refs/heads/%s:refs/remotes/origin/%s", headRef, headRef)
	fetchOK := c.runShell(ctx, workdir, fetchTimeout, fmt.Sprintf("git fetch origin %s", refspec)) == nil
	if fetchOK && c.runShell(ctx, workdir, smallOpTimeout, fmt.Sprintf("git checkout -B %s origin/%s", headRef, headRef)) == nil {
		return c.finishWarm(ctx, workdir)
	}

	// Fallback: deleted branch or fork PR — fetch and checkout by SHA.
	if err := c.runShell(ctx, workdir, fetchTimeout, fmt.Sprintf("git fetch origin %s", headSha)); err != nil {
		return err
	}
	if err := c.runShell(ctx, workdir, smallOpTimeout, fmt.Sprintf("git checkout -B %s %s", headRef, headSha)); err != nil {
		return err
	}
	return c.finishWarm(ctx, workdir)
}

func (c *Controller) finishWarm(ctx context.Context, workdir string) error {
	if err := c.runShell(ctx, workdir, smallOpTimeout, "git reset --hard HEAD"); err != nil {
		return err
	}
	return c.runShell(ctx, workdir, smallOpTimeout, "git clean -fd")
}

func (c *Controller) coldClone(ctx context.Context, workdir, quotedAuthedURL, headRef, headSha string) error {
	cloneCmd := fmt.Sprintf("git clone --depth=50 %s %s", quotedAuthedURL, shellQuoteSingle(workdir))
	if err := c.runShell(ctx, "", cloneTimeout, cloneCmd); err != nil {
		return err
	}

	if err := c.runShell(ctx, workdir, smallOpTimeout, fmt.Sprintf("git checkout %s", headRef)); err == nil {
		return nil
	}

	if err := c.runShell(ctx, workdir, fetchTimeout, fmt.Sprintf("git fetch origin %s", headSha)); err != nil {
		return err
	}
	return c.runShell(ctx, workdir, smallOpTimeout, fmt.Sprintf("git checkout %s", headSha))
}

// run executes name with args directly (no shell), used for the final
// credential-scrub step where there is no interpolated URL to quote.
func (c *Controller) run(ctx context.Context, dir string, timeout time.Duration, name string, args ...string) error {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, string(out))
	}
	return nil
}

// runShell executes command through /bin/sh -c, used wherever a
// single-quoted, shell-interpolated URL is part of the command line.
func (c *Controller) runShell(ctx context.Context, dir string, timeout time.Duration, command string) error {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, "sh", "-c", command)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("sh -c %q: %w: %s", command, err, string(out))
	}
	return nil
}

func isGitWorkTree(ctx context.Context, workdir string) bool {
	if _, err := os.Stat(workdir); err != nil {
		return false
	}
	cctx, cancel := context.WithTimeout(ctx, smallOpTimeout)
	defer cancel()
	cmd := exec.CommandContext(cctx, "git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = workdir
	return cmd.Run() == nil
}

// injectToken rewrites cloneURL to carry token in its userinfo as
// x-access-token:<token>.
func injectToken(cloneURL, token string) (string, error) {
	idx := strings.Index(cloneURL, "://")
	if idx < 0 {
		return "", fmt.Errorf("clone url %q has no scheme", cloneURL)
	}
	scheme, rest := cloneURL[:idx+3], cloneURL[idx+3:]
	return fmt.Sprintf("%sx-access-token:%s@%s", scheme, token, rest), nil
}

// shellQuoteSingle single-quotes s for shell interpolation, escaping any
// interior single quote as '\''.
func shellQuoteSingle(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
