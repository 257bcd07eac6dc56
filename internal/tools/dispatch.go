package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iemarjay/reviewbot/internal/apperr"
)

// Call is one tool invocation requested by the model.
type Call struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// Result is a tool's output, shaped for the model's tool_result block.
type Result struct {
	ID      string
	Content string
	IsError bool
}

// Dispatch runs one tool call against executor and never returns a Go
// error: failures are reported as Result.IsError so the caller can keep
// collecting the rest of a batch.
func Dispatch(ctx context.Context, executor *Executor, call Call) Result {
	content, err := dispatchOne(ctx, executor, call)
	if err != nil {
		wrapped := fmt.Errorf("%w: %s", apperr.ErrToolError, err)
		return Result{ID: call.ID, Content: wrapped.Error(), IsError: true}
	}
	return Result{ID: call.ID, Content: content}
}

func dispatchOne(ctx context.Context, executor *Executor, call Call) (string, error) {
	switch call.Name {
	case "read_file":
		var args struct {
			Path string `json:"path"`
		}
		if err := json.Unmarshal(call.Input, &args); err != nil {
			return "", fmt.Errorf("read_file: invalid input: %w", err)
		}
		return executor.ReadFile(args.Path)

	case "list_files":
		var args struct {
			Pattern string `json:"pattern"`
		}
		_ = json.Unmarshal(call.Input, &args)
		return executor.ListFiles(ctx, args.Pattern)

	case "run_command":
		var args struct {
			Command string `json:"command"`
			Cwd     string `json:"cwd"`
		}
		if err := json.Unmarshal(call.Input, &args); err != nil {
			return "", fmt.Errorf("run_command: invalid input: %w", err)
		}
		return executor.RunCommand(ctx, args.Command, args.Cwd)

	case "git_diff":
		var args struct {
			BaseSHA string `json:"base_sha"`
		}
		if err := json.Unmarshal(call.Input, &args); err != nil {
			return "", fmt.Errorf("git_diff: invalid input: %w", err)
		}
		return executor.GitDiff(ctx, args.BaseSHA)

	case "search_content":
		var args struct {
			Pattern       string `json:"pattern"`
			Glob          string `json:"glob"`
			CaseSensitive bool   `json:"case_sensitive"`
		}
		if err := json.Unmarshal(call.Input, &args); err != nil {
			return "", fmt.Errorf("search_content: invalid input: %w", err)
		}
		return executor.SearchContent(ctx, args.Pattern, args.Glob, args.CaseSensitive)

	case "find_files":
		var args struct {
			Pattern  string `json:"pattern"`
			Type     string `json:"type"`
			MaxDepth int    `json:"max_depth"`
		}
		if err := json.Unmarshal(call.Input, &args); err != nil {
			return "", fmt.Errorf("find_files: invalid input: %w", err)
		}
		return executor.FindFiles(ctx, args.Pattern, args.Type, args.MaxDepth)

	case "check_vulnerabilities":
		var args struct {
			Ecosystem string        `json:"ecosystem"`
			Packages  []VulnPackage `json:"packages"`
		}
		if err := json.Unmarshal(call.Input, &args); err != nil {
			return "", fmt.Errorf("check_vulnerabilities: invalid input: %w", err)
		}
		findings, err := CheckVulnerabilities(ctx, args.Ecosystem, args.Packages)
		if err != nil {
			return "", err
		}
		out, err := json.Marshal(findings)
		if err != nil {
			return "", fmt.Errorf("check_vulnerabilities: marshal findings: %w", err)
		}
		return string(out), nil

	default:
		return "", fmt.Errorf("unknown tool %q", call.Name)
	}
}

// Names lists every tool in the surface, used by the skill composer to
// build the union of tools a skill set requires.
func Names() []string {
	return []string{
		"read_file",
		"list_files",
		"run_command",
		"git_diff",
		"search_content",
		"find_files",
		"check_vulnerabilities",
	}
}
