// Package agent implements the bounded tool-calling conversation of
// spec.md §4.H: iteration-budget scaling, concurrent tool dispatch with
// preserved call order, <review> extraction, and recovery on exhaustion.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iemarjay/reviewbot/internal/domain"
	"github.com/iemarjay/reviewbot/internal/skills"
	"github.com/iemarjay/reviewbot/internal/tools"
)

const (
	maxTurnTokens      = 16384
	temperature        = 0.0
	maxDiffPromptChars = 100000
)

// IterationBudget scales the loop's turn cap by changed-file count
// (spec.md §4.H).
func IterationBudget(changedFileCount int) int {
	switch {
	case changedFileCount <= 5:
		return 10
	case changedFileCount <= 15:
		return 15
	default:
		return 20
	}
}

// Loop runs the bounded agent conversation. One Loop is built per
// process and reused across jobs; the sandbox executor is per-job and
// passed into Run instead.
type Loop struct {
	model ModelClient
	cache *reviewCache
}

// NewLoop builds a Loop against the given model client, with its own
// short-lived review cache (SPEC_FULL.md §4's supplemented prompt-cache
// feature) so a webhook redelivery for an already-reviewed commit
// short-circuits the whole tool-calling conversation.
func NewLoop(model ModelClient) *Loop {
	return &Loop{model: model, cache: newReviewCache(1000, 30*time.Minute)}
}

// Outcome is everything the worker needs to persist and publish after
// one run of the loop.
type Outcome struct {
	Review       Review
	Trace        []TraceTurn
	Iterations   int
	InputTokens  int
	OutputTokens int
	FromCache    bool
}

// Run drives the conversation to completion or budget exhaustion.
func (l *Loop) Run(ctx context.Context, executor *tools.Executor, systemPrompt string, toolNames []string, diff string) (Outcome, error) {
	if cached, ok := l.cache.Get(systemPrompt, diff); ok {
		return Outcome{Review: cached, FromCache: true}, nil
	}

	changed := skills.ExtractChangedFiles(diff)
	budget := IterationBudget(len(changed))

	toolSpecs := buildToolSpecs(toolNames)
	tr := newTrace()

	messages := []Message{
		{
			Role: "user",
			Content: []ContentBlock{
				{Type: "text", Text: buildInitialPrompt(diff, budget)},
			},
		},
	}

	var totalInputTokens, totalOutputTokens int
	iteration := 0

	for iteration < budget {
		iteration++

		resp, err := l.model.CreateMessage(ctx, ModelRequest{
			System:      systemPrompt,
			Messages:    messages,
			Tools:       toolSpecs,
			MaxTokens:   maxTurnTokens,
			Temperature: temperature,
		})
		if err != nil {
			return Outcome{}, fmt.Errorf("agent loop: %w", err)
		}

		totalInputTokens += resp.InputTokens
		totalOutputTokens += resp.OutputTokens

		assistantText := joinText(resp.Content)
		tr.append(TraceTurn{
			Iteration:    iteration,
			Role:         "assistant",
			Content:      assistantText,
			InputTokens:  intPtr(resp.InputTokens),
			OutputTokens: intPtr(resp.OutputTokens),
		})
		messages = append(messages, Message{Role: "assistant", Content: resp.Content})

		switch resp.StopReason {
		case StopEndTurn:
			review, err := ExtractReview(assistantText)
			if err != nil {
				break
			}
			l.cache.Put(systemPrompt, diff, review)
			return Outcome{
				Review:       review,
				Trace:        tr.Turns(),
				Iterations:   iteration,
				InputTokens:  totalInputTokens,
				OutputTokens: totalOutputTokens,
			}, nil

		case StopMaxTokens:
			messages = append(messages, Message{
				Role: "user",
				Content: []ContentBlock{
					{Type: "text", Text: "Finalize your review now within the remaining budget."},
				},
			})
			continue

		case StopToolUse:
			toolResults := l.dispatchToolCalls(ctx, executor, resp.Content, tr, iteration)
			messages = append(messages, Message{Role: "user", Content: toolResults})
			continue

		default:
			iteration = budget // force recovery below
		}
		break
	}

	return l.recover(tr, messages, iteration, totalInputTokens, totalOutputTokens)
}

// dispatchToolCalls runs every tool_use block concurrently and returns
// tool_result blocks in the original call order.
func (l *Loop) dispatchToolCalls(ctx context.Context, executor *tools.Executor, content []ContentBlock, tr *trace, iteration int) []ContentBlock {
	var calls []ContentBlock
	for _, block := range content {
		if block.Type == "tool_use" {
			calls = append(calls, block)
		}
	}

	results := make([]tools.Result, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			results[i] = tools.Dispatch(gctx, executor, tools.Call{
				ID:    call.ToolUseID,
				Name:  call.ToolName,
				Input: call.ToolInput,
			})
			return nil
		})
	}
	_ = g.Wait()

	blocks := make([]ContentBlock, len(results))
	for i, r := range results {
		blocks[i] = ContentBlock{
			Type:              "tool_result",
			ToolResultID:      r.ID,
			ToolResultContent: r.Content,
			IsError:           r.IsError,
		}
		tr.append(TraceTurn{
			Iteration:  iteration,
			Role:       "user",
			ToolName:   calls[i].ToolName,
			ToolInput:  string(calls[i].ToolInput),
			ToolResult: preview(r.Content),
		})
	}
	return blocks
}

// recover scans messages newest-first for an assistant text that parses
// as a valid review; failing that, synthesizes a minimal comment-verdict
// review explaining the exhaustion.
func (l *Loop) recover(tr *trace, messages []Message, iterations, inputTokens, outputTokens int) (Outcome, error) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != "assistant" {
			continue
		}
		if review, err := ExtractReview(joinText(messages[i].Content)); err == nil {
			return Outcome{
				Review:       review,
				Trace:        tr.Turns(),
				Iterations:   iterations,
				InputTokens:  inputTokens,
				OutputTokens: outputTokens,
			}, nil
		}
	}

	return Outcome{
		Review: Review{
			Verdict: domain.VerdictComment,
			Summary: "The review agent exhausted its iteration budget before producing a final verdict. No findings could be confirmed in the time available.",
		},
		Trace:        tr.Turns(),
		Iterations:   iterations,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
	}, nil
}

func buildInitialPrompt(diff string, budget int) string {
	truncated := diff
	marker := ""
	if len(diff) > maxDiffPromptChars {
		truncated = diff[:maxDiffPromptChars]
		marker = "\n\n[... diff truncated at 100000 characters ...]"
	}
	return fmt.Sprintf("You have %d iterations to investigate and finalize a review.\n\n```diff\n%s%s\n```", budget, truncated, marker)
}

func buildToolSpecs(names []string) []ToolSpec {
	specs := make([]ToolSpec, 0, len(names))
	for _, name := range names {
		specs = append(specs, ToolSpec{
			Name:        name,
			Description: toolDescription(name),
			InputSchema: toolInputSchema(name),
		})
	}
	return specs
}

func joinText(content []ContentBlock) string {
	var out string
	for _, b := range content {
		if b.Type == "text" {
			out += b.Text
		}
	}
	return out
}

func intPtr(i int) *int { return &i }

func toolDescription(name string) string {
	switch name {
	case "read_file":
		return "Read a file's contents from the sandbox."
	case "list_files":
		return "List tracked files, optionally filtered by a glob pattern."
	case "run_command":
		return "Run an allowlisted test/lint/git command."
	case "git_diff":
		return "Diff the working tree against a base SHA."
	case "search_content":
		return "Search file contents with ripgrep."
	case "find_files":
		return "Find files by name pattern."
	case "check_vulnerabilities":
		return "Look up known vulnerabilities for a list of packages."
	default:
		return ""
	}
}

func toolInputSchema(name string) json.RawMessage {
	switch name {
	case "read_file":
		return rawSchema(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`)
	case "list_files":
		return rawSchema(`{"type":"object","properties":{"pattern":{"type":"string"}}}`)
	case "run_command":
		return rawSchema(`{"type":"object","properties":{"command":{"type":"string"},"cwd":{"type":"string"}},"required":["command"]}`)
	case "git_diff":
		return rawSchema(`{"type":"object","properties":{"base_sha":{"type":"string"}},"required":["base_sha"]}`)
	case "search_content":
		return rawSchema(`{"type":"object","properties":{"pattern":{"type":"string"},"glob":{"type":"string"},"case_sensitive":{"type":"boolean"}},"required":["pattern"]}`)
	case "find_files":
		return rawSchema(`{"type":"object","properties":{"pattern":{"type":"string"},"type":{"type":"string"},"max_depth":{"type":"integer"}},"required":["pattern"]}`)
	case "check_vulnerabilities":
		return rawSchema(`{"type":"object","properties":{"ecosystem":{"type":"string"},"packages":{"type":"array","items":{"type":"object","properties":{"name":{"type":"string"},"version":{"type":"string"}}}}},"required":["ecosystem","packages"]}`)
	default:
		return rawSchema(`{"type":"object"}`)
	}
}

func rawSchema(s string) json.RawMessage {
	return json.RawMessage(s)
}
