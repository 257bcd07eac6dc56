package agent

import (
	"context"
	"encoding/json"

	"github.com/iemarjay/reviewbot/internal/domain"
)

// Review is the parsed <review> envelope the model must emit (spec.md §6).
type Review struct {
	Verdict  domain.Verdict   `json:"verdict"`
	Summary  string           `json:"summary"`
	Findings []domain.Finding `json:"findings"`
}

// ContentBlock is one block of a model message: text, a tool_use
// request, or a tool_result reply.
type ContentBlock struct {
	Type string `json:"type"` // text|tool_use|tool_result

	Text string `json:"text,omitempty"`

	ToolUseID string          `json:"id,omitempty"`
	ToolName  string          `json:"name,omitempty"`
	ToolInput json.RawMessage `json:"input,omitempty"`

	ToolResultID      string `json:"tool_use_id,omitempty"`
	ToolResultContent string `json:"content,omitempty"`
	IsError           bool   `json:"is_error,omitempty"`
}

// Message is one turn in the conversation sent to the model.
type Message struct {
	Role    string         `json:"role"` // user|assistant
	Content []ContentBlock `json:"content"`
}

// ToolSpec describes one callable tool to the model.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ModelRequest is one turn's call to the language model.
type ModelRequest struct {
	System      string
	Messages    []Message
	Tools       []ToolSpec
	MaxTokens   int
	Temperature float64
}

// Stop reasons the loop dispatches on (spec.md §4.H).
const (
	StopEndTurn   = "end_turn"
	StopMaxTokens = "max_tokens"
	StopToolUse   = "tool_use"
)

// ModelResponse is the model's reply for one turn.
type ModelResponse struct {
	StopReason   string
	Content      []ContentBlock
	InputTokens  int
	OutputTokens int
}

// ModelClient is the boundary to the tool-calling language model.
type ModelClient interface {
	CreateMessage(ctx context.Context, req ModelRequest) (ModelResponse, error)
}
