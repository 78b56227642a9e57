// Package llm holds the model provider abstraction and the per-turn
// orchestration loop: streaming fragments in, tool rounds out.
package llm

import (
	"context"
	"encoding/json"

	"brightwell/internal/tools"
)

// Fragment kinds emitted while a model invocation streams.
const (
	FragmentText          = "text"
	FragmentReasoning     = "reasoning"
	FragmentToolCallStart = "tool-call-start"
	FragmentToolCallDelta = "tool-call-delta"
)

// Fragment is one incremental piece of a streaming model invocation.
// The populated fields depend on Kind: text and reasoning carry Text,
// tool-call-start carries ToolCallID and ToolName, tool-call-delta carries
// ToolCallID and ArgsDelta.
type Fragment struct {
	Kind       string
	Text       string
	ToolCallID string
	ToolName   string
	ArgsDelta  string
}

// ToolCall is a complete tool invocation requested by the model.
type ToolCall struct {
	ID   string
	Name string
	Args json.RawMessage
}

// ToolResult carries one executed tool's outcome back to the model.
type ToolResult struct {
	ToolCallID string
	Content    string
	IsError    bool
}

// Message is one entry of the transcript sent to the model.
type Message struct {
	Role        string // "user" or "assistant"
	Text        string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// Request describes one model invocation.
type Request struct {
	Model     string
	System    string
	Messages  []Message
	Tools     []tools.Spec
	MaxTokens int
}

// Completion is the accumulated outcome of one streamed invocation.
// Reasoning is populated only when a middleware separates it from Text.
type Completion struct {
	Text       string
	Reasoning  string
	ToolCalls  []ToolCall
	StopReason string
}

// Provider is one model backend.
type Provider interface {
	// Stream invokes the model once, calling emit for each fragment as it
	// arrives, and returns the accumulated completion. emit is called from
	// a single goroutine in arrival order.
	Stream(ctx context.Context, req Request, emit func(Fragment)) (*Completion, error)

	// Complete invokes the model without streaming and returns the full
	// response text. Used for short utility generations like titles.
	Complete(ctx context.Context, req Request) (string, error)
}
