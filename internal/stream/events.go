// Package stream defines the wire protocol a turn is delivered over: a
// line-delimited, SSE-framed sequence of tagged events multiplexing model
// output fragments with tool side-channel data onto one HTTP response.
package stream

import (
	"encoding/json"
	"fmt"
)

// Event kinds.
const (
	KindTextDelta      = "text-delta"
	KindReasoningDelta = "reasoning-delta"
	KindToolCallStart  = "tool-call-start"
	KindToolCallDelta  = "tool-call-delta"
	KindToolCallResult = "tool-call-result"
	KindData           = "data"
	KindError          = "error"
	KindFinish         = "finish"
)

// TextDeltaEvent carries incremental visible text.
type TextDeltaEvent struct {
	Delta string `json:"delta"`
}

// ReasoningDeltaEvent carries incremental reasoning-trace text.
type ReasoningDeltaEvent struct {
	Delta string `json:"delta"`
}

// ToolCallStartEvent announces a tool invocation.
type ToolCallStartEvent struct {
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
}

// ToolCallDeltaEvent carries (partial) JSON-encoded tool arguments.
type ToolCallDeltaEvent struct {
	ToolCallID string `json:"tool_call_id"`
	ArgsDelta  string `json:"args_delta"`
}

// ToolCallResultEvent carries a tool's final success/failure-shaped result.
type ToolCallResultEvent struct {
	ToolCallID string         `json:"tool_call_id"`
	ToolName   string         `json:"tool_name"`
	Result     map[string]any `json:"result"`
}

// DataEvent is a tool side-channel event: progress text, generated asset
// URLs, and similar payloads intended for immediate client rendering rather
// than for the model's context.
type DataEvent struct {
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Name       string         `json:"name"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// ErrorEvent is an in-band terminal error. It is always followed by a finish
// event; the HTTP status stays 200 because headers were already flushed.
type ErrorEvent struct {
	Message string `json:"message"`
}

// FinishEvent terminates every stream exactly once.
type FinishEvent struct {
	Reason         string `json:"reason"` // "stop", "max-rounds", "timeout", "error"
	ConversationID string `json:"chat_id,omitempty"`
	TurnID         string `json:"turn_id,omitempty"`
}

// Format frames an event for transmission:
//
//	event: text-delta
//	data: {"delta":"hello"}
//	<blank line>
func Format(kind string, data interface{}) (string, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s event: %w", kind, err)
	}

	return fmt.Sprintf("event: %s\ndata: %s\n\n", kind, string(jsonData)), nil
}
