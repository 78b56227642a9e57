package chat

import (
	"encoding/json"
	"fmt"
)

// Part type tags.
const (
	PartText       = "text"
	PartReasoning  = "reasoning"
	PartToolCall   = "tool-call"
	PartToolResult = "tool-result"
	PartFile       = "file"
)

// Part is one tagged content element of a turn.
//
// The populated fields depend on the Type tag:
//   - text, reasoning: Text
//   - tool-call:       ToolCallID, ToolName, Args
//   - tool-result:     ToolCallID, ToolName, Result (success/failure shaped)
//   - file:            URL, MediaType
type Part struct {
	Type       string         `json:"type"`
	Text       string         `json:"text,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolName   string         `json:"tool_name,omitempty"`
	Args       map[string]any `json:"args,omitempty"`
	Result     map[string]any `json:"result,omitempty"`
	URL        string         `json:"url,omitempty"`
	MediaType  string         `json:"media_type,omitempty"`
}

// TextPart builds a plain text part.
func TextPart(text string) Part {
	return Part{Type: PartText, Text: text}
}

// ReasoningPart builds a reasoning-trace part.
func ReasoningPart(text string) Part {
	return Part{Type: PartReasoning, Text: text}
}

// ToolCallPart builds a tool-invocation-request part.
func ToolCallPart(callID, name string, args map[string]any) Part {
	return Part{Type: PartToolCall, ToolCallID: callID, ToolName: name, Args: args}
}

// ToolResultPart builds a tool-invocation-result part.
func ToolResultPart(callID, name string, result map[string]any) Part {
	return Part{Type: PartToolResult, ToolCallID: callID, ToolName: name, Result: result}
}

// ValidatePart checks the structural requirements of a part for its type tag.
// Inbound user parts are restricted to text and file.
func ValidatePart(p Part) error {
	switch p.Type {
	case PartText, PartReasoning:
		if p.Text == "" {
			return fmt.Errorf("%s part requires text", p.Type)
		}
	case PartToolCall:
		if p.ToolCallID == "" || p.ToolName == "" {
			return fmt.Errorf("tool-call part requires tool_call_id and tool_name")
		}
	case PartToolResult:
		if p.ToolCallID == "" {
			return fmt.Errorf("tool-result part requires tool_call_id")
		}
	case PartFile:
		if p.URL == "" {
			return fmt.Errorf("file part requires url")
		}
	default:
		return fmt.Errorf("unknown part type %q", p.Type)
	}
	return nil
}

// MarshalParts serializes a part sequence for JSONB storage.
// Order is preserved; the persistence layer treats the result as opaque.
func MarshalParts(parts []Part) ([]byte, error) {
	if parts == nil {
		parts = []Part{}
	}
	return json.Marshal(parts)
}

// UnmarshalParts restores a part sequence from JSONB storage.
func UnmarshalParts(data []byte) ([]Part, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var parts []Part
	if err := json.Unmarshal(data, &parts); err != nil {
		return nil, fmt.Errorf("decode parts: %w", err)
	}
	return parts, nil
}
