package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"brightwell/internal/tools"
)

const defaultMaxTokens = 4096

// AnthropicProvider implements Provider on the Anthropic Messages API.
// Safe for concurrent use; each Stream call owns its own SSE stream.
type AnthropicProvider struct {
	client anthropic.Client
}

// NewAnthropicProvider creates a provider authenticated with the given key.
func NewAnthropicProvider(apiKey string) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}, nil
}

// Stream implements Provider.
func (p *AnthropicProvider) Stream(ctx context.Context, req Request, emit func(Fragment)) (*Completion, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}

	stream := p.client.Messages.NewStreaming(ctx, params)

	var text strings.Builder
	var toolCalls []ToolCall
	var currentCall *ToolCall
	var currentArgs strings.Builder
	stopReason := ""

	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case "content_block_start":
			block := event.AsContentBlockStart().ContentBlock
			if block.Type == "tool_use" {
				use := block.AsToolUse()
				currentCall = &ToolCall{ID: use.ID, Name: use.Name}
				currentArgs.Reset()
				emit(Fragment{Kind: FragmentToolCallStart, ToolCallID: use.ID, ToolName: use.Name})
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					text.WriteString(delta.Text)
					emit(Fragment{Kind: FragmentText, Text: delta.Text})
				}
			case "thinking_delta":
				if delta.Thinking != "" {
					emit(Fragment{Kind: FragmentReasoning, Text: delta.Thinking})
				}
			case "input_json_delta":
				if delta.PartialJSON != "" && currentCall != nil {
					currentArgs.WriteString(delta.PartialJSON)
					emit(Fragment{Kind: FragmentToolCallDelta, ToolCallID: currentCall.ID, ArgsDelta: delta.PartialJSON})
				}
			}

		case "content_block_stop":
			if currentCall != nil {
				currentCall.Args = json.RawMessage(currentArgs.String())
				toolCalls = append(toolCalls, *currentCall)
				currentCall = nil
			}

		case "message_delta":
			if sr := event.AsMessageDelta().Delta.StopReason; sr != "" {
				stopReason = string(sr)
			}
		}
	}

	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("anthropic stream: %w", err)
	}

	return &Completion{
		Text:       text.String(),
		ToolCalls:  toolCalls,
		StopReason: stopReason,
	}, nil
}

// Complete implements Provider with a single blocking request.
func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (string, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return "", err
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}

func (p *AnthropicProvider) buildParams(req Request) (anthropic.MessageNewParams, error) {
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}

	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}

	if len(req.Tools) > 0 {
		converted, err := convertTools(req.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Tools = converted
	}

	return params, nil
}

func convertMessages(messages []Message) ([]anthropic.MessageParam, error) {
	result := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		var content []anthropic.ContentBlockParamUnion

		if msg.Text != "" {
			content = append(content, anthropic.NewTextBlock(msg.Text))
		}

		for _, tr := range msg.ToolResults {
			content = append(content, anthropic.NewToolResultBlock(tr.ToolCallID, tr.Content, tr.IsError))
		}

		for _, tc := range msg.ToolCalls {
			var input map[string]interface{}
			if err := json.Unmarshal(normalizeJSON(tc.Args), &input); err != nil {
				return nil, fmt.Errorf("invalid tool call args for %s: %w", tc.Name, err)
			}
			content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
		}

		if msg.Role == "assistant" {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}

	return result, nil
}

func convertTools(specs []tools.Spec) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(specs))

	for _, spec := range specs {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(spec.InputSchema, &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", spec.Name, err)
		}

		param := anthropic.ToolUnionParamOfTool(schema, spec.Name)
		if param.OfTool == nil {
			return nil, fmt.Errorf("invalid tool schema for %s: missing tool definition", spec.Name)
		}
		param.OfTool.Description = anthropic.String(spec.Description)
		result = append(result, param)
	}

	return result, nil
}

func normalizeJSON(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return raw
}
