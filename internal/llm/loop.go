package llm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"brightwell/internal/domain/models/chat"
	"brightwell/internal/tools"
)

// Finish reasons for a completed turn.
const (
	FinishStop      = "stop"
	FinishMaxRounds = "max-rounds"
	FinishTimeout   = "timeout"
)

// Sink receives everything a turn produces, in emission order. One sink per
// turn; calls arrive from the loop goroutine and, for Data, from concurrent
// tool executors.
type Sink interface {
	TextDelta(text string)
	ReasoningDelta(text string)
	ToolCallStart(callID, name string)
	ToolCallDelta(callID, argsDelta string)
	ToolCallResult(callID, name string, result map[string]any)
	Data(callID, name string, payload map[string]any)
}

// TurnInput describes one assistant turn to run.
type TurnInput struct {
	Mode     Mode
	System   string
	Messages []Message
	UserID   string
}

// TurnResult is the accumulated outcome of a turn: the assistant parts in
// emission order and why the loop stopped.
type TurnResult struct {
	Parts        []chat.Part
	FinishReason string
}

// Loop drives the model-tool rounds of one turn. A round is one model
// invocation; if the model requests tools, they execute and the loop invokes
// the model again with their results. The round cap is a hard limit on model
// invocations. Tools requested by the final round still execute, the model
// just never sees their results.
type Loop struct {
	provider  Provider
	registry  *tools.Registry
	maxRounds int
	logger    *slog.Logger
}

// NewLoop creates a turn loop.
func NewLoop(provider Provider, registry *tools.Registry, maxRounds int, logger *slog.Logger) *Loop {
	if maxRounds <= 0 {
		maxRounds = 5
	}
	return &Loop{
		provider:  provider,
		registry:  registry,
		maxRounds: maxRounds,
		logger:    logger,
	}
}

// Run executes the turn. The wall-clock budget comes in through ctx: when
// the deadline passes mid-turn, Run returns what accumulated so far with
// FinishTimeout rather than an error. Other provider failures return an
// error with no result.
func (l *Loop) Run(ctx context.Context, in TurnInput, sink Sink) (*TurnResult, error) {
	provider := l.provider
	if in.Mode.Reasoning {
		provider = WithReasoningExtraction(provider)
	}

	var specs []tools.Spec
	if in.Mode.Tools {
		specs = l.registry.Specs()
	}

	messages := make([]Message, len(in.Messages))
	copy(messages, in.Messages)

	emitter := &sinkEmitter{sink: sink}
	var parts []chat.Part

	for round := 1; round <= l.maxRounds; round++ {
		smoother := NewSmoother(func(f Fragment) { forward(sink, f) })

		comp, err := provider.Stream(ctx, Request{
			Model:     in.Mode.Model,
			System:    in.System,
			Messages:  messages,
			Tools:     specs,
			MaxTokens: in.Mode.MaxTokens,
		}, smoother.Feed)
		smoother.Flush()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				l.logger.WarnContext(ctx, "turn hit wall-clock budget", slog.Int("round", round))
				return &TurnResult{Parts: parts, FinishReason: FinishTimeout}, nil
			}
			return nil, err
		}

		if comp.Reasoning != "" {
			parts = append(parts, chat.ReasoningPart(comp.Reasoning))
		}
		if comp.Text != "" {
			parts = append(parts, chat.TextPart(comp.Text))
		}

		if len(comp.ToolCalls) == 0 {
			return &TurnResult{Parts: parts, FinishReason: FinishStop}, nil
		}

		calls := make([]tools.Call, len(comp.ToolCalls))
		for i, tc := range comp.ToolCalls {
			calls[i] = tools.Call{ID: tc.ID, Name: tc.Name, Args: tc.Args}
		}

		results := l.registry.ExecuteParallel(ctx, calls, in.UserID, emitter)

		toolResults := make([]ToolResult, len(calls))
		for i, call := range calls {
			transcript := results[i].Transcript()
			sink.ToolCallResult(call.ID, call.Name, transcript)

			parts = append(parts,
				chat.ToolCallPart(call.ID, call.Name, decodeArgs(call.Args)),
				chat.ToolResultPart(call.ID, call.Name, transcript),
			)

			content, _ := json.Marshal(transcript)
			toolResults[i] = ToolResult{
				ToolCallID: call.ID,
				Content:    string(content),
				IsError:    !results[i].OK,
			}
		}

		if round == l.maxRounds {
			l.logger.InfoContext(ctx, "turn hit round cap", slog.Int("rounds", round))
			return &TurnResult{Parts: parts, FinishReason: FinishMaxRounds}, nil
		}
		if ctx.Err() != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return &TurnResult{Parts: parts, FinishReason: FinishTimeout}, nil
			}
			return nil, ctx.Err()
		}

		messages = append(messages,
			Message{Role: "assistant", Text: comp.Text, ToolCalls: comp.ToolCalls},
			Message{Role: "user", ToolResults: toolResults},
		)
	}

	// Unreachable: the round cap return above always fires first.
	return &TurnResult{Parts: parts, FinishReason: FinishMaxRounds}, nil
}

func forward(sink Sink, f Fragment) {
	switch f.Kind {
	case FragmentText:
		sink.TextDelta(f.Text)
	case FragmentReasoning:
		sink.ReasoningDelta(f.Text)
	case FragmentToolCallStart:
		sink.ToolCallStart(f.ToolCallID, f.ToolName)
	case FragmentToolCallDelta:
		sink.ToolCallDelta(f.ToolCallID, f.ArgsDelta)
	}
}

func decodeArgs(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil
	}
	return args
}

// sinkEmitter adapts the turn sink to the tool side channel.
type sinkEmitter struct {
	sink Sink
}

func (e *sinkEmitter) Emit(toolCallID, name string, payload map[string]any) {
	e.sink.Data(toolCallID, name, payload)
}
