package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"brightwell/internal/domain/models/chat"
	"brightwell/internal/tools"
)

// scriptedProvider replays one scripted round per Stream call.
type scriptedProvider struct {
	mu       sync.Mutex
	rounds   []scriptedRound
	requests []Request
}

type scriptedRound struct {
	fragments  []Fragment
	completion Completion
	err        error
}

func (p *scriptedProvider) Stream(ctx context.Context, req Request, emit func(Fragment)) (*Completion, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	if len(p.rounds) == 0 {
		p.mu.Unlock()
		return &Completion{StopReason: "end_turn"}, nil
	}
	round := p.rounds[0]
	p.rounds = p.rounds[1:]
	p.mu.Unlock()

	if round.err != nil {
		return nil, round.err
	}
	for _, f := range round.fragments {
		emit(f)
	}
	comp := round.completion
	return &comp, nil
}

func (p *scriptedProvider) Complete(ctx context.Context, req Request) (string, error) {
	return "", errors.New("not scripted")
}

func (p *scriptedProvider) streamCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// recordingSink captures sink calls in order.
type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (s *recordingSink) record(e string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) TextDelta(text string)          { s.record("text:" + text) }
func (s *recordingSink) ReasoningDelta(text string)     { s.record("reasoning:" + text) }
func (s *recordingSink) ToolCallStart(id, name string)  { s.record("start:" + name) }
func (s *recordingSink) ToolCallDelta(id, delta string) { s.record("delta:" + delta) }
func (s *recordingSink) ToolCallResult(id, name string, result map[string]any) {
	s.record("result:" + name)
}
func (s *recordingSink) Data(id, name string, payload map[string]any) { s.record("data:" + name) }

func (s *recordingSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

// echoTool succeeds and reports its args back.
type echoTool struct{ name string }

func (e *echoTool) Spec() tools.Spec {
	return tools.Spec{Name: e.name, Description: "echo", InputSchema: json.RawMessage(`{"type":"object"}`)}
}

func (e *echoTool) Execute(ctx context.Context, inv *tools.Invocation) tools.Result {
	return tools.Ok("echoed", map[string]any{"args": inv.Args})
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	registry := tools.NewRegistry()
	registry.MustRegister(&echoTool{name: "echo"})
	return registry
}

func chatMode(useTools bool) Mode {
	return Mode{ID: "test", Model: "test-model", MaxTokens: 1024, Tools: useTools}
}

func TestLoop_SingleRoundStop(t *testing.T) {
	provider := &scriptedProvider{rounds: []scriptedRound{{
		fragments:  []Fragment{{Kind: FragmentText, Text: "hello "}, {Kind: FragmentText, Text: "there"}},
		completion: Completion{Text: "hello there", StopReason: "end_turn"},
	}}}

	loop := NewLoop(provider, testRegistry(t), 5, testLogger())
	sink := &recordingSink{}

	result, err := loop.Run(context.Background(), TurnInput{
		Mode:     chatMode(true),
		Messages: []Message{{Role: "user", Text: "hi"}},
	}, sink)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.FinishReason != FinishStop {
		t.Errorf("finish reason = %q, want %q", result.FinishReason, FinishStop)
	}
	if len(result.Parts) != 1 || result.Parts[0].Type != chat.PartText || result.Parts[0].Text != "hello there" {
		t.Errorf("parts = %+v", result.Parts)
	}
	if provider.streamCalls() != 1 {
		t.Errorf("stream calls = %d, want 1", provider.streamCalls())
	}
}

func TestLoop_ToolRound(t *testing.T) {
	provider := &scriptedProvider{rounds: []scriptedRound{
		{
			fragments: []Fragment{
				{Kind: FragmentText, Text: "let me check "},
				{Kind: FragmentToolCallStart, ToolCallID: "c1", ToolName: "echo"},
				{Kind: FragmentToolCallDelta, ToolCallID: "c1", ArgsDelta: `{"q":"x"}`},
			},
			completion: Completion{
				Text:       "let me check ",
				ToolCalls:  []ToolCall{{ID: "c1", Name: "echo", Args: json.RawMessage(`{"q":"x"}`)}},
				StopReason: "tool_use",
			},
		},
		{
			fragments:  []Fragment{{Kind: FragmentText, Text: "found it"}},
			completion: Completion{Text: "found it", StopReason: "end_turn"},
		},
	}}

	loop := NewLoop(provider, testRegistry(t), 5, testLogger())
	sink := &recordingSink{}

	result, err := loop.Run(context.Background(), TurnInput{
		Mode:     chatMode(true),
		Messages: []Message{{Role: "user", Text: "check x"}},
	}, sink)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.FinishReason != FinishStop {
		t.Errorf("finish reason = %q", result.FinishReason)
	}

	// Parts: round-1 text, tool call, tool result, round-2 text.
	types := make([]string, len(result.Parts))
	for i, p := range result.Parts {
		types[i] = p.Type
	}
	want := []string{chat.PartText, chat.PartToolCall, chat.PartToolResult, chat.PartText}
	if len(types) != len(want) {
		t.Fatalf("part types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("part types = %v, want %v", types, want)
		}
	}

	if result.Parts[2].Result["success"] != true {
		t.Errorf("tool result part = %+v", result.Parts[2].Result)
	}

	// The second request must carry the tool exchange back to the model.
	second := provider.requests[1]
	last := second.Messages[len(second.Messages)-1]
	if len(last.ToolResults) != 1 || last.ToolResults[0].ToolCallID != "c1" {
		t.Errorf("second round messages missing tool results: %+v", last)
	}
	if last.ToolResults[0].IsError {
		t.Error("echo result should not be an error")
	}

	// Sink order: deltas of round one, then the result, then round two text.
	events := sink.all()
	wantEvents := []string{"text:let me check ", "start:echo", `delta:{"q":"x"}`, "data:finish", "result:echo", "text:found ", "text:it"}
	if len(events) != len(wantEvents) {
		t.Fatalf("sink events = %v", events)
	}
	for i := range wantEvents {
		if events[i] != wantEvents[i] {
			t.Fatalf("sink events = %v, want %v", events, wantEvents)
		}
	}
}

func TestLoop_RoundCap(t *testing.T) {
	// Every round requests another tool call; the cap must stop it.
	alwaysTools := scriptedRound{
		completion: Completion{
			ToolCalls:  []ToolCall{{ID: "c", Name: "echo", Args: json.RawMessage(`{}`)}},
			StopReason: "tool_use",
		},
	}
	provider := &scriptedProvider{rounds: []scriptedRound{alwaysTools, alwaysTools, alwaysTools, alwaysTools}}

	loop := NewLoop(provider, testRegistry(t), 2, testLogger())
	sink := &recordingSink{}

	result, err := loop.Run(context.Background(), TurnInput{
		Mode:     chatMode(true),
		Messages: []Message{{Role: "user", Text: "go"}},
	}, sink)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.FinishReason != FinishMaxRounds {
		t.Errorf("finish reason = %q, want %q", result.FinishReason, FinishMaxRounds)
	}
	if provider.streamCalls() != 2 {
		t.Errorf("stream calls = %d, want exactly the cap", provider.streamCalls())
	}

	// The final round's tools still execute.
	results := 0
	for _, e := range sink.all() {
		if e == "result:echo" {
			results++
		}
	}
	if results != 2 {
		t.Errorf("tool executions = %d, want 2", results)
	}
}

func TestLoop_Timeout(t *testing.T) {
	provider := &scriptedProvider{rounds: []scriptedRound{{
		err: context.DeadlineExceeded,
	}}}

	loop := NewLoop(provider, testRegistry(t), 5, testLogger())
	result, err := loop.Run(context.Background(), TurnInput{
		Mode:     chatMode(false),
		Messages: []Message{{Role: "user", Text: "hi"}},
	}, &recordingSink{})
	if err != nil {
		t.Fatalf("timeout should not surface as an error: %v", err)
	}
	if result.FinishReason != FinishTimeout {
		t.Errorf("finish reason = %q, want %q", result.FinishReason, FinishTimeout)
	}
}

func TestLoop_ProviderError(t *testing.T) {
	provider := &scriptedProvider{rounds: []scriptedRound{{
		err: errors.New("upstream exploded"),
	}}}

	loop := NewLoop(provider, testRegistry(t), 5, testLogger())
	_, err := loop.Run(context.Background(), TurnInput{
		Mode:     chatMode(false),
		Messages: []Message{{Role: "user", Text: "hi"}},
	}, &recordingSink{})
	if err == nil {
		t.Fatal("expected provider error to surface")
	}
}

func TestLoop_NoToolsModeIgnoresToolCalls(t *testing.T) {
	// A mode without tools never hands specs to the provider.
	provider := &scriptedProvider{rounds: []scriptedRound{{
		completion: Completion{Text: "plain answer", StopReason: "end_turn"},
	}}}

	loop := NewLoop(provider, testRegistry(t), 5, testLogger())
	result, err := loop.Run(context.Background(), TurnInput{
		Mode:     chatMode(false),
		Messages: []Message{{Role: "user", Text: "hi"}},
	}, &recordingSink{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.FinishReason != FinishStop {
		t.Errorf("finish reason = %q", result.FinishReason)
	}
	if len(provider.requests[0].Tools) != 0 {
		t.Errorf("tools handed to provider in a no-tools mode: %v", provider.requests[0].Tools)
	}
}
