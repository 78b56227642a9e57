package chat

import (
	"brightwell/internal/stream"
)

// writerSink forwards loop output onto the SSE writer. Send errors are
// ignored here: a failed write marks the writer and cancels the turn
// context, which is the actual abort signal.
type writerSink struct {
	w *stream.Writer
}

func (s *writerSink) TextDelta(text string) {
	_ = s.w.Send(stream.KindTextDelta, stream.TextDeltaEvent{Delta: text})
}

func (s *writerSink) ReasoningDelta(text string) {
	_ = s.w.Send(stream.KindReasoningDelta, stream.ReasoningDeltaEvent{Delta: text})
}

func (s *writerSink) ToolCallStart(callID, name string) {
	_ = s.w.Send(stream.KindToolCallStart, stream.ToolCallStartEvent{ToolCallID: callID, ToolName: name})
}

func (s *writerSink) ToolCallDelta(callID, argsDelta string) {
	_ = s.w.Send(stream.KindToolCallDelta, stream.ToolCallDeltaEvent{ToolCallID: callID, ArgsDelta: argsDelta})
}

func (s *writerSink) ToolCallResult(callID, name string, result map[string]any) {
	_ = s.w.Send(stream.KindToolCallResult, stream.ToolCallResultEvent{ToolCallID: callID, ToolName: name, Result: result})
}

func (s *writerSink) Data(callID, name string, payload map[string]any) {
	_ = s.w.Send(stream.KindData, stream.DataEvent{ToolCallID: callID, Name: name, Payload: payload})
}
