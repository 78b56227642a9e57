package stream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"brightwell/internal/domain/models/chat"
)

// Reducer incrementally applies streamed events to an in-memory view of the
// assistant turn being generated, including tool progress, so a client can
// render partial answers before the turn completes.
type Reducer struct {
	Parts        []chat.Part
	DataEvents   []DataEvent
	FinishReason string
	TurnID       string
	Err          string

	pendingArgs map[string]*strings.Builder // tool_call_id -> partial args JSON
	callNames   map[string]string
}

// NewReducer creates an empty reducer.
func NewReducer() *Reducer {
	return &Reducer{
		pendingArgs: make(map[string]*strings.Builder),
		callNames:   make(map[string]string),
	}
}

// Apply folds one event into the view. Events must be applied in the order
// they were received.
func (r *Reducer) Apply(kind string, data json.RawMessage) error {
	switch kind {
	case KindTextDelta:
		var ev TextDeltaEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return err
		}
		r.appendText(chat.PartText, ev.Delta)

	case KindReasoningDelta:
		var ev ReasoningDeltaEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return err
		}
		r.appendText(chat.PartReasoning, ev.Delta)

	case KindToolCallStart:
		var ev ToolCallStartEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return err
		}
		r.pendingArgs[ev.ToolCallID] = &strings.Builder{}
		r.callNames[ev.ToolCallID] = ev.ToolName

	case KindToolCallDelta:
		var ev ToolCallDeltaEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return err
		}
		b, ok := r.pendingArgs[ev.ToolCallID]
		if !ok {
			return fmt.Errorf("tool-call-delta for unknown call %s", ev.ToolCallID)
		}
		b.WriteString(ev.ArgsDelta)

	case KindToolCallResult:
		var ev ToolCallResultEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return err
		}
		r.finishCall(ev)

	case KindData:
		var ev DataEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return err
		}
		r.DataEvents = append(r.DataEvents, ev)

	case KindError:
		var ev ErrorEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return err
		}
		r.Err = ev.Message

	case KindFinish:
		var ev FinishEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return err
		}
		r.FinishReason = ev.Reason
		r.TurnID = ev.TurnID

	default:
		return fmt.Errorf("unknown event kind %q", kind)
	}

	return nil
}

// appendText extends the trailing part when it has the same type, otherwise
// starts a new part. Mirrors how the server accumulates deltas.
func (r *Reducer) appendText(partType, delta string) {
	if n := len(r.Parts); n > 0 && r.Parts[n-1].Type == partType {
		r.Parts[n-1].Text += delta
		return
	}
	r.Parts = append(r.Parts, chat.Part{Type: partType, Text: delta})
}

// finishCall materializes the buffered tool call and its result as parts.
func (r *Reducer) finishCall(ev ToolCallResultEvent) {
	var args map[string]any
	if b, ok := r.pendingArgs[ev.ToolCallID]; ok && b.Len() > 0 {
		_ = json.Unmarshal([]byte(b.String()), &args)
	}
	name := ev.ToolName
	if name == "" {
		name = r.callNames[ev.ToolCallID]
	}
	delete(r.pendingArgs, ev.ToolCallID)
	delete(r.callNames, ev.ToolCallID)

	r.Parts = append(r.Parts,
		chat.ToolCallPart(ev.ToolCallID, name, args),
		chat.ToolResultPart(ev.ToolCallID, name, ev.Result),
	)
}

// Consume reads SSE frames from r until EOF or a finish event, applying each
// to the reducer. onEvent, when non-nil, observes every event as it arrives.
func Consume(src io.Reader, red *Reducer, onEvent func(kind string, data json.RawMessage)) error {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var kind string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			kind = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			if kind == "" {
				continue
			}
			data := json.RawMessage(strings.TrimPrefix(line, "data: "))
			if onEvent != nil {
				onEvent(kind, data)
			}
			if err := red.Apply(kind, data); err != nil {
				return err
			}
			if kind == KindFinish {
				return nil
			}
			kind = ""
		}
	}

	return scanner.Err()
}
