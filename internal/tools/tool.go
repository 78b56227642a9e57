// Package tools holds the assistant's tool catalog: named, schema-validated,
// side-effecting operations the model can invoke mid-turn. Executors report
// progress over a per-turn side channel and always return a success/failure
// shaped Result.
package tools

import (
	"context"
	"encoding/json"
)

// Spec describes a tool to the model: its name, when to use it, and the
// JSON schema its arguments must satisfy.
type Spec struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// Tool is one invocable unit of work. Execute receives arguments that have
// already been validated against the Spec's schema. Implementations must not
// panic or leak errors: any failure becomes a failure-shaped Result.
type Tool interface {
	Spec() Spec
	Execute(ctx context.Context, inv *Invocation) Result
}

// Emitter is the write-only side channel bound to one turn's stream.
// Events emitted here are interleaved with model output for immediate
// client rendering; they never enter the model's context.
type Emitter interface {
	Emit(toolCallID, name string, payload map[string]any)
}

// NopEmitter discards all events.
type NopEmitter struct{}

func (NopEmitter) Emit(string, string, map[string]any) {}

// Invocation is the ambient context of one tool execution: the validated
// arguments, the authenticated caller, and the side channel. The emitter is
// passed explicitly per invocation, scoped to the turn, never global.
type Invocation struct {
	CallID  string
	Args    map[string]any
	UserID  string
	emitter Emitter
}

// Notify emits a side-channel event tagged with this invocation's call id.
func (inv *Invocation) Notify(name string, payload map[string]any) {
	if inv.emitter == nil {
		return
	}
	inv.emitter.Emit(inv.CallID, name, payload)
}
