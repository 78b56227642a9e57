package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Call represents a single tool invocation request from the model.
type Call struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// Registry holds the process-wide tool catalog. It is populated at startup
// and read-only afterwards, so it is safe to share across concurrent turns.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	tool   Tool
	schema *jsonschema.Schema
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register compiles the tool's input schema and adds it to the catalog.
// A tool with the same name replaces the previous entry.
func (r *Registry) Register(t Tool) error {
	spec := t.Spec()
	if spec.Name == "" {
		return fmt.Errorf("tool has empty name")
	}

	schema, err := jsonschema.CompileString(spec.Name+".json", string(spec.InputSchema))
	if err != nil {
		return fmt.Errorf("compile schema for %s: %w", spec.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[spec.Name] = &entry{tool: t, schema: schema}
	return nil
}

// MustRegister panics on registration failure. Used at process start where a
// bad schema is a programming error.
func (r *Registry) MustRegister(t Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.tool, true
}

// Specs returns all tool specs sorted by name, for handing to the model.
func (r *Registry) Specs() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]Spec, 0, len(r.entries))
	for _, e := range r.entries {
		specs = append(specs, e.tool.Spec())
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Execute validates and runs a single tool call. The result is always
// well-shaped: unknown tools, schema violations, executor errors, and panics
// all come back as failure Results, never as errors or crashes. A terminal
// "finish" side-channel event is emitted in every case.
func (r *Registry) Execute(ctx context.Context, call Call, userID string, emitter Emitter) Result {
	if emitter == nil {
		emitter = NopEmitter{}
	}

	result := r.execute(ctx, call, userID, emitter)

	status := "succeeded"
	if !result.OK {
		status = "failed"
	}
	emitter.Emit(call.ID, "finish", map[string]any{"tool": call.Name, "status": status})

	return result
}

func (r *Registry) execute(ctx context.Context, call Call, userID string, emitter Emitter) (result Result) {
	r.mu.RLock()
	e, ok := r.entries[call.Name]
	r.mu.RUnlock()
	if !ok {
		return Fail(fmt.Sprintf("tool not found: %s", call.Name), "no such tool is registered")
	}

	// Validate before any side effect. A rejected call never reaches the
	// executor body.
	var raw any
	if err := json.Unmarshal(normalizeArgs(call.Args), &raw); err != nil {
		return Fail(fmt.Sprintf("invalid arguments for %s", call.Name), err.Error())
	}
	if err := e.schema.Validate(raw); err != nil {
		return Fail(fmt.Sprintf("invalid arguments for %s", call.Name), err.Error())
	}

	args, _ := raw.(map[string]any)
	inv := &Invocation{
		CallID:  call.ID,
		Args:    args,
		UserID:  userID,
		emitter: emitter,
	}

	// Failure boundary: an executor panic becomes a failure result so one
	// tool can never terminate the turn or the stream.
	defer func() {
		if rec := recover(); rec != nil {
			result = Fail(
				fmt.Sprintf("%s failed unexpectedly", call.Name),
				fmt.Sprintf("panic: %v", rec),
			)
		}
	}()

	return e.tool.Execute(ctx, inv)
}

// normalizeArgs treats absent arguments as an empty object, which tools with
// no required fields accept.
func normalizeArgs(args json.RawMessage) json.RawMessage {
	if len(args) == 0 {
		return json.RawMessage(`{}`)
	}
	return args
}

// ExecuteParallel runs the calls of one round concurrently and returns their
// results in call order. Tools within a round are independent side effects
// with no ordering dependency.
func (r *Registry) ExecuteParallel(ctx context.Context, calls []Call, userID string, emitter Emitter) []Result {
	if len(calls) == 0 {
		return nil
	}

	results := make([]Result, len(calls))
	var wg sync.WaitGroup

	for i, call := range calls {
		wg.Add(1)
		go func(index int, c Call) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				results[index] = Fail(
					fmt.Sprintf("%s was cancelled", c.Name),
					ctx.Err().Error(),
				)
				return
			default:
			}

			results[index] = r.Execute(ctx, c, userID, emitter)
		}(i, call)
	}

	wg.Wait()
	return results
}
