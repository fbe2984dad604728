package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/hupe1980/domainmesh/core"
)

// ErrDuplicateTool is returned by Register when a tool name is already taken.
var ErrDuplicateTool = errors.New("duplicate tool name")

// CallResult captures the outcome of a single tool invocation: the output on
// success or a structured *ToolError on failure, plus the wall-clock duration.
// A failed call is data fed back into the reasoning loop, never a crash of
// the surrounding request.
type CallResult struct {
	CallID   string        `json:"call_id,omitempty"` // Correlates with the model's function call id
	Name     string        `json:"name"`
	Output   any           `json:"output,omitempty"`
	Err      *ToolError    `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// FunctionResponse converts the result into the content part appended to the
// conversation as an observation turn.
func (r CallResult) FunctionResponse() core.FunctionResponse {
	fr := core.FunctionResponse{ID: r.CallID, Name: r.Name, Response: r.Output}
	if r.Err != nil {
		fr.Error = r.Err.Error()
	}
	return fr
}

// Registry maps tool names to implementations for one agent. It is populated
// during agent construction and read-only afterwards, so lookups need no
// synchronization. Registration order is preserved for deterministic tool
// schemas advertised to models.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, failing fast with ErrDuplicateTool when the name is
// already present. Duplicate names are a construction bug, not a runtime
// condition.
func (r *Registry) Register(t Tool) error {
	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, t.Name())
	}
	r.tools[t.Name()] = t
	r.order = append(r.order, t.Name())
	return nil
}

// MustRegister is Register for static construction paths where a duplicate
// name is a programming error.
func (r *Registry) MustRegister(tools ...Tool) {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List returns all registered tools in registration order. Used to build the
// schema advertised to the generation client.
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int { return len(r.order) }

// Execute resolves and invokes the named tool with JSON-serialized arguments.
// Every failure mode (unknown tool, malformed argument payload, validation
// failure, executor error, executor panic) is folded into the returned
// CallResult so the reasoning loop can surface it to the model as an
// observation.
func (r *Registry) Execute(ctx context.Context, call core.FunctionCall) CallResult {
	start := time.Now()
	res := CallResult{CallID: call.ID, Name: call.Name}

	impl, ok := r.tools[call.Name]
	if !ok {
		res.Err = NewToolError(call.Name, fmt.Sprintf("tool %q is not registered", call.Name), CodeUnknownTool)
		res.Duration = time.Since(start)
		return res
	}

	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			res.Err = &ToolError{
				Tool:    call.Name,
				Message: fmt.Sprintf("arguments are not a JSON object: %v", err),
				Code:    CodeInvalidArguments,
			}
			res.Duration = time.Since(start)
			return res
		}
	}

	output, err := safeCall(ctx, impl, args)
	res.Duration = time.Since(start)

	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			res.Err = toolErr
		} else {
			res.Err = NewToolError(call.Name, err.Error(), CodeExecutionError)
		}
		return res
	}

	res.Output = output
	return res
}

// safeCall invokes the tool recovering panics into EXECUTION_ERROR results so
// a faulty executor cannot tear down the whole request.
func safeCall(ctx context.Context, impl Tool, args map[string]any) (out any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &ToolError{
				Tool:    impl.Name(),
				Message: fmt.Sprintf("panic: %v", rec),
				Code:    CodeExecutionError,
				Details: string(debug.Stack()),
			}
		}
	}()
	return impl.Call(ctx, args)
}
