// Package tool implements the function calling subsystem that lets agents
// invoke structured capabilities (computations, retrieval, side-effects) with
// schema validated arguments, consistent error handling and rich metadata for
// LLM guidance. Tools are registered per agent in a Registry that is built at
// construction time and read-only afterwards.
package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/domainmesh/internal/util"
)

// Error codes attached to ToolError for consistent downstream handling.
const (
	// CodeInvalidArguments marks schema / argument mismatches. The reasoning
	// loop feeds these back to the model as observations so it can retry
	// with corrected arguments.
	CodeInvalidArguments = "INVALID_ARGUMENTS"
	// CodeExecutionError marks failures raised by the executor itself.
	CodeExecutionError = "EXECUTION_ERROR"
	// CodeUnknownTool marks calls referencing a name absent from the registry.
	CodeUnknownTool = "UNKNOWN_TOOL"
)

// Tool defines the interface for extending agent capabilities with external functions.
//
// Tools can be registered with agents to enable function calling, allowing
// agents to perform actions beyond text generation such as calculations,
// retrieval or any other programmatic operation.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define proper JSON schema for parameters
//   - Handle errors gracefully
//   - Be safe for concurrent use (agents may run in parallel)
type Tool interface {
	// Name returns the unique identifier for this tool.
	// Names should be descriptive and follow function naming conventions (snake_case recommended).
	Name() string

	// Description returns a human-readable description of what this tool does.
	// This description is provided to the LLM to help it understand when and how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	// This schema is used for parameter validation and LLM function calling.
	Parameters() map[string]interface{}

	// Call executes the tool with structured arguments. Arguments are parsed
	// from JSON and validated against the tool's schema before the executor
	// runs. The context carries the caller's deadline; executors performing
	// I/O must honor it.
	Call(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string      `json:"tool"`              // Name of the tool that failed
	Message string      `json:"message"`           // Error message
	Code    string      `json:"code"`              // Error code for categorization
	Details interface{} `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
