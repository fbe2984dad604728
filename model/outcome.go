package model

import (
	"encoding/json"
	"errors"

	"github.com/hupe1980/domainmesh/core"
)

// Typed failure modes of the generation client. Callers distinguish them with
// errors.Is; the reasoning loop treats ErrInvalidResponse as recoverable for
// the current turn while the other two exhaust the client's retry budget
// before surfacing.
var (
	// ErrServiceUnavailable marks network / provider failures. Retried with
	// exponential backoff up to the configured attempt limit.
	ErrServiceUnavailable = errors.New("generation service unavailable")
	// ErrRateLimited marks provider throttling. Retried after backoff.
	ErrRateLimited = errors.New("generation service rate limited")
	// ErrInvalidResponse marks unparseable provider output (e.g. tool call
	// arguments that are not a JSON object). Not retried: the caller feeds it
	// back into its loop as an observation.
	ErrInvalidResponse = errors.New("invalid generation response")
)

// Outcome is the tagged result of one generation call: either a final answer
// (no tool calls) or a set of requested tool calls. Truncated notes that the
// conversation was cut to fit the context budget; callers may log it.
type Outcome struct {
	Text         string              `json:"text,omitempty"`
	ToolCalls    []core.FunctionCall `json:"tool_calls,omitempty"`
	Truncated    bool                `json:"truncated,omitempty"`
	FinishReason string              `json:"finish_reason,omitempty"`
	Usage        *TokenUsage         `json:"usage,omitempty"`
}

// IsFinal reports whether the model produced a final answer rather than tool
// call requests.
func (o *Outcome) IsFinal() bool { return len(o.ToolCalls) == 0 }

// Content rebuilds the assistant turn to append to the conversation.
func (o *Outcome) Content() core.Content {
	parts := make([]core.Part, 0, len(o.ToolCalls)+1)
	if o.Text != "" {
		parts = append(parts, core.TextPart{Text: o.Text})
	}
	for _, tc := range o.ToolCalls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: tc})
	}
	return core.Content{Role: "assistant", Parts: parts}
}

// outcomeFromResponse maps a final provider response onto an Outcome,
// rejecting tool calls whose argument payload is not a JSON object.
func outcomeFromResponse(resp Response) (*Outcome, error) {
	out := &Outcome{FinishReason: resp.FinishReason, Usage: resp.Usage}
	for _, p := range resp.Content.Parts {
		switch part := p.(type) {
		case core.TextPart:
			out.Text += part.Text
		case core.FunctionCallPart:
			fc := part.FunctionCall
			if argsObject(fc.Arguments) == nil {
				return nil, errors.Join(ErrInvalidResponse,
					errors.New("tool call "+fc.Name+" carries malformed arguments"))
			}
			out.ToolCalls = append(out.ToolCalls, fc)
		}
	}
	return out, nil
}

// argsObject reports whether raw is empty or a JSON object.
func argsObject(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	if m == nil {
		m = map[string]any{}
	}
	return m
}
