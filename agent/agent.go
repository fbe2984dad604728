package agent

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/domainmesh/core"
	"github.com/hupe1980/domainmesh/logging"
	"github.com/hupe1980/domainmesh/model"
	"github.com/hupe1980/domainmesh/tool"
)

// TerminalReason records how an agent run ended.
type TerminalReason string

const (
	// ReasonCompleted marks a run that produced a final answer.
	ReasonCompleted TerminalReason = "completed"
	// ReasonIterationLimitExceeded marks a run that hit the iteration budget
	// without a final answer.
	ReasonIterationLimitExceeded TerminalReason = "iteration_limit_exceeded"
	// ReasonGenerationFailed marks a run aborted by a non-retryable
	// generation failure.
	ReasonGenerationFailed TerminalReason = "generation_failed"
	// ReasonTimedOut marks a run cancelled by the caller's deadline.
	ReasonTimedOut TerminalReason = "timed_out"
)

// Response is the terminal artifact of one agent run. Answer is never empty:
// aborted runs carry a best-effort fallback.
type Response struct {
	AgentID        core.AgentID      `json:"agent_id"`
	Answer         string            `json:"answer"`
	ToolsUsed      []tool.CallResult `json:"tools_used,omitempty"`
	Iterations     int               `json:"iterations"`
	TerminalReason TerminalReason    `json:"terminal_reason"`
}

// Completed reports whether the run produced a final answer.
func (r *Response) Completed() bool { return r.TerminalReason == ReasonCompleted }

// Options configure a DomainAgent.
type Options struct {
	// MaxIterations bounds reasoning/tool-executing round trips per run.
	MaxIterations int
	Logger        logging.Logger
}

// DomainAgent runs a bounded tool-use reasoning loop for one domain. All
// fields are set at construction and read-only afterwards, so a single agent
// may serve concurrent runs; each run owns its conversation exclusively.
type DomainAgent struct {
	id            core.AgentID
	description   string
	instructions  string
	client        *model.Client
	registry      *tool.Registry
	maxIterations int
	logger        logging.Logger
}

// New assembles an agent from its prompt, generation client and tool
// registry.
func New(id core.AgentID, description, instructions string, client *model.Client, registry *tool.Registry, optFns ...func(o *Options)) *DomainAgent {
	opts := Options{
		MaxIterations: 10,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxIterations < 1 {
		opts.MaxIterations = 1
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if registry == nil {
		registry = tool.NewRegistry()
	}

	return &DomainAgent{
		id:            id,
		description:   description,
		instructions:  instructions,
		client:        client,
		registry:      registry,
		maxIterations: opts.MaxIterations,
		logger:        opts.Logger,
	}
}

// ID returns the agent identifier.
func (a *DomainAgent) ID() core.AgentID { return a.id }

// Description returns the human-readable agent description.
func (a *DomainAgent) Description() string { return a.description }

// Tools returns the registered tool names in registration order.
func (a *DomainAgent) Tools() []string { return a.registry.Names() }

// Run executes the reasoning loop for one query. It always returns a
// Response; failures are encoded in TerminalReason, never as an error value,
// so sibling agents and the surrounding request stay unaffected.
func (a *DomainAgent) Run(ctx context.Context, query string) *Response {
	conv := core.NewConversation(query)
	limiter := core.NewCallLimiter(a.maxIterations)
	defs := a.toolDefinitions()

	var toolsUsed []tool.CallResult
	var lastText string

	for {
		if err := limiter.Increment(); err != nil {
			a.logger.Warn("agent.iteration_limit", "agent", a.id, "max", a.maxIterations)
			return a.abort(lastText, toolsUsed, limiter.Count()-1, ReasonIterationLimitExceeded)
		}

		outcome, err := a.client.Generate(ctx, model.Request{
			Instructions: a.instructions,
			Contents:     conv.Contents(),
			Tools:        defs,
		})
		if err != nil {
			if ctx.Err() != nil {
				return a.abort(lastText, toolsUsed, limiter.Count(), ReasonTimedOut)
			}
			if errors.Is(err, model.ErrInvalidResponse) {
				// Recoverable for this turn: tell the model what went
				// wrong and let the next iteration retry.
				a.logger.Warn("agent.invalid_response", "agent", a.id, "error", err)
				conv.AddUserText("Your previous reply contained tool calls with malformed arguments. Answer again with valid JSON arguments, or give a final answer.")
				continue
			}
			a.logger.Error("agent.generation_failed", "agent", a.id, "error", err)
			return a.abort(lastText, toolsUsed, limiter.Count(), ReasonGenerationFailed)
		}

		if outcome.Text != "" {
			lastText = outcome.Text
		}

		if outcome.IsFinal() {
			return &Response{
				AgentID:        a.id,
				Answer:         outcome.Text,
				ToolsUsed:      toolsUsed,
				Iterations:     limiter.Count(),
				TerminalReason: ReasonCompleted,
			}
		}

		conv.AddAssistant(outcome.Content())

		results := a.executeAll(ctx, outcome.ToolCalls)
		toolsUsed = append(toolsUsed, results...)

		responses := make([]core.FunctionResponse, len(results))
		for i, res := range results {
			responses[i] = res.FunctionResponse()
		}
		conv.AddToolResponses(responses...)

		if ctx.Err() != nil {
			return a.abort(lastText, toolsUsed, limiter.Count(), ReasonTimedOut)
		}
	}
}

// executeAll runs the requested tool calls of one turn. Calls are
// independent of each other, so they execute concurrently; result order
// matches request order.
func (a *DomainAgent) executeAll(ctx context.Context, calls []core.FunctionCall) []tool.CallResult {
	results := make([]tool.CallResult, len(calls))

	if len(calls) == 1 {
		results[0] = a.registry.Execute(ctx, calls[0])
		return results
	}

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call core.FunctionCall) {
			defer wg.Done()
			results[i] = a.registry.Execute(ctx, call)
		}(i, call)
	}
	wg.Wait()

	for _, res := range results {
		if res.Err != nil {
			a.logger.Warn("agent.tool_error", "agent", a.id, "tool", res.Name, "code", res.Err.Code)
		} else {
			a.logger.Debug("agent.tool_done", "agent", a.id, "tool", res.Name, "duration", res.Duration)
		}
	}

	return results
}

// abort builds the degraded Response for a run that did not reach a final
// answer. The answer falls back to the last partial reasoning, or an explicit
// marker, never empty.
func (a *DomainAgent) abort(lastText string, toolsUsed []tool.CallResult, iterations int, reason TerminalReason) *Response {
	answer := lastText
	if answer == "" {
		answer = "The " + string(a.id) + " agent could not complete the request."
	}
	return &Response{
		AgentID:        a.id,
		Answer:         answer,
		ToolsUsed:      toolsUsed,
		Iterations:     iterations,
		TerminalReason: reason,
	}
}

// toolDefinitions builds the schema advertised to the generation client.
func (a *DomainAgent) toolDefinitions() []model.ToolDefinition {
	tools := a.registry.List()
	defs := make([]model.ToolDefinition, len(tools))
	for i, t := range tools {
		defs[i] = model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		}
	}
	return defs
}
