package model

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/domainmesh/core"
)

// Step is a single scripted turn of a ScriptedModel. Exactly one of the
// fields should be populated.
type Step struct {
	// Text produces a final text response.
	Text string

	// ToolCalls produces a response requesting the given function calls.
	ToolCalls []core.FunctionCall

	// Err makes the turn fail with the given error.
	Err error

	// Delay is applied before the step resolves, respecting context
	// cancellation.
	Delay time.Duration
}

// ScriptedModel replays a fixed sequence of steps, one per Generate call.
// Once the script is exhausted it keeps returning the last step. It is
// safe for concurrent use.
type ScriptedModel struct {
	mu    sync.Mutex
	steps []Step
	calls int

	// Requests records every request received, in order.
	Requests []Request
}

// NewScriptedModel returns a model that replays steps in order.
func NewScriptedModel(steps ...Step) *ScriptedModel {
	return &ScriptedModel{steps: steps}
}

// Calls returns how many times Generate has been invoked.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Info implements Model.
func (m *ScriptedModel) Info() Info {
	return Info{Provider: "scripted", Name: "scripted"}
}

// Generate implements Model.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	m.mu.Lock()
	idx := m.calls
	m.calls++
	m.Requests = append(m.Requests, req)
	if idx >= len(m.steps) {
		idx = len(m.steps) - 1
	}
	var step Step
	if idx >= 0 {
		step = m.steps[idx]
	}
	m.mu.Unlock()

	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if step.Delay > 0 {
			select {
			case <-time.After(step.Delay):
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}

		if step.Err != nil {
			errCh <- step.Err
			return
		}

		parts := []core.Part{}
		if step.Text != "" {
			parts = append(parts, core.TextPart{Text: step.Text})
		}
		for _, fc := range step.ToolCalls {
			parts = append(parts, core.FunctionCallPart{FunctionCall: fc})
		}

		finish := "stop"
		if len(step.ToolCalls) > 0 {
			finish = "tool_calls"
		}

		respCh <- Response{
			Content:      core.Content{Role: "assistant", Parts: parts},
			FinishReason: finish,
		}
	}()

	return respCh, errCh
}
