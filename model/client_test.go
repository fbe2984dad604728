package model

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/domainmesh/core"
)

// flakyModel fails a fixed number of times before succeeding.
type flakyModel struct {
	mu       sync.Mutex
	failures int
	calls    int
	err      error
}

func (m *flakyModel) Info() Info { return Info{Provider: "flaky", Name: "flaky"} }

func (m *flakyModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	m.mu.Lock()
	m.calls++
	fail := m.calls <= m.failures
	m.mu.Unlock()

	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)
	go func() {
		defer close(respCh)
		defer close(errCh)
		if fail {
			errCh <- m.err
			return
		}
		respCh <- Response{
			Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: "ok"}}},
			FinishReason: "stop",
		}
	}()
	return respCh, errCh
}

func (m *flakyModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newTestClient(llm Model, optFns ...func(o *ClientOptions)) *Client {
	return NewClient(llm, append([]func(o *ClientOptions){func(o *ClientOptions) {
		o.BreakerEnabled = false
		o.Retry.InitialBackoff = time.Millisecond
		o.Retry.MaxBackoff = 2 * time.Millisecond
	}}, optFns...)...)
}

func TestGenerateRetriesTransientFailures(t *testing.T) {
	llm := &flakyModel{failures: 2, err: ErrServiceUnavailable}
	client := newTestClient(llm)

	out, err := client.Generate(context.Background(), Request{})
	require.NoError(t, err)

	assert.Equal(t, "ok", out.Text)
	assert.True(t, out.IsFinal())
	assert.Equal(t, 3, llm.callCount())
}

func TestGenerateExhaustsRetryBudget(t *testing.T) {
	llm := &flakyModel{failures: 10, err: ErrRateLimited}
	client := newTestClient(llm, func(o *ClientOptions) {
		o.Retry.MaxAttempts = 2
	})

	_, err := client.Generate(context.Background(), Request{})

	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 2, llm.callCount())
}

func TestGenerateDoesNotRetryInvalidResponse(t *testing.T) {
	llm := NewScriptedModel(Step{ToolCalls: []core.FunctionCall{{
		Name:      "broken",
		Arguments: `{not json`,
	}}})
	client := newTestClient(llm)

	_, err := client.Generate(context.Background(), Request{})

	assert.ErrorIs(t, err, ErrInvalidResponse)
	assert.Equal(t, 1, llm.Calls())
}

func TestGenerateClassifiesUnknownErrors(t *testing.T) {
	llm := NewScriptedModel(Step{Err: assert.AnError})
	client := newTestClient(llm, func(o *ClientOptions) {
		o.Retry.MaxAttempts = 1
	})

	_, err := client.Generate(context.Background(), Request{})

	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestGenerateHonorsContext(t *testing.T) {
	llm := NewScriptedModel(Step{Text: "late", Delay: time.Second})
	client := newTestClient(llm)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Generate(ctx, Request{})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGenerateToolCallOutcome(t *testing.T) {
	llm := NewScriptedModel(Step{ToolCalls: []core.FunctionCall{{
		ID:        "call_1",
		Name:      "lookup",
		Arguments: `{"q": "x"}`,
	}}})
	client := newTestClient(llm)

	out, err := client.Generate(context.Background(), Request{})
	require.NoError(t, err)

	assert.False(t, out.IsFinal())
	require.Len(t, out.ToolCalls, 1)
	assert.Equal(t, "lookup", out.ToolCalls[0].Name)
	assert.Equal(t, "tool_calls", out.FinishReason)
}

func TestGenerateTruncatesOldestTurns(t *testing.T) {
	llm := NewScriptedModel(Step{Text: "ok"})
	client := newTestClient(llm, func(o *ClientOptions) {
		o.MaxContextTokens = 30
		o.CountTokens = func(s string) int { return len(strings.Fields(s)) }
	})

	long := strings.Repeat("word ", 40)
	req := Request{Contents: []core.Content{
		core.NewTextContent("user", long),
		core.NewTextContent("assistant", "short answer"),
		core.NewTextContent("user", "final question"),
	}}

	out, err := client.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, out.Truncated)

	// The provider saw the window without the oldest turn.
	last := llm.Requests[len(llm.Requests)-1]
	require.NotEmpty(t, last.Contents)
	assert.NotContains(t, last.Contents[0].Text(), "word word")
}

func TestGenerateKeepsMostRecentTurn(t *testing.T) {
	llm := NewScriptedModel(Step{Text: "ok"})
	client := newTestClient(llm, func(o *ClientOptions) {
		o.MaxContextTokens = 1
		o.CountTokens = func(s string) int { return len(s) }
	})

	req := Request{Contents: []core.Content{
		core.NewTextContent("user", "first"),
		core.NewTextContent("user", "second"),
	}}

	_, err := client.Generate(context.Background(), req)
	require.NoError(t, err)

	last := llm.Requests[len(llm.Requests)-1]
	require.Len(t, last.Contents, 1)
	assert.Equal(t, "second", last.Contents[0].Text())
}

func TestOutcomeContentRebuild(t *testing.T) {
	out := &Outcome{
		Text:      "thinking",
		ToolCalls: []core.FunctionCall{{ID: "c1", Name: "lookup", Arguments: `{}`}},
	}

	content := out.Content()

	assert.Equal(t, "assistant", content.Role)
	assert.Len(t, content.Parts, 2)
}

func TestScriptedModelRepeatsLastStep(t *testing.T) {
	llm := NewScriptedModel(Step{Text: "only"})
	client := newTestClient(llm)

	for i := 0; i < 3; i++ {
		out, err := client.Generate(context.Background(), Request{})
		require.NoError(t, err)
		assert.Equal(t, "only", out.Text)
	}
	assert.Equal(t, 3, llm.Calls())
}
