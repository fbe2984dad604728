package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/domainmesh/agent"
	"github.com/hupe1980/domainmesh/core"
	"github.com/hupe1980/domainmesh/model"
	"github.com/hupe1980/domainmesh/tool"
)

func testClient(llm model.Model) *model.Client {
	return model.NewClient(llm, func(o *model.ClientOptions) {
		o.Retry.MaxAttempts = 1
		o.BreakerEnabled = false
	})
}

func scriptedAgent(id core.AgentID, steps ...model.Step) *agent.DomainAgent {
	return agent.New(id, string(id)+" specialist", "You are a test specialist.",
		testClient(model.NewScriptedModel(steps...)), tool.NewRegistry())
}

func TestRunSingleAgent(t *testing.T) {
	finance := scriptedAgent(core.AgentFinance, model.Step{Text: "AAPL looks fairly valued."})
	synth := testClient(model.NewScriptedModel(model.Step{Text: "should not be called"}))

	orch := New(synth, []*agent.DomainAgent{finance})

	result := orch.Run(context.Background(), core.Query{Text: "Analyze the stock valuation of AAPL"})

	assert.Equal(t, []core.AgentID{core.AgentFinance}, result.AgentsUsed)
	assert.Equal(t, "AAPL looks fairly valued.", result.FinalAnswer)
	assert.True(t, result.Responses[core.AgentFinance].Completed())
}

func TestRunExplicitAgentsPreservesOrder(t *testing.T) {
	legal := scriptedAgent(core.AgentLegal, model.Step{Text: "Clause 4 is one-sided."})
	finance := scriptedAgent(core.AgentFinance, model.Step{Text: "The deal is accretive."})
	synth := testClient(model.NewScriptedModel(model.Step{Text: "Combined: the deal is accretive but clause 4 needs rework."}))

	orch := New(synth, []*agent.DomainAgent{finance, legal})

	result := orch.Run(context.Background(), core.Query{
		Text:   "Review the acquisition agreement",
		Agents: []core.AgentID{core.AgentLegal, core.AgentFinance},
	})

	assert.Equal(t, []core.AgentID{core.AgentLegal, core.AgentFinance}, result.AgentsUsed)
	assert.Equal(t, 1.0, result.Routing.Confidence)
	assert.Len(t, result.Responses, 2)
	assert.Contains(t, result.FinalAnswer, "accretive")
}

func TestRunUnknownExplicitAgent(t *testing.T) {
	finance := scriptedAgent(core.AgentFinance, model.Step{Text: "done"})
	synth := testClient(model.NewScriptedModel(model.Step{Err: assert.AnError}))

	orch := New(synth, []*agent.DomainAgent{finance})

	result := orch.Run(context.Background(), core.Query{
		Text:   "anything",
		Agents: []core.AgentID{core.AgentFinance, core.AgentID("astrology")},
	})

	assert.Equal(t, []core.AgentID{core.AgentFinance, core.AgentID("astrology")}, result.AgentsUsed)

	missing := result.Responses[core.AgentID("astrology")]
	assert.Equal(t, agent.ReasonGenerationFailed, missing.TerminalReason)
	assert.Contains(t, missing.Answer, "not available")
}

func TestRunSynthesisFallback(t *testing.T) {
	legal := scriptedAgent(core.AgentLegal, model.Step{Text: "GDPR applies here."})
	healthcare := scriptedAgent(core.AgentHealthcare, model.Step{Text: "The record contains PHI."})
	synth := testClient(model.NewScriptedModel(model.Step{Err: model.ErrServiceUnavailable}))

	orch := New(synth, []*agent.DomainAgent{legal, healthcare})

	result := orch.Run(context.Background(), core.Query{
		Agents: []core.AgentID{core.AgentLegal, core.AgentHealthcare},
	})

	assert.Contains(t, result.FinalAnswer, "[legal]")
	assert.Contains(t, result.FinalAnswer, "GDPR applies here.")
	assert.Contains(t, result.FinalAnswer, "[healthcare]")
	assert.Contains(t, result.FinalAnswer, "The record contains PHI.")
}

func TestRunDeadlineMarksAgentsTimedOut(t *testing.T) {
	slow := scriptedAgent(core.AgentFinance, model.Step{Text: "too late", Delay: 500 * time.Millisecond})
	fast := scriptedAgent(core.AgentLegal, model.Step{Text: "in time"})
	synth := testClient(model.NewScriptedModel(model.Step{Err: model.ErrServiceUnavailable}))

	orch := New(synth, []*agent.DomainAgent{slow, fast})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result := orch.Run(ctx, core.Query{
		Agents: []core.AgentID{core.AgentFinance, core.AgentLegal},
	})

	assert.Equal(t, agent.ReasonTimedOut, result.Responses[core.AgentFinance].TerminalReason)
	assert.Equal(t, agent.ReasonCompleted, result.Responses[core.AgentLegal].TerminalReason)
	assert.NotEmpty(t, result.FinalAnswer)
}

func TestRunStreamEmitsResponsesThenResult(t *testing.T) {
	finance := scriptedAgent(core.AgentFinance, model.Step{Text: "numbers check out"})
	legal := scriptedAgent(core.AgentLegal, model.Step{Text: "terms check out"})
	synth := testClient(model.NewScriptedModel(model.Step{Text: "Everything checks out."}))

	orch := New(synth, []*agent.DomainAgent{finance, legal})

	responseCh, resultCh := orch.RunStream(context.Background(), core.Query{
		Agents: []core.AgentID{core.AgentFinance, core.AgentLegal},
	})

	seen := map[core.AgentID]bool{}
	for resp := range responseCh {
		seen[resp.AgentID] = true
	}
	assert.True(t, seen[core.AgentFinance])
	assert.True(t, seen[core.AgentLegal])

	result := <-resultCh
	assert.Equal(t, "Everything checks out.", result.FinalAnswer)
}

func TestRouteFinanceKeywords(t *testing.T) {
	router := NewRouter()

	decision := router.Route(core.Query{Text: "What is the DCF valuation of this stock portfolio?"})

	assert.Equal(t, core.AgentFinance, decision.Agents[0])
	assert.GreaterOrEqual(t, decision.Confidence, 0.5)
	assert.LessOrEqual(t, decision.Confidence, 0.95)
}

func TestRouteUnmatchedFallsBackToGeneral(t *testing.T) {
	router := NewRouter()

	decision := router.Route(core.Query{Text: "What time does the sun set today?"})

	assert.Equal(t, []core.AgentID{core.AgentGeneral}, decision.Agents)
	assert.Equal(t, 0.5, decision.Confidence)
}

func TestRouteMultiDomain(t *testing.T) {
	router := NewRouter()

	decision := router.Route(core.Query{
		Text: "Does this patient consent contract meet HIPAA compliance and GDPR clause requirements?",
	})

	assert.GreaterOrEqual(t, len(decision.Agents), 2)
	assert.Contains(t, decision.Agents, core.AgentLegal)
	assert.Contains(t, decision.Agents, core.AgentHealthcare)
}

func TestRouteExplicitCopyIsIsolated(t *testing.T) {
	router := NewRouter()

	requested := []core.AgentID{core.AgentFinance}
	decision := router.Route(core.Query{Text: "x", Agents: requested})

	decision.Agents[0] = core.AgentGeneral
	assert.Equal(t, core.AgentFinance, requested[0])
}
