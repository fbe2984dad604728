package evaluation

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/domainmesh/agent"
	"github.com/hupe1980/domainmesh/core"
	"github.com/hupe1980/domainmesh/model"
	"github.com/hupe1980/domainmesh/orchestrator"
)

func testClient(llm model.Model) *model.Client {
	return model.NewClient(llm, func(o *model.ClientOptions) {
		o.Retry.MaxAttempts = 1
		o.BreakerEnabled = false
	})
}

func TestEvaluateRoutingBuiltinDataset(t *testing.T) {
	evaluator := New(nil)

	metrics := evaluator.EvaluateRouting(RoutingDataset())

	require.Len(t, metrics.Results, len(RoutingDataset().Cases))
	assert.GreaterOrEqual(t, metrics.RoutingAccuracy(), 0.8)
}

func TestEvaluateRoutingScoresMultiAgent(t *testing.T) {
	evaluator := New(nil)

	metrics := evaluator.EvaluateRouting(Dataset{
		Name: "multi",
		Cases: []Case{{
			ID:                 "breach",
			Query:              "What are the legal and financial implications of a healthcare data breach?",
			ExpectedPrimary:    core.AgentLegal,
			RequiresMultiAgent: true,
		}},
	})

	require.Len(t, metrics.Results, 1)
	assert.True(t, metrics.Results[0].MultiAgentCorrect)
}

func TestEvaluateEndToEnd(t *testing.T) {
	args, err := json.Marshal(map[string]any{
		"weights": map[string]any{"AAPL": 0.6, "MSFT": 0.4},
	})
	require.NoError(t, err)

	finance := agent.NewFinance(testClient(model.NewScriptedModel(
		model.Step{ToolCalls: []core.FunctionCall{{
			ID:        "call_1",
			Name:      "calculate_risk_metrics",
			Arguments: string(args),
		}}},
		model.Step{Text: "The portfolio volatility and Sharpe ratio indicate moderate risk."},
	)), nil)

	orch := orchestrator.New(testClient(model.NewScriptedModel()), []*agent.DomainAgent{finance})

	evaluator := New(orch, func(o *Options) {
		o.CaseTimeout = 5 * time.Second
	})

	metrics := evaluator.Evaluate(context.Background(), Dataset{
		Name: "finance_quality",
		Cases: []Case{{
			ID:               "qual_fin",
			Query:            "Analyze the risk profile of my stock portfolio",
			ExpectedPrimary:  core.AgentFinance,
			ExpectedTools:    []string{"calculate_risk_metrics"},
			ExpectedKeywords: []string{"volatility", "sharpe", "risk"},
		}},
	})

	require.Len(t, metrics.Results, 1)
	result := metrics.Results[0]

	assert.Equal(t, VerdictPass, result.Verdict)
	assert.True(t, result.RoutingCorrect)
	assert.Equal(t, 1.0, result.ToolRecall)
	assert.Equal(t, 1.0, result.KeywordCoverage)
	assert.Empty(t, result.MissingKeywords)
	assert.Equal(t, 1.0, metrics.PassRate())
}

func TestEvaluatePartialVerdictOnMissingKeywords(t *testing.T) {
	legal := agent.NewLegal(testClient(model.NewScriptedModel(
		model.Step{Text: "The contract looks fine."},
	)), nil)

	orch := orchestrator.New(testClient(model.NewScriptedModel()), []*agent.DomainAgent{legal})

	metrics := New(orch).Evaluate(context.Background(), Dataset{
		Name: "legal_quality",
		Cases: []Case{{
			ID:               "qual_leg",
			Query:            "Extract the indemnification clauses from this contract",
			ExpectedPrimary:  core.AgentLegal,
			ExpectedKeywords: []string{"indemnification", "liability cap"},
		}},
	})

	require.Len(t, metrics.Results, 1)
	result := metrics.Results[0]

	assert.Equal(t, VerdictPartial, result.Verdict)
	assert.Contains(t, result.MissingKeywords, "liability cap")
}

func TestMetricsAggregation(t *testing.T) {
	m := &Metrics{}
	m.Add(CaseResult{Verdict: VerdictPass, RoutingCorrect: true, Latency: 10 * time.Millisecond})
	m.Add(CaseResult{Verdict: VerdictFail, RoutingCorrect: false, Latency: 30 * time.Millisecond})

	assert.Equal(t, 0.5, m.PassRate())
	assert.Equal(t, 0.5, m.RoutingAccuracy())
	assert.Equal(t, 30*time.Millisecond, m.PercentileLatency(0.95))
	assert.Len(t, m.Failures(), 1)
}

func TestDatasetFilterByPrimary(t *testing.T) {
	filtered := RoutingDataset().FilterByPrimary(core.AgentHealthcare)

	require.NotEmpty(t, filtered.Cases)
	for _, c := range filtered.Cases {
		assert.Equal(t, core.AgentHealthcare, c.ExpectedPrimary)
	}
}
