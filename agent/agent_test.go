package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hupe1980/domainmesh/core"
	"github.com/hupe1980/domainmesh/model"
	"github.com/hupe1980/domainmesh/tool"
	"github.com/stretchr/testify/assert"
)

func testClient(llm model.Model) *model.Client {
	return model.NewClient(llm, func(o *model.ClientOptions) {
		o.Retry = model.RetryPolicy{MaxAttempts: 1}
		o.BreakerEnabled = false
	})
}

func echoTool() tool.Tool {
	return tool.NewFunctionTool(
		"echo",
		"Echo the input back",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"value": map[string]any{"type": "string"},
			},
			"required": []string{"value"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			return args["value"], nil
		},
	)
}

func TestRunFinalAnswerFirstTurn(t *testing.T) {
	llm := model.NewScriptedModel(model.Step{Text: "done"})
	registry := tool.NewRegistry()
	registry.MustRegister(echoTool())
	a := New("test", "test agent", "be brief", testClient(llm), registry)

	resp := a.Run(context.Background(), "hello")

	assert.Equal(t, ReasonCompleted, resp.TerminalReason)
	assert.Equal(t, "done", resp.Answer)
	assert.Equal(t, 1, resp.Iterations)
	assert.Empty(t, resp.ToolsUsed)
}

func TestRunLoopIsStrictlyBounded(t *testing.T) {
	// A model that always requests a tool call must terminate at exactly the
	// configured maximum.
	llm := model.NewScriptedModel(model.Step{
		ToolCalls: []core.FunctionCall{{ID: "1", Name: "echo", Arguments: `{"value":"x"}`}},
	})
	registry := tool.NewRegistry()
	registry.MustRegister(echoTool())
	a := New("test", "test agent", "be brief", testClient(llm), registry,
		func(o *Options) { o.MaxIterations = 4 })

	resp := a.Run(context.Background(), "loop forever")

	assert.Equal(t, ReasonIterationLimitExceeded, resp.TerminalReason)
	assert.Equal(t, 4, resp.Iterations)
	assert.Equal(t, 4, llm.Calls())
	assert.Len(t, resp.ToolsUsed, 4)
	assert.NotEmpty(t, resp.Answer)
}

func TestRunInvalidArgumentsFedBackAsObservation(t *testing.T) {
	llm := model.NewScriptedModel(
		// Missing the required "value" field.
		model.Step{ToolCalls: []core.FunctionCall{{ID: "1", Name: "echo", Arguments: `{}`}}},
		// Corrected call.
		model.Step{ToolCalls: []core.FunctionCall{{ID: "2", Name: "echo", Arguments: `{"value":"ok"}`}}},
		model.Step{Text: "echoed ok"},
	)
	registry := tool.NewRegistry()
	registry.MustRegister(echoTool())
	a := New("test", "test agent", "be brief", testClient(llm), registry)

	resp := a.Run(context.Background(), "echo something")

	assert.Equal(t, ReasonCompleted, resp.TerminalReason)
	assert.Len(t, resp.ToolsUsed, 2)
	assert.NotNil(t, resp.ToolsUsed[0].Err)
	assert.Equal(t, tool.CodeInvalidArguments, resp.ToolsUsed[0].Err.Code)
	assert.Nil(t, resp.ToolsUsed[1].Err)

	// The failed call must reach the model as an observation turn.
	second := llm.Requests[1]
	last := second.Contents[len(second.Contents)-1]
	assert.Equal(t, "tool", last.Role)
}

func TestRunUnknownToolIsRecoverable(t *testing.T) {
	llm := model.NewScriptedModel(
		model.Step{ToolCalls: []core.FunctionCall{{ID: "1", Name: "missing", Arguments: `{}`}}},
		model.Step{Text: "answered without the tool"},
	)
	a := New("test", "test agent", "be brief", testClient(llm), tool.NewRegistry())

	resp := a.Run(context.Background(), "use a tool")

	assert.Equal(t, ReasonCompleted, resp.TerminalReason)
	assert.Len(t, resp.ToolsUsed, 1)
	assert.Equal(t, tool.CodeUnknownTool, resp.ToolsUsed[0].Err.Code)
}

func TestRunGenerationFailure(t *testing.T) {
	llm := model.NewScriptedModel(model.Step{Err: errors.New("provider down")})
	a := New("test", "test agent", "be brief", testClient(llm), tool.NewRegistry())

	resp := a.Run(context.Background(), "hello")

	assert.Equal(t, ReasonGenerationFailed, resp.TerminalReason)
	assert.NotEmpty(t, resp.Answer)
}

func TestRunTimedOut(t *testing.T) {
	llm := model.NewScriptedModel(model.Step{Text: "late", Delay: 500 * time.Millisecond})
	a := New("test", "test agent", "be brief", testClient(llm), tool.NewRegistry())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	resp := a.Run(ctx, "hello")

	assert.Equal(t, ReasonTimedOut, resp.TerminalReason)
	assert.NotEmpty(t, resp.Answer)
}

func TestFinanceRiskMetricsScenario(t *testing.T) {
	args, err := json.Marshal(map[string]any{
		"weights": map[string]float64{"AAPL": 0.4, "MSFT": 0.3, "GOOGL": 0.3},
	})
	assert.NoError(t, err)

	llm := model.NewScriptedModel(
		model.Step{ToolCalls: []core.FunctionCall{{ID: "1", Name: "calculate_risk_metrics", Arguments: string(args)}}},
		model.Step{Text: "The portfolio shows moderate volatility with an acceptable Sharpe ratio."},
	)
	a := NewFinance(testClient(llm), nil)

	resp := a.Run(context.Background(), "Analyze risk metrics for a portfolio with 40% AAPL, 30% MSFT, 30% GOOGL")

	assert.Equal(t, ReasonCompleted, resp.TerminalReason)
	assert.Len(t, resp.ToolsUsed, 1)
	assert.Equal(t, "calculate_risk_metrics", resp.ToolsUsed[0].Name)
	assert.Nil(t, resp.ToolsUsed[0].Err)

	out, ok := resp.ToolsUsed[0].Output.(map[string]any)
	assert.True(t, ok)
	assert.Contains(t, out, "volatility")
	assert.Contains(t, out, "sharpe_ratio")
	assert.Contains(t, out, "var_95")
}

func TestFinanceRiskMetricsDeterministic(t *testing.T) {
	call := core.FunctionCall{ID: "1", Name: "calculate_risk_metrics",
		Arguments: `{"weights":{"AAPL":0.5,"MSFT":0.5}}`}

	registry := tool.NewRegistry()
	registry.MustRegister(FinanceTools()...)

	first := registry.Execute(context.Background(), call)
	second := registry.Execute(context.Background(), call)

	assert.Nil(t, first.Err)
	assert.Equal(t, first.Output, second.Output)
}

func TestClinicalScoreMissingInput(t *testing.T) {
	registry := tool.NewRegistry()
	registry.MustRegister(HealthcareTools()...)

	res := registry.Execute(context.Background(), core.FunctionCall{
		ID:        "1",
		Name:      "calculate_clinical_scores",
		Arguments: `{"score_type":"cha2ds2_vasc","parameters":{}}`,
	})

	assert.NotNil(t, res.Err)
	assert.Equal(t, tool.CodeInvalidArguments, res.Err.Code)
}

func TestCHA2DS2VAScScoring(t *testing.T) {
	out, err := calcCHA2DS2VASc(map[string]any{
		"age":          float64(76),
		"female":       true,
		"hypertension": true,
		"stroke_tia":   true,
	})

	assert.NoError(t, err)
	result := out.(map[string]any)
	// Age >=75 (+2), female (+1), hypertension (+1), prior stroke (+2).
	assert.Equal(t, 6, result["score"])
	assert.Equal(t, "Anticoagulation recommended", result["recommendation"])
}

func TestNEWS2HighRisk(t *testing.T) {
	out, err := calcNEWS2(map[string]any{
		"respiratory_rate": float64(26),
		"spo2":             float64(90),
		"systolic_bp":      float64(88),
		"heart_rate":       float64(135),
		"temperature_c":    float64(34.5),
		"on_oxygen":        true,
	})

	assert.NoError(t, err)
	result := out.(map[string]any)
	assert.Equal(t, "high", result["risk"])
	assert.GreaterOrEqual(t, result["score"].(int), 7)
}

func TestLegalComplianceGaps(t *testing.T) {
	registry := tool.NewRegistry()
	registry.MustRegister(LegalTools()...)

	res := registry.Execute(context.Background(), core.FunctionCall{
		ID:        "1",
		Name:      "check_compliance",
		Arguments: `{"document_text":"We honor data subject requests including erasure. Our data protection officer oversees cross-border transfers on a lawful basis.","regulations":["GDPR"]}`,
	})

	assert.Nil(t, res.Err)
	out := res.Output.(map[string]any)
	gdpr := out["results"].(map[string]any)["GDPR"].(map[string]any)
	assert.Equal(t, "compliant", gdpr["status"])
}

func TestDrugInteractionsRequiresTwoDrugs(t *testing.T) {
	registry := tool.NewRegistry()
	registry.MustRegister(HealthcareTools()...)

	res := registry.Execute(context.Background(), core.FunctionCall{
		ID:        "1",
		Name:      "check_drug_interactions",
		Arguments: `{"medications":["warfarin"]}`,
	})

	assert.NotNil(t, res.Err)
	assert.Equal(t, tool.CodeInvalidArguments, res.Err.Code)
}

func TestDrugInteractionsFindsKnownPair(t *testing.T) {
	registry := tool.NewRegistry()
	registry.MustRegister(HealthcareTools()...)

	res := registry.Execute(context.Background(), core.FunctionCall{
		ID:        "1",
		Name:      "check_drug_interactions",
		Arguments: `{"medications":["Warfarin 5mg","Aspirin 81mg"]}`,
	})

	assert.Nil(t, res.Err)
	out := res.Output.(map[string]any)
	interactions := out["interactions"].([]map[string]string)
	assert.NotEmpty(t, interactions)
	assert.Equal(t, "major", interactions[0]["severity"])
}
