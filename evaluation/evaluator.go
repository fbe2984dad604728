package evaluation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/domainmesh/core"
	"github.com/hupe1980/domainmesh/logging"
	"github.com/hupe1980/domainmesh/orchestrator"
)

// Options configure an Evaluator.
type Options struct {
	// MaxConcurrent bounds parallel case runs. 1 means sequential.
	MaxConcurrent int

	// CaseTimeout bounds each orchestrator run.
	CaseTimeout time.Duration

	Logger logging.Logger
}

// Evaluator scores an orchestrator against golden datasets.
type Evaluator struct {
	orch          *orchestrator.Orchestrator
	router        *orchestrator.Router
	maxConcurrent int
	caseTimeout   time.Duration
	logger        logging.Logger
}

// New creates an evaluator over the given orchestrator.
func New(orch *orchestrator.Orchestrator, optFns ...func(o *Options)) *Evaluator {
	opts := Options{
		MaxConcurrent: 1,
		CaseTimeout:   60 * time.Second,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Evaluator{
		orch:          orch,
		router:        orchestrator.NewRouter(),
		maxConcurrent: opts.MaxConcurrent,
		caseTimeout:   opts.CaseTimeout,
		logger:        opts.Logger,
	}
}

// Evaluate runs every case of the dataset end to end and aggregates the
// results.
func (e *Evaluator) Evaluate(ctx context.Context, dataset Dataset) *Metrics {
	metrics := &Metrics{Dataset: dataset.Name}

	sem := make(chan struct{}, e.maxConcurrent)
	results := make([]CaseResult, len(dataset.Cases))

	var wg sync.WaitGroup
	for i, c := range dataset.Cases {
		wg.Add(1)
		go func(i int, c Case) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = e.evaluateCase(ctx, c)
		}(i, c)
	}
	wg.Wait()

	for _, r := range results {
		metrics.Add(r)
	}

	return metrics
}

// EvaluateRouting scores routing decisions only, without executing agents.
func (e *Evaluator) EvaluateRouting(dataset Dataset) *Metrics {
	metrics := &Metrics{Dataset: dataset.Name + "_routing"}

	for _, c := range dataset.Cases {
		start := time.Now()
		decision := e.router.Route(core.Query{Text: c.Query})

		result := CaseResult{
			CaseID:          c.CaseID(),
			Query:           c.Query,
			ExpectedPrimary: c.ExpectedPrimary,
			ActualAgents:    decision.Agents,
			Confidence:      decision.Confidence,
			Latency:         time.Since(start),
		}
		scoreRouting(&result, c, decision.Agents)

		result.Verdict = VerdictFail
		if result.RoutingCorrect && result.MultiAgentCorrect {
			result.Verdict = VerdictPass
		}

		metrics.Add(result)
	}

	return metrics
}

func (e *Evaluator) evaluateCase(ctx context.Context, c Case) CaseResult {
	runCtx, cancel := context.WithTimeout(ctx, e.caseTimeout)
	defer cancel()

	start := time.Now()
	run := e.orch.Run(runCtx, core.Query{Text: c.Query})

	result := CaseResult{
		CaseID:          c.CaseID(),
		Query:           c.Query,
		ExpectedPrimary: c.ExpectedPrimary,
		ActualAgents:    run.AgentsUsed,
		Confidence:      run.Routing.Confidence,
		ExpectedTools:   c.ExpectedTools,
		Latency:         time.Since(start),
	}

	scoreRouting(&result, c, run.AgentsUsed)

	for _, resp := range run.Responses {
		for _, call := range resp.ToolsUsed {
			result.ActualTools = append(result.ActualTools, call.Name)
		}
	}
	result.ToolRecall = recall(c.ExpectedTools, result.ActualTools)

	result.KeywordCoverage, result.MissingKeywords = keywordCoverage(c.ExpectedKeywords, run.FinalAnswer)

	result.Verdict = verdict(c, result)

	e.logger.Debug("evaluation.case_done",
		"case_id", result.CaseID,
		"verdict", result.Verdict,
		"latency", result.Latency,
	)

	return result
}

// CaseID returns the case identifier, falling back to the query text.
func (c Case) CaseID() string {
	if c.ID != "" {
		return c.ID
	}
	return c.Query
}

func scoreRouting(result *CaseResult, c Case, actual []core.AgentID) {
	// Multi-domain queries have no canonical ordering, so the expected
	// primary only has to be part of the fan-out set.
	if c.RequiresMultiAgent {
		result.RoutingCorrect = containsAgent(actual, c.ExpectedPrimary)
	} else {
		result.RoutingCorrect = len(actual) > 0 && actual[0] == c.ExpectedPrimary
	}

	result.MultiAgentCorrect = true
	if c.RequiresMultiAgent {
		result.MultiAgentCorrect = len(actual) > 1
		for _, want := range c.SecondaryAgents {
			if !containsAgent(actual, want) {
				result.MultiAgentCorrect = false
			}
		}
	}
}

func verdict(c Case, result CaseResult) Verdict {
	routingOK := result.RoutingCorrect && result.MultiAgentCorrect
	toolsOK := len(c.ExpectedTools) == 0 || result.ToolRecall == 1
	keywordsOK := len(c.ExpectedKeywords) == 0 || result.KeywordCoverage == 1

	switch {
	case routingOK && toolsOK && keywordsOK:
		return VerdictPass
	case routingOK:
		return VerdictPartial
	default:
		return VerdictFail
	}
}

// recall is the fraction of expected entries present in actual.
func recall(expected, actual []string) float64 {
	if len(expected) == 0 {
		return 1
	}
	found := 0
	for _, want := range expected {
		for _, got := range actual {
			if want == got {
				found++
				break
			}
		}
	}
	return float64(found) / float64(len(expected))
}

// keywordCoverage reports the fraction of keywords present in the answer,
// case-insensitively, and the keywords that are missing.
func keywordCoverage(keywords []string, answer string) (float64, []string) {
	if len(keywords) == 0 {
		return 1, nil
	}
	lower := strings.ToLower(answer)

	var missing []string
	found := 0
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			found++
		} else {
			missing = append(missing, kw)
		}
	}
	return float64(found) / float64(len(keywords)), missing
}

func containsAgent(ids []core.AgentID, want core.AgentID) bool {
	for _, id := range ids {
		if id == want {
			return true
		}
	}
	return false
}
