package evaluation

import (
	"sort"
	"time"

	"github.com/hupe1980/domainmesh/core"
)

// Verdict classifies a single case outcome.
type Verdict string

const (
	VerdictPass    Verdict = "pass"
	VerdictPartial Verdict = "partial"
	VerdictFail    Verdict = "fail"
)

// CaseResult is the scored outcome of one evaluation case.
type CaseResult struct {
	CaseID  string  `json:"case_id"`
	Query   string  `json:"query"`
	Verdict Verdict `json:"verdict"`

	// Routing.
	ExpectedPrimary   core.AgentID   `json:"expected_primary"`
	ActualAgents      []core.AgentID `json:"actual_agents"`
	RoutingCorrect    bool           `json:"routing_correct"`
	MultiAgentCorrect bool           `json:"multi_agent_correct"`
	Confidence        float64        `json:"confidence"`

	// Tool usage.
	ExpectedTools []string `json:"expected_tools,omitempty"`
	ActualTools   []string `json:"actual_tools,omitempty"`
	ToolRecall    float64  `json:"tool_recall"`

	// Response quality.
	MissingKeywords []string `json:"missing_keywords,omitempty"`
	KeywordCoverage float64  `json:"keyword_coverage"`

	Latency time.Duration `json:"latency"`
	Err     string        `json:"error,omitempty"`
}

// Metrics aggregate case results into a report.
type Metrics struct {
	Dataset string       `json:"dataset"`
	Results []CaseResult `json:"results"`
}

// Add appends a case result.
func (m *Metrics) Add(result CaseResult) {
	m.Results = append(m.Results, result)
}

// PassRate is the fraction of cases with a pass verdict.
func (m *Metrics) PassRate() float64 {
	if len(m.Results) == 0 {
		return 0
	}
	pass := 0
	for _, r := range m.Results {
		if r.Verdict == VerdictPass {
			pass++
		}
	}
	return float64(pass) / float64(len(m.Results))
}

// RoutingAccuracy is the fraction of cases routed to the expected primary.
func (m *Metrics) RoutingAccuracy() float64 {
	if len(m.Results) == 0 {
		return 0
	}
	correct := 0
	for _, r := range m.Results {
		if r.RoutingCorrect {
			correct++
		}
	}
	return float64(correct) / float64(len(m.Results))
}

// AvgToolRecall averages tool recall over cases that expect tools.
func (m *Metrics) AvgToolRecall() float64 {
	sum, n := 0.0, 0
	for _, r := range m.Results {
		if len(r.ExpectedTools) > 0 {
			sum += r.ToolRecall
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// AvgKeywordCoverage averages keyword coverage over cases that expect
// keywords.
func (m *Metrics) AvgKeywordCoverage() float64 {
	sum, n := 0.0, 0
	for _, r := range m.Results {
		if r.KeywordCoverage > 0 || len(r.MissingKeywords) > 0 {
			sum += r.KeywordCoverage
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// PercentileLatency returns the latency at the given percentile in [0,1].
func (m *Metrics) PercentileLatency(p float64) time.Duration {
	if len(m.Results) == 0 {
		return 0
	}
	latencies := make([]time.Duration, 0, len(m.Results))
	for _, r := range m.Results {
		latencies = append(latencies, r.Latency)
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	idx := int(float64(len(latencies)) * p)
	if idx >= len(latencies) {
		idx = len(latencies) - 1
	}
	return latencies[idx]
}

// Failures returns the results that did not fully pass.
func (m *Metrics) Failures() []CaseResult {
	var out []CaseResult
	for _, r := range m.Results {
		if r.Verdict != VerdictPass {
			out = append(out, r)
		}
	}
	return out
}
