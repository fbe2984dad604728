// Package evaluation runs golden datasets against an orchestrator and scores
// routing accuracy, tool selection and response quality.
package evaluation

import "github.com/hupe1980/domainmesh/core"

// Case is a single evaluation query with its ground truth.
type Case struct {
	ID string `json:"id"`

	Query string `json:"query"`

	// ExpectedPrimary is the agent the router should pick first.
	ExpectedPrimary core.AgentID `json:"expected_primary"`

	// RequiresMultiAgent marks queries that must fan out to more than one
	// agent.
	RequiresMultiAgent bool `json:"requires_multi_agent,omitempty"`

	// SecondaryAgents that must appear in the routing decision when
	// RequiresMultiAgent is set.
	SecondaryAgents []core.AgentID `json:"secondary_agents,omitempty"`

	// ExpectedTools the agent run should have invoked, by name.
	ExpectedTools []string `json:"expected_tools,omitempty"`

	// ExpectedKeywords that a good final answer contains,
	// case-insensitively.
	ExpectedKeywords []string `json:"expected_keywords,omitempty"`
}

// Dataset is a named collection of cases.
type Dataset struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Cases       []Case `json:"cases"`
}

// FilterByPrimary returns the subset of cases expecting the given primary
// agent.
func (d Dataset) FilterByPrimary(id core.AgentID) Dataset {
	out := Dataset{
		Name:        d.Name + "_" + string(id),
		Description: d.Description,
	}
	for _, c := range d.Cases {
		if c.ExpectedPrimary == id {
			out.Cases = append(out.Cases, c)
		}
	}
	return out
}

// RoutingDataset covers routing ground truth across all domains, including
// multi-domain fan-out cases.
func RoutingDataset() Dataset {
	return Dataset{
		Name:        "routing_accuracy",
		Description: "whether queries reach the correct domain agents",
		Cases: []Case{
			{
				ID:              "route_fin_01",
				Query:           "What is the current P/E ratio for AAPL and how does it compare to the sector average?",
				ExpectedPrimary: core.AgentFinance,
				ExpectedTools:   []string{"analyze_financial_ratios"},
			},
			{
				ID:              "route_fin_02",
				Query:           "Run a DCF valuation on Tesla with 10% discount rate and 3% terminal growth",
				ExpectedPrimary: core.AgentFinance,
				ExpectedTools:   []string{"calculate_dcf_valuation"},
			},
			{
				ID:              "route_fin_03",
				Query:           "Calculate VaR and Sharpe ratio for a portfolio with 40% AAPL, 30% MSFT, 30% GOOGL",
				ExpectedPrimary: core.AgentFinance,
				ExpectedTools:   []string{"calculate_risk_metrics"},
			},
			{
				ID:              "route_leg_01",
				Query:           "Review this NDA and identify any non-standard clauses or risks",
				ExpectedPrimary: core.AgentLegal,
				ExpectedTools:   []string{"analyze_nda"},
			},
			{
				ID:              "route_leg_02",
				Query:           "Check if our data processing practices comply with GDPR and CCPA requirements",
				ExpectedPrimary: core.AgentLegal,
				ExpectedTools:   []string{"check_compliance"},
			},
			{
				ID:              "route_hc_01",
				Query:           "Parse this clinical note and extract diagnoses, medications, and procedures",
				ExpectedPrimary: core.AgentHealthcare,
				ExpectedTools:   []string{"parse_clinical_note"},
			},
			{
				ID:              "route_hc_02",
				Query:           "Check for drug interactions between metformin, lisinopril, and warfarin",
				ExpectedPrimary: core.AgentHealthcare,
				ExpectedTools:   []string{"check_drug_interactions"},
			},
			{
				ID:              "route_gen_01",
				Query:           "Summarize the key points from this document",
				ExpectedPrimary: core.AgentGeneral,
			},
			{
				ID:                 "route_multi_01",
				Query:              "What are the legal and financial implications of a healthcare data breach?",
				ExpectedPrimary:    core.AgentLegal,
				RequiresMultiAgent: true,
				SecondaryAgents:    []core.AgentID{core.AgentHealthcare},
			},
			{
				ID:                 "route_multi_02",
				Query:              "Review the compliance requirements and financial impact of HIPAA violations",
				ExpectedPrimary:    core.AgentLegal,
				RequiresMultiAgent: true,
			},
		},
	}
}

// QualityDataset covers answer content expectations.
func QualityDataset() Dataset {
	return Dataset{
		Name:        "response_quality",
		Description: "whether final answers contain the expected findings",
		Cases: []Case{
			{
				ID:               "qual_fin_01",
				Query:            "Analyze the risk profile of my stock portfolio",
				ExpectedPrimary:  core.AgentFinance,
				ExpectedTools:    []string{"calculate_risk_metrics"},
				ExpectedKeywords: []string{"volatility", "sharpe", "risk"},
			},
			{
				ID:               "qual_leg_01",
				Query:            "What GDPR requirements apply to processing EU customer data?",
				ExpectedPrimary:  core.AgentLegal,
				ExpectedTools:    []string{"check_compliance"},
				ExpectedKeywords: []string{"consent", "data protection"},
			},
			{
				ID:               "qual_hc_01",
				Query:            "What ICD-10 codes apply to a patient with type 2 diabetes and hypertension?",
				ExpectedPrimary:  core.AgentHealthcare,
				ExpectedTools:    []string{"suggest_icd_codes"},
				ExpectedKeywords: []string{"E11", "I10"},
			},
		},
	}
}

// FullSuite combines every built-in dataset.
func FullSuite() Dataset {
	routing := RoutingDataset()
	quality := QualityDataset()
	return Dataset{
		Name:        "full_suite",
		Description: "routing and response quality combined",
		Cases:       append(append([]Case(nil), routing.Cases...), quality.Cases...),
	}
}
