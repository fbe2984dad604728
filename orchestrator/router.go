package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/domainmesh/core"
)

// Decision is the outcome of routing one query.
type Decision struct {
	// Agents is the non-empty ordered set of agents to run. The first entry
	// is the primary domain.
	Agents []core.AgentID `json:"agents"`
	// Confidence of the classification in [0,1]. 1.0 for explicit overrides.
	Confidence float64 `json:"confidence"`
	// Reasoning is a short human-readable explanation of the decision.
	Reasoning string `json:"reasoning"`
}

// domainKeywords drive the keyword classifier. Matching is case-insensitive
// substring search over the query text.
var domainKeywords = map[core.AgentID][]string{
	core.AgentFinance: {
		"stock", "portfolio", "investment", "market", "trading", "financial",
		"earnings", "revenue", "profit", "loss", "sec", "10-k", "10-q",
		"valuation", "dcf", "p/e", "roi", "risk", "hedge", "derivative",
		"bond", "equity", "dividend", "ipo", "m&a", "balance sheet",
	},
	core.AgentLegal: {
		"contract", "agreement", "clause", "legal", "compliance", "gdpr",
		"liability", "indemnification", "nda", "confidential",
		"intellectual property", "trademark", "patent", "lawsuit",
		"litigation", "regulatory", "terms of service", "privacy policy",
	},
	core.AgentHealthcare: {
		"patient", "clinical", "medical", "diagnosis", "treatment",
		"medication", "drug", "prescription", "icd", "cpt", "health",
		"disease", "symptom", "vital", "lab", "radiology", "surgery",
		"hospital", "physician", "nurse", "hipaa", "phi", "ehr",
	},
}

// multiAgentShare is the fraction of the top score a secondary domain must
// reach to be run alongside the primary.
const multiAgentShare = 0.5

// Router classifies query text onto domain agents. Stateless and safe for
// concurrent use.
type Router struct {
	keywords map[core.AgentID][]string
}

// NewRouter creates a router with the built-in domain keyword sets.
func NewRouter() *Router {
	return &Router{keywords: domainKeywords}
}

// Route maps a query to a non-empty ordered agent set. An explicit agent
// list on the query bypasses classification entirely. Inconclusive
// classification fails closed to the general agent.
func (r *Router) Route(query core.Query) Decision {
	if len(query.Agents) > 0 {
		return Decision{
			Agents:     append([]core.AgentID(nil), query.Agents...),
			Confidence: 1.0,
			Reasoning:  "agents explicitly requested",
		}
	}

	text := strings.ToLower(query.Text)

	scores := map[core.AgentID]int{}
	for id, keywords := range r.keywords {
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				scores[id]++
			}
		}
	}

	ids := make([]core.AgentID, 0, len(scores))
	maxScore := 0
	for id, score := range scores {
		ids = append(ids, id)
		if score > maxScore {
			maxScore = score
		}
	}

	if maxScore == 0 {
		return Decision{
			Agents:     []core.AgentID{core.AgentGeneral},
			Confidence: 0.5,
			Reasoning:  "no domain keywords matched; defaulting to general",
		}
	}

	// Deterministic order: score descending, then name for ties.
	sort.Slice(ids, func(i, j int) bool {
		if scores[ids[i]] != scores[ids[j]] {
			return scores[ids[i]] > scores[ids[j]]
		}
		return ids[i] < ids[j]
	})

	selected := []core.AgentID{ids[0]}
	for _, id := range ids[1:] {
		if float64(scores[id]) >= float64(maxScore)*multiAgentShare {
			selected = append(selected, id)
		}
	}

	confidence := 0.5 + float64(maxScore)*0.1
	if confidence > 0.95 {
		confidence = 0.95
	}

	reasoning := fmt.Sprintf("%d keyword matches for %s", maxScore, selected[0])
	if len(selected) > 1 {
		others := make([]string, 0, len(selected)-1)
		for _, id := range selected[1:] {
			others = append(others, string(id))
		}
		reasoning += "; also relevant: " + strings.Join(others, ", ")
	}

	return Decision{Agents: selected, Confidence: confidence, Reasoning: reasoning}
}
