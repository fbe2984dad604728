package core

// AgentID identifies a domain-scoped reasoning agent. The set is closed at
// process start: new agents may be registered during orchestrator
// construction and the registry is read-only thereafter.
type AgentID string

// Built-in domain agents.
const (
	AgentFinance    AgentID = "finance"
	AgentLegal      AgentID = "legal"
	AgentHealthcare AgentID = "healthcare"
	// AgentGeneral is the fail-closed fallback used when routing is
	// inconclusive. It answers without domain tools.
	AgentGeneral AgentID = "general"
)

// Query is the immutable inbound request handled by the orchestrator.
type Query struct {
	Text string `json:"text"`
	// Agents, when non-empty, bypasses classification: exactly these agents
	// run, in the order supplied.
	Agents []AgentID `json:"agents,omitempty"`
}
