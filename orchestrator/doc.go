// Package orchestrator routes queries to domain agents, runs the selected
// agents concurrently and merges their outputs into one response. Routing
// prefers an explicit agent list, then a keyword classifier, and fails closed
// to the general agent. Synthesis across multiple agents is a single no-tool
// generation call with a concatenation fallback.
package orchestrator
