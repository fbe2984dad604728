// Package core provides the foundational domain types used by domainmesh.
// It defines the shared leaf abstractions for:
//
//   - Role-based content with a closed set of parts (text, data, function
//     call, function response)
//   - The per-run Conversation owned exclusively by one agent invocation
//   - Agent identifiers and the inbound Query contract
//   - Documents and scored passages produced by the retrieval pipeline
//   - The CallLimiter bounding reasoning loops
//
// The package intentionally keeps implementation concerns (providers,
// retrieval backends, concrete agents, orchestration) out of scope so that
// every higher layer can depend on it without cycles.
package core
