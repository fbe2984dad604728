// Package agent implements domain-scoped reasoning agents. A DomainAgent
// owns a system prompt, a tool registry and a bounded reasoning loop that
// alternates between the generation client and local tool execution until a
// final answer is produced or the iteration budget runs out.
//
// Domain constructors (Finance, Legal, Healthcare, General) wire the built-in
// tool suites; custom agents can be assembled from New plus any registry.
package agent
