// Package model defines the provider-agnostic abstractions and concrete
// helpers for interacting with generation models inside domainmesh.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition)
//   - Keep request/response shapes minimal and transport independent
//   - Wrap providers in a Client that adds bounded retry with exponential
//     backoff, circuit breaking, client-side rate limiting and sliding-window
//     context truncation
//   - Facilitate lightweight mocking for tests (MockModel, ScriptedModel)
//
// Providers (e.g. OpenAI, Anthropic) implement the Model interface from this
// package so higher layers (agents, orchestrator) remain decoupled from
// vendor SDKs.
package model
