// Package retrieval implements the two-stage retrieval pipeline: embed the
// query, over-fetch candidates from a vector store by cosine similarity, then
// rerank the candidates against the raw query text for precision. The
// pipeline degrades gracefully: an empty store yields an empty result and a
// failing embedding or rerank service surfaces ErrUnavailable so callers can
// proceed without retrieved context.
//
// The Embedder and Reranker contracts live here; provider adapters (like the
// OpenAI embedder in the openai subpackage) implement them.
package retrieval
