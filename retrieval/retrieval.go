package retrieval

import (
	"context"
	"errors"

	"github.com/hupe1980/domainmesh/core"
)

// ErrUnavailable marks an embedding or rerank service failure. Retrieval
// callers treat it as recoverable: an agent proceeds without retrieved
// context rather than failing the whole query.
var ErrUnavailable = errors.New("retrieval service unavailable")

// Embedder converts text into fixed-dimension vectors. Implementations must
// be safe for concurrent use.
type Embedder interface {
	// EmbedDocuments embeds a batch of passages for indexing.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error)

	// EmbedQuery embeds a single query for similarity search.
	EmbedQuery(ctx context.Context, text string) ([]float64, error)
}

// Reranker reorders candidate documents by learned relevance against the raw
// query text. Implementations must be safe for concurrent use.
type Reranker interface {
	// Rerank returns the top n candidates as scored passages, ordered by
	// descending relevance.
	Rerank(ctx context.Context, query string, candidates []core.Document, n int) ([]core.Passage, error)
}
