package retrieval

import (
	"context"
	"fmt"

	"github.com/hupe1980/domainmesh/core"
	"github.com/hupe1980/domainmesh/logging"
)

// PipelineOptions tune the two-stage retrieval pass.
type PipelineOptions struct {
	// OversampleFactor multiplies topK to size the candidate set fetched
	// from the vector store before reranking. Minimum effective value is 1.
	OversampleFactor int

	// MinRelevance drops reranked passages scoring below this threshold.
	MinRelevance float64

	Logger logging.Logger
}

// Pipeline retrieves supporting passages for a query: embed, over-fetch by
// vector similarity, rerank, threshold and truncate. Stateless across calls
// and safe for concurrent use as long as its services are.
type Pipeline struct {
	embedder Embedder
	reranker Reranker
	store    VectorStore
	opts     PipelineOptions
}

// NewPipeline wires a pipeline from its three services.
func NewPipeline(embedder Embedder, reranker Reranker, store VectorStore, optFns ...func(o *PipelineOptions)) *Pipeline {
	opts := PipelineOptions{
		OversampleFactor: 3,
		MinRelevance:     0.1,
		Logger:           logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.OversampleFactor < 1 {
		opts.OversampleFactor = 1
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Pipeline{embedder: embedder, reranker: reranker, store: store, opts: opts}
}

// Retrieve returns up to topK passages ordered by descending relevance. An
// empty store yields an empty slice. Embedding or rerank failures wrap
// ErrUnavailable so the caller can degrade gracefully.
func (p *Pipeline) Retrieve(ctx context.Context, queryText string, topK int) ([]core.Passage, error) {
	if topK <= 0 || p.store.Len() == 0 {
		return []core.Passage{}, nil
	}

	queryEmbedding, err := p.embedder.EmbedQuery(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", ErrUnavailable, err)
	}

	candidates, err := p.store.SimilaritySearch(queryEmbedding, topK*p.opts.OversampleFactor)
	if err != nil {
		return nil, fmt.Errorf("%w: similarity search: %v", ErrUnavailable, err)
	}
	if len(candidates) == 0 {
		return []core.Passage{}, nil
	}

	passages, err := p.reranker.Rerank(ctx, queryText, candidates, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: rerank: %v", ErrUnavailable, err)
	}

	out := make([]core.Passage, 0, topK)
	for _, passage := range passages {
		if passage.Score < p.opts.MinRelevance {
			continue
		}
		out = append(out, passage)
		if len(out) == topK {
			break
		}
	}

	p.opts.Logger.Debug("retrieval complete",
		"candidates", len(candidates), "returned", len(out))

	return out, nil
}
