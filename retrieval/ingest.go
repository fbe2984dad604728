package retrieval

import (
	"context"
	"fmt"

	"github.com/hupe1980/domainmesh/core"
)

// embedBatchSize bounds the number of texts sent to the embedding service in
// one call.
const embedBatchSize = 96

// Ingestor adds passages to the vector store backing the pipeline: it embeds
// document contents in batches and stores the results. How documents are
// chunked or uploaded is the caller's concern.
type Ingestor struct {
	embedder Embedder
	store    VectorStore
}

// NewIngestor wires an ingestor from an embedder and a store.
func NewIngestor(embedder Embedder, store VectorStore) *Ingestor {
	return &Ingestor{embedder: embedder, store: store}
}

// Ingest embeds and stores the given documents. Documents without an ID
// receive a generated sortable one. Pre-embedded documents keep their
// embedding.
func (in *Ingestor) Ingest(ctx context.Context, documents ...core.Document) error {
	pending := make([]int, 0, len(documents))
	for i := range documents {
		if documents[i].ID == "" {
			documents[i].ID = core.NewDocumentID()
		}
		if len(documents[i].Embedding) == 0 {
			pending = append(pending, i)
		}
	}

	for start := 0; start < len(pending); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		texts := make([]string, len(batch))
		for i, idx := range batch {
			texts[i] = documents[idx].Content
		}

		embeddings, err := in.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return fmt.Errorf("%w: embed documents: %v", ErrUnavailable, err)
		}
		if len(embeddings) != len(batch) {
			return fmt.Errorf("%w: embedding count mismatch: got %d want %d",
				ErrUnavailable, len(embeddings), len(batch))
		}
		for i, idx := range batch {
			documents[idx].Embedding = embeddings[i]
		}
	}

	return in.store.Add(documents...)
}
