package retrieval

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hupe1980/domainmesh/core"
	"github.com/stretchr/testify/assert"
)

// stubEmbedder maps known texts to fixed vectors.
type stubEmbedder struct {
	vectors map[string][]float64
	err     error
}

func (s *stubEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v, ok := s.vectors[t]
		if !ok {
			return nil, fmt.Errorf("no vector for %q", t)
		}
		out[i] = v
	}
	return out, nil
}

func (s *stubEmbedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	vs, err := s.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

// scoreReranker assigns a fixed score per document id.
type scoreReranker struct {
	scores map[string]float64
	err    error
}

func (s *scoreReranker) Rerank(_ context.Context, _ string, candidates []core.Document, n int) ([]core.Passage, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]core.Passage, 0, len(candidates))
	for _, doc := range candidates {
		out = append(out, core.Passage{SourceID: doc.ID, Text: doc.Content, Score: s.scores[doc.ID]})
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Score > out[i].Score {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if n < len(out) {
		out = out[:n]
	}
	return out, nil
}

func seededStore(t *testing.T) *InMemoryStore {
	t.Helper()
	store := NewInMemoryStore()
	err := store.Add(
		core.Document{ID: "a", Content: "portfolio diversification basics", Embedding: []float64{1, 0, 0}},
		core.Document{ID: "b", Content: "value at risk explained", Embedding: []float64{0.9, 0.1, 0}},
		core.Document{ID: "c", Content: "contract indemnification clauses", Embedding: []float64{0, 1, 0}},
		core.Document{ID: "d", Content: "anticoagulant interactions", Embedding: []float64{0, 0, 1}},
	)
	assert.NoError(t, err)
	return store
}

func TestRetrieveEmptyStore(t *testing.T) {
	pipeline := NewPipeline(
		&stubEmbedder{vectors: map[string][]float64{"anything": {1, 0, 0}}},
		&scoreReranker{},
		NewInMemoryStore(),
	)

	passages, err := pipeline.Retrieve(context.Background(), "anything", 5)

	assert.NoError(t, err)
	assert.Empty(t, passages)
}

func TestRetrieveOrderedAndTruncated(t *testing.T) {
	pipeline := NewPipeline(
		&stubEmbedder{vectors: map[string][]float64{"risk": {1, 0, 0}}},
		&scoreReranker{scores: map[string]float64{"a": 0.4, "b": 0.9, "c": 0.3, "d": 0.2}},
		seededStore(t),
	)

	passages, err := pipeline.Retrieve(context.Background(), "risk", 2)

	assert.NoError(t, err)
	assert.Len(t, passages, 2)
	assert.Equal(t, "b", passages[0].SourceID)
	assert.Equal(t, "a", passages[1].SourceID)
	assert.GreaterOrEqual(t, passages[0].Score, passages[1].Score)
}

func TestRetrieveAppliesRelevanceThreshold(t *testing.T) {
	pipeline := NewPipeline(
		&stubEmbedder{vectors: map[string][]float64{"risk": {1, 0, 0}}},
		&scoreReranker{scores: map[string]float64{"a": 0.05, "b": 0.9, "c": 0.02, "d": 0.01}},
		seededStore(t),
		func(o *PipelineOptions) { o.MinRelevance = 0.5 },
	)

	passages, err := pipeline.Retrieve(context.Background(), "risk", 4)

	assert.NoError(t, err)
	assert.Len(t, passages, 1)
	assert.Equal(t, "b", passages[0].SourceID)
}

func TestRetrieveEmbedderFailure(t *testing.T) {
	pipeline := NewPipeline(
		&stubEmbedder{err: errors.New("boom")},
		&scoreReranker{},
		seededStore(t),
	)

	_, err := pipeline.Retrieve(context.Background(), "risk", 2)

	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRetrieveRerankerFailure(t *testing.T) {
	pipeline := NewPipeline(
		&stubEmbedder{vectors: map[string][]float64{"risk": {1, 0, 0}}},
		&scoreReranker{err: errors.New("boom")},
		seededStore(t),
	)

	_, err := pipeline.Retrieve(context.Background(), "risk", 2)

	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestIngestorAssignsIDsAndEmbeds(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float64{
		"first":  {1, 0, 0},
		"second": {0, 1, 0},
	}}
	store := NewInMemoryStore()
	ingestor := NewIngestor(embedder, store)

	err := ingestor.Ingest(context.Background(),
		core.Document{Content: "first"},
		core.Document{ID: "doc-2", Content: "second"},
	)

	assert.NoError(t, err)
	assert.Equal(t, 2, store.Len())

	docs, err := store.SimilaritySearch([]float64{1, 0, 0}, 1)
	assert.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.Equal(t, "first", docs[0].Content)
	assert.NotEmpty(t, docs[0].ID)
}

func TestLexicalRerankerOrdersByOverlap(t *testing.T) {
	reranker := LexicalReranker{}

	passages, err := reranker.Rerank(context.Background(), "portfolio risk metrics", []core.Document{
		{ID: "x", Content: "weather report for tomorrow"},
		{ID: "y", Content: "portfolio risk metrics and volatility"},
		{ID: "z", Content: "portfolio construction"},
	}, 2)

	assert.NoError(t, err)
	assert.Len(t, passages, 2)
	assert.Equal(t, "y", passages[0].SourceID)
	assert.Equal(t, "z", passages[1].SourceID)
}
