package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/domainmesh/core"
	"github.com/hupe1980/domainmesh/retrieval"
	"github.com/stretchr/testify/assert"
)

type fixedEmbedder struct {
	vec []float64
	err error
}

func (f *fixedEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

func (f *fixedEmbedder) EmbedQuery(context.Context, string) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

func TestKnowledgeSearchReturnsPassages(t *testing.T) {
	store := retrieval.NewInMemoryStore()
	assert.NoError(t, store.Add(core.Document{
		ID:        "doc-1",
		Content:   "The Sharpe ratio measures risk-adjusted return.",
		Embedding: []float64{1, 0},
	}))
	pipeline := retrieval.NewPipeline(&fixedEmbedder{vec: []float64{1, 0}}, retrieval.LexicalReranker{}, store,
		func(o *retrieval.PipelineOptions) { o.MinRelevance = 0 })

	kb := NewKnowledgeSearchTool(pipeline, 5)
	out, err := kb.Call(context.Background(), map[string]any{"query": "sharpe ratio"})

	assert.NoError(t, err)
	assert.Contains(t, out.(string), "doc-1")
	assert.Contains(t, out.(string), "Sharpe ratio")
}

func TestKnowledgeSearchEmptyStore(t *testing.T) {
	pipeline := retrieval.NewPipeline(&fixedEmbedder{vec: []float64{1, 0}}, retrieval.LexicalReranker{}, retrieval.NewInMemoryStore())

	kb := NewKnowledgeSearchTool(pipeline, 5)
	out, err := kb.Call(context.Background(), map[string]any{"query": "anything"})

	assert.NoError(t, err)
	assert.Equal(t, "No relevant documents found in the knowledge base.", out)
}

func TestKnowledgeSearchDegradesOnOutage(t *testing.T) {
	store := retrieval.NewInMemoryStore()
	assert.NoError(t, store.Add(core.Document{ID: "doc-1", Content: "x", Embedding: []float64{1, 0}}))
	pipeline := retrieval.NewPipeline(&fixedEmbedder{err: errors.New("down")}, retrieval.LexicalReranker{}, store)

	kb := NewKnowledgeSearchTool(pipeline, 5)
	out, err := kb.Call(context.Background(), map[string]any{"query": "anything"})

	// The outage is reported as tool output, not as an error, so the agent
	// loop can continue without retrieved context.
	assert.NoError(t, err)
	assert.Contains(t, out.(string), "temporarily unavailable")
}
