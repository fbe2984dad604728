package retrieval

import (
	"testing"

	"github.com/hupe1980/domainmesh/core"
	"github.com/stretchr/testify/assert"
)

func TestStoreRejectsMissingEmbedding(t *testing.T) {
	store := NewInMemoryStore()

	err := store.Add(core.Document{ID: "a", Content: "no vector"})

	assert.Error(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestSimilaritySearchRanksByCosine(t *testing.T) {
	store := NewInMemoryStore()
	err := store.Add(
		core.Document{ID: "near", Embedding: []float64{1, 0}},
		core.Document{ID: "mid", Embedding: []float64{0.7, 0.7}},
		core.Document{ID: "far", Embedding: []float64{0, 1}},
	)
	assert.NoError(t, err)

	docs, err := store.SimilaritySearch([]float64{1, 0}, 2)

	assert.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.Equal(t, "near", docs[0].ID)
	assert.Equal(t, "mid", docs[1].ID)
}

func TestSimilaritySearchEmptyStore(t *testing.T) {
	store := NewInMemoryStore()

	docs, err := store.SimilaritySearch([]float64{1, 0}, 3)

	assert.NoError(t, err)
	assert.Empty(t, docs)
}

func TestStoreClear(t *testing.T) {
	store := NewInMemoryStore()
	assert.NoError(t, store.Add(core.Document{ID: "a", Embedding: []float64{1}}))

	store.Clear()

	assert.Equal(t, 0, store.Len())
}

func TestCosineSimilarityEdgeCases(t *testing.T) {
	assert.Equal(t, 0.0, cosineSimilarity(nil, nil))
	assert.Equal(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{1}))
	assert.Equal(t, 0.0, cosineSimilarity([]float64{0, 0}, []float64{1, 0}))
	assert.InDelta(t, 1.0, cosineSimilarity([]float64{2, 0}, []float64{5, 0}), 1e-9)
}
