package retrieval

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/hupe1980/domainmesh/core"
)

// VectorStore is the candidate-fetch backend of the pipeline. The in-memory
// implementation below suits tests and small corpora; swap in a vector
// database behind the same interface for production retrieval.
type VectorStore interface {
	// Add stores documents that already carry embeddings.
	Add(documents ...core.Document) error

	// SimilaritySearch returns up to topK documents ordered by descending
	// cosine similarity to the query vector. An empty store returns an
	// empty slice, not an error.
	SimilaritySearch(queryEmbedding []float64, topK int) ([]core.Document, error)

	// Len reports the number of stored documents.
	Len() int
}

// InMemoryStore is a process-local VectorStore using brute-force cosine
// similarity over all stored documents. Protected by RWMutex.
type InMemoryStore struct {
	mu        sync.RWMutex
	documents map[string]core.Document
}

// NewInMemoryStore creates an empty in-memory vector store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{documents: make(map[string]core.Document)}
}

// Add implements VectorStore. Documents without an embedding are rejected;
// documents without an ID receive a generated one.
func (s *InMemoryStore) Add(documents ...core.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range documents {
		if len(doc.Embedding) == 0 {
			return fmt.Errorf("document %q has no embedding", doc.ID)
		}
		if doc.ID == "" {
			doc.ID = core.NewDocumentID()
		}
		s.documents[doc.ID] = doc
	}
	return nil
}

// SimilaritySearch implements VectorStore.
func (s *InMemoryStore) SimilaritySearch(queryEmbedding []float64, topK int) ([]core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.documents) == 0 || topK <= 0 {
		return []core.Document{}, nil
	}

	type scored struct {
		score float64
		doc   core.Document
	}
	scores := make([]scored, 0, len(s.documents))
	for _, doc := range s.documents {
		scores = append(scores, scored{score: cosineSimilarity(queryEmbedding, doc.Embedding), doc: doc})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].doc.ID < scores[j].doc.ID
	})

	if topK > len(scores) {
		topK = len(scores)
	}
	out := make([]core.Document, topK)
	for i := 0; i < topK; i++ {
		out[i] = scores[i].doc
	}
	return out, nil
}

// Len implements VectorStore.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents)
}

// Clear removes all stored documents.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents = make(map[string]core.Document)
}

// cosineSimilarity returns the cosine of the angle between a and b, or 0 for
// mismatched or zero-length vectors.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
