package core

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Document is an ingested knowledge-base entry. Embedding is attached by the
// ingestion path before the document is stored.
type Document struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Embedding []float64      `json:"embedding,omitempty"`
}

// Passage is a retrieved document fragment with a learned relevance score.
// Passages are produced fresh per retrieval call and are not cached.
type Passage struct {
	SourceID string  `json:"source_id"`
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
}

// NewID generates a unique identifier for runs and tool calls.
func NewID() string { return uuid.NewString() }

// NewDocumentID generates a lexicographically sortable document identifier,
// used when ingested documents carry no source id of their own.
func NewDocumentID() string { return ulid.Make().String() }
