package retrieval

import (
	"context"
	"sort"
	"strings"

	"github.com/hupe1980/domainmesh/core"
)

// LexicalReranker scores candidates by query-term overlap. It is the
// dependency-free fallback used when no learned rerank service is configured;
// precision is lower but ordering remains deterministic.
type LexicalReranker struct{}

// Rerank implements Reranker.
func (LexicalReranker) Rerank(_ context.Context, query string, candidates []core.Document, n int) ([]core.Passage, error) {
	terms := tokenize(query)

	passages := make([]core.Passage, 0, len(candidates))
	for _, doc := range candidates {
		passages = append(passages, core.Passage{
			SourceID: doc.ID,
			Text:     doc.Content,
			Score:    overlapScore(terms, doc.Content),
		})
	}
	sort.SliceStable(passages, func(i, j int) bool {
		return passages[i].Score > passages[j].Score
	})

	if n > len(passages) {
		n = len(passages)
	}
	return passages[:n], nil
}

// overlapScore is the fraction of query terms present in the content.
func overlapScore(terms []string, content string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(content)
	hits := 0
	for _, term := range terms {
		if strings.Contains(lower, term) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()[]")
		if len(f) > 2 {
			out = append(out, f)
		}
	}
	return out
}
