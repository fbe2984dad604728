package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/domainmesh/retrieval"
	"github.com/hupe1980/domainmesh/tool"
)

// passagePreviewLen bounds how much of each passage is surfaced to the model.
const passagePreviewLen = 500

// NewKnowledgeSearchTool exposes the retrieval pipeline to the model as a
// regular tool. Retrieval failures degrade gracefully: the tool reports the
// outage as its output so the agent can proceed without retrieved context
// instead of aborting the run.
func NewKnowledgeSearchTool(pipeline *retrieval.Pipeline, defaultTopK int) *tool.FunctionTool {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}

	return tool.NewFunctionTool(
		"search_knowledge_base",
		"Search the knowledge base for relevant information. Use this when you need to find specific facts or context.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query",
				},
				"top_k": map[string]any{
					"type":        "integer",
					"description": "Number of results to return",
				},
			},
			"required": []string{"query"},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			query, _ := args["query"].(string)
			topK := defaultTopK
			if v, ok := args["top_k"].(float64); ok && int(v) > 0 {
				topK = int(v)
			}

			passages, err := pipeline.Retrieve(ctx, query, topK)
			if err != nil {
				if errors.Is(err, retrieval.ErrUnavailable) {
					return "The knowledge base is temporarily unavailable. Proceed using your own knowledge and note the missing context.", nil
				}
				return nil, err
			}
			if len(passages) == 0 {
				return "No relevant documents found in the knowledge base.", nil
			}

			var sb strings.Builder
			for i, p := range passages {
				if i > 0 {
					sb.WriteString("\n\n")
				}
				text := p.Text
				if len(text) > passagePreviewLen {
					text = text[:passagePreviewLen] + "..."
				}
				fmt.Fprintf(&sb, "[%d] (score: %.3f, source: %s)\n%s", i+1, p.Score, p.SourceID, text)
			}
			return sb.String(), nil
		},
	)
}
