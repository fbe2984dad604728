package agent

import (
	"github.com/hupe1980/domainmesh/core"
	"github.com/hupe1980/domainmesh/model"
	"github.com/hupe1980/domainmesh/retrieval"
	"github.com/hupe1980/domainmesh/tool"
)

const generalInstructions = `You are a helpful assistant. Provide clear, accurate and concise answers. If a question belongs to a specialized domain such as finance, law or medicine, answer at a general level and recommend consulting a specialist.`

// NewGeneral builds the fallback agent used when routing is inconclusive.
// It carries no domain tools; with a retrieval pipeline it can still search
// the knowledge base.
func NewGeneral(client *model.Client, pipeline *retrieval.Pipeline, optFns ...func(o *Options)) *DomainAgent {
	registry := tool.NewRegistry()
	if pipeline != nil {
		registry.MustRegister(NewKnowledgeSearchTool(pipeline, 5))
	}
	return New(core.AgentGeneral,
		"General-purpose assistant for queries outside the specialized domains",
		generalInstructions, client, registry, optFns...)
}
