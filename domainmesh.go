// Package domainmesh provides a high-level façade over the orchestrator,
// domain agents and retrieval pipeline. Most applications interact with this
// package by:
//  1. Creating a Mesh via New() (optionally overriding the model, knowledge
//     base or settings)
//  2. Optionally ingesting documents into the knowledge base
//  3. Running queries synchronously (Run) or with incremental per-agent
//     delivery (RunStream)
//
// The façade wires the default domain agents (finance, legal, healthcare,
// general) onto one protected generation client. All defaults are safe for
// local development; production deployments typically supply their own
// settings and a structured logger.
package domainmesh

import (
	"context"
	"time"

	"github.com/hupe1980/domainmesh/agent"
	"github.com/hupe1980/domainmesh/config"
	"github.com/hupe1980/domainmesh/core"
	"github.com/hupe1980/domainmesh/history"
	"github.com/hupe1980/domainmesh/logging"
	"github.com/hupe1980/domainmesh/model"
	"github.com/hupe1980/domainmesh/model/openai"
	"github.com/hupe1980/domainmesh/orchestrator"
	"github.com/hupe1980/domainmesh/retrieval"
	retrievalopenai "github.com/hupe1980/domainmesh/retrieval/openai"
)

// Options configure a Mesh.
type Options struct {
	// Settings tune the agents, client and retrieval. Defaults to
	// config.Default().
	Settings config.Settings

	// Model overrides the generation backend. Defaults to the OpenAI
	// adapter configured from the environment.
	Model model.Model

	// Pipeline supplies the knowledge base shared by all agents. Nil
	// disables knowledge search.
	Pipeline *retrieval.Pipeline

	// Ingestor accepts documents for the knowledge base. Nil disables
	// ingestion.
	Ingestor *retrieval.Ingestor

	// History records completed runs. Defaults to an in-memory store.
	History history.Store

	// Logger defaults to NoOp.
	Logger logging.Logger
}

// Mesh aggregates the orchestrator, the domain agents and the knowledge base
// behind a small surface.
type Mesh struct {
	orch     *orchestrator.Orchestrator
	ingestor *retrieval.Ingestor
	history  history.Store
	settings config.Settings
}

// New creates a Mesh with the default domain agents. Any unset option falls
// back to a local in-process implementation.
func New(optFns ...func(o *Options)) *Mesh {
	opts := Options{
		Settings: config.Default(),
		History:  history.NewInMemoryStore(),
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Model == nil {
		opts.Model = openai.New(func(o *openai.Options) {
			o.Model = opts.Settings.GenerationModel
		})
	}

	client := model.NewClient(opts.Model, func(o *model.ClientOptions) {
		o.Retry.MaxAttempts = opts.Settings.MaxRetryAttempts
		o.RequestsPerSecond = opts.Settings.RequestsPerSecond
		o.Logger = opts.Logger
	})

	agentOpts := func(o *agent.Options) {
		o.MaxIterations = opts.Settings.MaxAgentIterations
		o.Logger = opts.Logger
	}

	agents := []*agent.DomainAgent{
		agent.NewFinance(client, opts.Pipeline, agentOpts),
		agent.NewLegal(client, opts.Pipeline, agentOpts),
		agent.NewHealthcare(client, opts.Pipeline, agentOpts),
		agent.NewGeneral(client, opts.Pipeline, agentOpts),
	}

	orch := orchestrator.New(client, agents, func(o *orchestrator.Options) {
		o.MaxConcurrentAgents = opts.Settings.MaxConcurrentAgents
		o.Logger = opts.Logger
	})

	return &Mesh{
		orch:     orch,
		ingestor: opts.Ingestor,
		history:  opts.History,
		settings: opts.Settings,
	}
}

// NewKnowledgeBase builds an in-memory knowledge base over the OpenAI
// embeddings API with lexical reranking, wired for use with New:
//
//	pipeline, ingestor := domainmesh.NewKnowledgeBase(settings)
//	mesh := domainmesh.New(func(o *domainmesh.Options) {
//		o.Pipeline = pipeline
//		o.Ingestor = ingestor
//	})
func NewKnowledgeBase(settings config.Settings) (*retrieval.Pipeline, *retrieval.Ingestor) {
	embedder := retrievalopenai.New(func(o *retrievalopenai.Options) {
		o.Model = settings.EmbeddingModel
	})
	store := retrieval.NewInMemoryStore()

	pipeline := retrieval.NewPipeline(embedder, retrieval.LexicalReranker{}, store, func(o *retrieval.PipelineOptions) {
		o.OversampleFactor = settings.OversampleFactor
		o.MinRelevance = settings.MinRelevance
	})

	return pipeline, retrieval.NewIngestor(embedder, store)
}

// Ingest adds documents to the knowledge base.
func (m *Mesh) Ingest(ctx context.Context, documents ...core.Document) error {
	if m.ingestor == nil {
		return retrieval.ErrUnavailable
	}
	return m.ingestor.Ingest(ctx, documents...)
}

// Run answers one query, bounding the whole computation by the configured
// agent timeout on top of the caller's context.
func (m *Mesh) Run(ctx context.Context, query core.Query) *orchestrator.Result {
	runCtx, cancel := context.WithTimeout(ctx, m.settings.AgentTimeout)
	defer cancel()

	start := time.Now()
	result := m.orch.Run(runCtx, query)

	if m.history != nil {
		_, _ = m.history.Append(history.Record{
			Query:     query,
			Result:    result,
			StartedAt: start,
			Duration:  time.Since(start),
		})
	}

	return result
}

// History exposes the run-history store.
func (m *Mesh) History() history.Store { return m.history }

// RunStream answers one query, delivering per-agent responses as they
// complete and the final result last. The returned cancel function releases
// the run's timeout resources; callers should invoke it once both channels
// are drained.
func (m *Mesh) RunStream(ctx context.Context, query core.Query) (<-chan *agent.Response, <-chan *orchestrator.Result, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(ctx, m.settings.AgentTimeout)

	responseCh, resultCh := m.orch.RunStream(runCtx, query)
	return responseCh, resultCh, cancel
}

// Agents lists the registered agents with their descriptions.
func (m *Mesh) Agents() map[core.AgentID]string {
	return m.orch.Agents()
}
