package orchestrator

import (
	"context"
	"sync"

	"github.com/hupe1980/domainmesh/agent"
	"github.com/hupe1980/domainmesh/core"
	"github.com/hupe1980/domainmesh/logging"
	"github.com/hupe1980/domainmesh/model"
)

// Result is the terminal artifact returned to the caller. FinalAnswer is
// never empty, even when every agent degraded.
type Result struct {
	FinalAnswer string                           `json:"final_answer"`
	AgentsUsed  []core.AgentID                   `json:"agents_used"`
	Responses   map[core.AgentID]*agent.Response `json:"responses"`
	Routing     Decision                         `json:"routing"`
}

// Options configure an Orchestrator.
type Options struct {
	// MaxConcurrentAgents bounds parallel agent runs. Values < 1 mean
	// unbounded.
	MaxConcurrentAgents int
	Router              *Router
	Logger              logging.Logger
}

// Orchestrator coordinates domain agents for one query at a time. The agent
// registry is fixed at construction; Run may be called concurrently.
type Orchestrator struct {
	agents        map[core.AgentID]*agent.DomainAgent
	router        *Router
	client        *model.Client
	maxConcurrent int
	logger        logging.Logger
}

// New creates an orchestrator over the given agents. The client is used for
// the synthesis call only; agents carry their own clients.
func New(client *model.Client, agents []*agent.DomainAgent, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		MaxConcurrentAgents: 4,
		Router:              NewRouter(),
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Router == nil {
		opts.Router = NewRouter()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	byID := make(map[core.AgentID]*agent.DomainAgent, len(agents))
	for _, a := range agents {
		byID[a.ID()] = a
	}

	return &Orchestrator{
		agents:        byID,
		router:        opts.Router,
		client:        client,
		maxConcurrent: opts.MaxConcurrentAgents,
		logger:        opts.Logger,
	}
}

// Agents returns metadata for the registered agents.
func (o *Orchestrator) Agents() map[core.AgentID]string {
	out := make(map[core.AgentID]string, len(o.agents))
	for id, a := range o.agents {
		out[id] = a.Description()
	}
	return out
}

// Run routes, executes and synthesizes one query. The caller's context
// deadline bounds the whole computation; agents that have not finished when
// it elapses report TimedOut in their per-agent responses.
func (o *Orchestrator) Run(ctx context.Context, query core.Query) *Result {
	decision := o.router.Route(query)
	o.logger.Info("orchestrator.routed",
		"agents", decision.Agents,
		"confidence", decision.Confidence,
	)

	responses := o.runAgents(ctx, query.Text, decision.Agents, nil)

	return o.finish(ctx, query.Text, decision, responses)
}

// RunStream is Run with incremental delivery: agent responses are emitted on
// the first channel as they complete, then the final result on the second.
// Both channels are closed when the computation ends.
func (o *Orchestrator) RunStream(ctx context.Context, query core.Query) (<-chan *agent.Response, <-chan *Result) {
	responseCh := make(chan *agent.Response, len(o.agents)+1)
	resultCh := make(chan *Result, 1)

	go func() {
		defer close(responseCh)
		defer close(resultCh)

		decision := o.router.Route(query)
		responses := o.runAgents(ctx, query.Text, decision.Agents, responseCh)
		resultCh <- o.finish(ctx, query.Text, decision, responses)
	}()

	return responseCh, resultCh
}

// runAgents fans the query out to the selected agents, bounded by the
// concurrency limit, and collects every response. When emit is non-nil each
// response is forwarded as soon as it is available.
func (o *Orchestrator) runAgents(ctx context.Context, text string, ids []core.AgentID, emit chan<- *agent.Response) []*agent.Response {
	var sem chan struct{}
	if o.maxConcurrent > 0 {
		sem = make(chan struct{}, o.maxConcurrent)
	}

	responses := make([]*agent.Response, len(ids))
	var wg sync.WaitGroup

	for i, id := range ids {
		wg.Add(1)
		go func(i int, id core.AgentID) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}

			resp := o.runOne(ctx, id, text)
			responses[i] = resp
			if emit != nil {
				emit <- resp
			}
		}(i, id)
	}
	wg.Wait()

	return responses
}

// runOne executes a single agent, covering the case of a requested agent
// that is not registered.
func (o *Orchestrator) runOne(ctx context.Context, id core.AgentID, text string) *agent.Response {
	a, ok := o.agents[id]
	if !ok {
		return &agent.Response{
			AgentID:        id,
			Answer:         "The " + string(id) + " agent is not available.",
			TerminalReason: agent.ReasonGenerationFailed,
		}
	}
	return a.Run(ctx, text)
}

// finish synthesizes the collected responses into the terminal Result.
func (o *Orchestrator) finish(ctx context.Context, text string, decision Decision, responses []*agent.Response) *Result {
	byID := make(map[core.AgentID]*agent.Response, len(responses))
	for _, resp := range responses {
		byID[resp.AgentID] = resp
	}

	result := &Result{
		AgentsUsed: decision.Agents,
		Responses:  byID,
		Routing:    decision,
	}

	if len(responses) == 1 {
		result.FinalAnswer = responses[0].Answer
		return result
	}

	result.FinalAnswer = o.synthesize(ctx, text, responses)
	return result
}
