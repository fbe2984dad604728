package domainmesh

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/domainmesh/agent"
	"github.com/hupe1980/domainmesh/config"
	"github.com/hupe1980/domainmesh/core"
	"github.com/hupe1980/domainmesh/model"
	"github.com/hupe1980/domainmesh/retrieval"
)

func TestMeshRunRoutesToDomainAgent(t *testing.T) {
	mesh := New(func(o *Options) {
		o.Model = model.NewScriptedModel(model.Step{Text: "The portfolio carries moderate risk."})
	})

	result := mesh.Run(context.Background(), core.Query{Text: "Assess the risk of my stock portfolio"})

	require.Equal(t, []core.AgentID{core.AgentFinance}, result.AgentsUsed)
	assert.Equal(t, "The portfolio carries moderate risk.", result.FinalAnswer)
}

func TestMeshRunStream(t *testing.T) {
	mesh := New(func(o *Options) {
		o.Model = model.NewScriptedModel(model.Step{Text: "done"})
	})

	responseCh, resultCh, cancel := mesh.RunStream(context.Background(), core.Query{
		Agents: []core.AgentID{core.AgentGeneral},
	})
	defer cancel()

	var responses []*agent.Response
	for resp := range responseCh {
		responses = append(responses, resp)
	}
	result := <-resultCh

	require.Len(t, responses, 1)
	assert.Equal(t, core.AgentGeneral, responses[0].AgentID)
	assert.Equal(t, "done", result.FinalAnswer)
}

func TestMeshAgents(t *testing.T) {
	mesh := New(func(o *Options) {
		o.Model = model.NewScriptedModel()
	})

	agents := mesh.Agents()

	assert.Contains(t, agents, core.AgentFinance)
	assert.Contains(t, agents, core.AgentLegal)
	assert.Contains(t, agents, core.AgentHealthcare)
	assert.Contains(t, agents, core.AgentGeneral)
}

func TestMeshIngestWithoutKnowledgeBase(t *testing.T) {
	mesh := New(func(o *Options) {
		o.Model = model.NewScriptedModel()
	})

	err := mesh.Ingest(context.Background(), core.Document{Content: "x"})
	assert.ErrorIs(t, err, retrieval.ErrUnavailable)
}

func TestMeshRunRecordsHistory(t *testing.T) {
	mesh := New(func(o *Options) {
		o.Model = model.NewScriptedModel(model.Step{Text: "recorded"})
	})

	mesh.Run(context.Background(), core.Query{Agents: []core.AgentID{core.AgentGeneral}})

	recent := mesh.History().Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "recorded", recent[0].Result.FinalAnswer)
	assert.NotEmpty(t, recent[0].ID)
}

func TestMeshTimeoutFromSettings(t *testing.T) {
	settings := config.Default()
	settings.AgentTimeout = 50 * time.Millisecond

	mesh := New(func(o *Options) {
		o.Settings = settings
		o.Model = model.NewScriptedModel(model.Step{Text: "late", Delay: time.Second})
	})

	result := mesh.Run(context.Background(), core.Query{Agents: []core.AgentID{core.AgentGeneral}})

	assert.Equal(t, agent.ReasonTimedOut, result.Responses[core.AgentGeneral].TerminalReason)
}
