package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/domainmesh/agent"
	"github.com/hupe1980/domainmesh/core"
	"github.com/hupe1980/domainmesh/model"
)

const synthesisInstructions = `You are a synthesis assistant. You receive a user question together with
answers produced by several domain specialists. Combine them into a single
coherent answer.

Guidelines:
- Integrate the specialist answers; do not simply list them.
- When specialists disagree, note the disagreement instead of hiding it.
- Attribute domain-specific findings to their domain where it aids clarity.
- If a specialist could not complete its task, work with what the others
  provided.
- Do not invent information that no specialist supplied.`

// synthesize merges multiple agent answers into one via a single generation
// call without tools. When the call fails, the labeled concatenation of the
// agent answers is returned so the caller still receives every finding.
func (o *Orchestrator) synthesize(ctx context.Context, query string, responses []*agent.Response) string {
	prompt := synthesisPrompt(query, responses)

	outcome, err := o.client.Generate(ctx, model.Request{
		Instructions: synthesisInstructions,
		Contents:     []core.Content{core.NewTextContent("user", prompt)},
	})
	if err != nil || outcome.Text == "" {
		if err != nil {
			o.logger.Warn("orchestrator.synthesis_failed", "error", err)
		}
		return fallbackAnswer(responses)
	}

	return outcome.Text
}

func synthesisPrompt(query string, responses []*agent.Response) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "User question:\n%s\n\nSpecialist answers:\n", query)

	for _, resp := range responses {
		fmt.Fprintf(&sb, "\n--- %s agent", resp.AgentID)
		if !resp.Completed() {
			fmt.Fprintf(&sb, " (did not complete: %s)", resp.TerminalReason)
		}
		fmt.Fprintf(&sb, " ---\n%s\n", resp.Answer)
	}

	sb.WriteString("\nCombine the specialist answers into one response to the user question.")

	return sb.String()
}

// fallbackAnswer concatenates the per-agent answers with their labels.
func fallbackAnswer(responses []*agent.Response) string {
	var sb strings.Builder

	for i, resp := range responses {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%s]\n%s", resp.AgentID, resp.Answer)
	}

	return sb.String()
}
