package strategy

import (
	"context"
	"fmt"

	"github.com/conductorhq/conductor/conversation"
	"github.com/conductorhq/conductor/core"
)

// Direct is the simplest strategy: classify once, then either answer from
// the LLM directly, run exactly one tool, or delegate to the multi-step
// engine — no iteration, no self-critique (spec §4.1).
type Direct struct {
	Deps
}

// NewDirect builds a Direct strategy over deps.
func NewDirect(deps Deps) *Direct {
	return &Direct{Deps: deps}
}

func (d *Direct) ProcessQuery(ctx context.Context, query string, history []conversation.Message) (string, error) {
	query = withHistory(history, query)
	analysis := analyzeQuery(ctx, d.Provider, query)
	d.Observer.EmitInferenceStart(query, "direct")
	d.Observer.EmitThought(analysis.Reasoning)

	switch analysis.Class {
	case core.SingleTool:
		return d.runSingleTool(ctx, query)
	case core.MultiTool:
		return d.runMultiTool(ctx, query)
	default:
		return d.runDirectAnswer(ctx, query)
	}
}

func (d *Direct) runDirectAnswer(ctx context.Context, query string) (string, error) {
	if d.Provider == nil {
		return "", fmt.Errorf("%w: no llm provider configured", core.ErrLLM)
	}
	text, err := d.Provider.Generate(ctx, query)
	if err != nil {
		d.Observer.EmitError("direct answer failed", err)
		return "", fmt.Errorf("%w: %v", core.ErrLLM, err)
	}
	d.Observer.EmitInferenceComplete(text)
	return text, nil
}

func (d *Direct) runSingleTool(ctx context.Context, query string) (string, error) {
	candidates := d.candidateTools(ctx, query, false)
	d.Observer.EmitToolDiscovery(toolNames(candidates))

	tool, args, err := d.Matcher.MatchSingle(ctx, query, candidates)
	if err != nil {
		d.Observer.EmitError("tool match failed", err)
		return "", err
	}
	d.Observer.EmitToolSelection(tool.Name, args)

	outcome := d.exec(ctx, Step{Tool: tool, Arguments: args})
	d.Observer.EmitToolExecution(tool.Name, outcome.Content, outcome.Success)
	if !outcome.Success {
		d.Observer.EmitError("tool execution failed", outcome.Cause)
		return "", fmt.Errorf("%w: %v", core.ErrToolFailure, outcome.Error())
	}

	text, err := d.Provider.Generate(ctx, fmt.Sprintf(
		"The user asked: %s\n\nThe %s tool returned:\n%s\n\nPresent this result to the user.",
		query, tool.Name, outcome.Content))
	if err != nil {
		d.Observer.EmitError("presentation failed", err)
		return "", fmt.Errorf("%w: %v", core.ErrLLM, err)
	}
	d.Observer.EmitInferenceComplete(text)
	return text, nil
}

func (d *Direct) runMultiTool(ctx context.Context, query string) (string, error) {
	candidates := d.candidateTools(ctx, query, true)
	d.Observer.EmitToolDiscovery(toolNames(candidates))

	text, err := d.runMultiStep(ctx, query, candidates)
	if err != nil {
		d.Observer.EmitError("multi-step plan failed", err)
		return "", err
	}
	d.Observer.EmitInferenceComplete(text)
	return text, nil
}

func toolNames(tools []core.Tool) []string {
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	return names
}
