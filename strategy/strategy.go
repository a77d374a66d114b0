// Package strategy implements the inference strategies that turn a
// classified query into an answer: Direct, ReAct, and Reflection, plus the
// multi-step execution engine (§4.4) all three share through the
// multi-tool branch of query classification.
package strategy

import (
	"context"
	"fmt"
	"strings"

	"github.com/conductorhq/conductor/conversation"
	"github.com/conductorhq/conductor/core"
	"github.com/conductorhq/conductor/discovery"
	"github.com/conductorhq/conductor/llm"
	"github.com/conductorhq/conductor/metrics"
	"github.com/conductorhq/conductor/observer"
)

// Strategy is the common contract all three inference strategies satisfy.
type Strategy interface {
	ProcessQuery(ctx context.Context, query string, history []conversation.Message) (string, error)
}

// Deps bundles everything a strategy needs beyond its own tuning knobs:
// the LLM, the discovery pipeline, a way to execute a resolved tool call,
// and an optional observer.
type Deps struct {
	Provider     llm.Provider
	DomainFilter *discovery.DomainFilter
	Matcher      *discovery.ToolMatcher
	Domains      map[string]core.Domain
	Tools        func() []core.Tool // getAllAvailableTools, injected so strategies never import toolserver directly
	Exec         ToolExecutor
	Observer     *observer.Observer
	Metrics      *metrics.Strategy
}

// exec runs one tool step through d.Exec, recording the invocation against
// d.Metrics before dispatch (nil-safe, per-tool counter used by the ReAct
// 3-use cap's companion signal in production dashboards).
func (d Deps) exec(ctx context.Context, step Step) core.ToolExecutionResult {
	d.Metrics.ObserveToolUse(step.Tool.Name)
	return d.Exec(ctx, step)
}

// candidateTools narrows the full tool catalog to the domains the filter
// judged relevant, falling back to the full catalog when nothing scored
// above threshold (an LLM-down domain filter still must not starve
// downstream matching).
func (d Deps) candidateTools(ctx context.Context, query string, multiStep bool) []core.Tool {
	all := d.Tools()
	if d.DomainFilter == nil || len(d.Domains) == 0 {
		return all
	}

	scores := d.DomainFilter.Filter(ctx, query, d.Domains, multiStep)
	var wanted map[string]bool
	if multiStep {
		names := scores.Matching()
		if len(names) == 0 {
			return all
		}
		wanted = make(map[string]bool, len(names))
		for _, n := range names {
			wanted[n] = true
		}
	} else {
		best, ok := scores.Best()
		if !ok {
			return all
		}
		wanted = map[string]bool{best: true}
	}

	var filtered []core.Tool
	for _, t := range all {
		if wanted[t.Domain] {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) == 0 {
		return all
	}
	return filtered
}

// withHistory folds a bounded recent-message transcript into query, since
// the core has no context object of its own (spec §4.3: "context is a
// bounded recent-message list produced externally"). An empty history
// returns query unchanged so a caller with no conversation state pays
// nothing for this.
func withHistory(history []conversation.Message, query string) string {
	if len(history) == 0 {
		return query
	}
	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	fmt.Fprintf(&b, "\nCurrent query: %s", query)
	return b.String()
}

// toolByName finds a candidate by name, used to resolve the tool name an
// LLM plan response carries back into a concrete core.Tool.
func toolByName(candidates []core.Tool, name string) (core.Tool, bool) {
	for _, t := range candidates {
		if t.Name == name {
			return t, true
		}
	}
	return core.Tool{}, false
}

// runMultiStep resolves a discovery plan into strategy Steps and executes
// it through the shared multi-step engine, consolidating with one final
// LLM call (spec §4.4 Final consolidation).
func (d Deps) runMultiStep(ctx context.Context, query string, candidates []core.Tool) (string, error) {
	plan, err := d.Matcher.MatchMulti(ctx, query, candidates)
	if err != nil {
		return "", err
	}

	steps := make([]Step, 0, len(plan))
	for _, p := range plan {
		tool, ok := toolByName(candidates, p.Tool)
		if !ok {
			return "", fmt.Errorf("%w: plan references unknown tool %q", core.ErrValidation, p.Tool)
		}
		steps = append(steps, Step{Tool: tool, Arguments: p.Arguments})
	}

	return RunPlan(ctx, steps, d.exec, func(ctx context.Context, summary string) (string, error) {
		return d.Provider.Generate(ctx, "Consolidate these results into a single answer for the user:\n\n"+summary)
	})
}
