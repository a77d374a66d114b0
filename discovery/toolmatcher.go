package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/conductorhq/conductor/core"
	"github.com/conductorhq/conductor/llm"
)

// Step is one entry of a multi-tool plan. Arguments may contain
// "{{RESULT_<N>}}" placeholders referencing an earlier step's output
// (spec §4.2.2/§4.4).
type Step struct {
	Tool      string                 `json:"tool"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolMatcher selects a tool (or an ordered plan of tools) and its
// arguments for a query, from a domain-filtered candidate list.
//
// Cache, if set, memoizes the (query, candidate-names) -> selection mapping
// per spec §4.2.2's Caching note; a nil Cache simply disables memoization.
type ToolMatcher struct {
	Provider     llm.Provider
	Rules        map[string]core.Rule
	RulesEnabled bool
	Cache        *SelectionCache
}

type singleMatchCacheKey struct {
	Query      string
	Candidates []string
}

type multiMatchCacheKey struct {
	Query      string
	Candidates []string
	Multi      bool
}

func candidateNames(candidates []core.Tool) []string {
	names := make([]string, len(candidates))
	for i, t := range candidates {
		names[i] = t.Key()
	}
	sort.Strings(names)
	return names
}

// applyCandidateRules runs the rule hook (spec §4.2.2) over prompt once per
// candidate tool, using that tool's own parameter names as the trigger set
// for its parent server's rules.
func (m *ToolMatcher) applyCandidateRules(prompt, query string, candidates []core.Tool) string {
	if !m.RulesEnabled || len(m.Rules) == 0 {
		return prompt
	}
	for _, t := range candidates {
		prompt = ApplyRules(prompt, query, t.ServerID, paramNames(t), m.Rules)
	}
	return prompt
}

func paramNames(t core.Tool) []string {
	names := make([]string, 0, len(t.Schema.Properties))
	for name := range t.Schema.Properties {
		names = append(names, name)
	}
	return names
}

type singleMatchResponse struct {
	Tool      string                 `json:"tool"`
	Arguments map[string]interface{} `json:"arguments"`
}

type multiMatchResponse struct {
	Steps []Step `json:"steps"`
}

// MatchSingle asks the LLM to pick the single most relevant tool from
// candidates and produce its arguments.
func (m *ToolMatcher) MatchSingle(ctx context.Context, query string, candidates []core.Tool) (core.Tool, map[string]interface{}, error) {
	if len(candidates) == 0 {
		return core.Tool{}, nil, fmt.Errorf("%w: no candidate tools", core.ErrValidation)
	}
	if m.Provider == nil {
		return core.Tool{}, nil, fmt.Errorf("%w: no llm provider configured", core.ErrLLM)
	}

	key := singleMatchCacheKey{Query: query, Candidates: candidateNames(candidates)}
	if m.Cache != nil {
		if cached, ok := m.Cache.Get(query, key); ok {
			resp := cached.(singleMatchResponse)
			if t, ok := toolByName(candidates, resp.Tool); ok {
				return t, resp.Arguments, nil
			}
		}
	}

	prompt := m.applyCandidateRules(buildSingleMatchPrompt(query, candidates), query, candidates)
	text, err := m.Provider.Generate(ctx, prompt)
	if err != nil {
		return core.Tool{}, nil, fmt.Errorf("%w: tool match: %v", core.ErrLLM, err)
	}
	var resp singleMatchResponse
	if err := llm.ExtractJSON(text, &resp); err != nil {
		return core.Tool{}, nil, err
	}
	t, ok := toolByName(candidates, resp.Tool)
	if !ok {
		return core.Tool{}, nil, fmt.Errorf("%w: llm selected unknown tool %q", core.ErrLLM, resp.Tool)
	}
	if m.Cache != nil {
		m.Cache.Put(query, key, resp)
	}
	return t, resp.Arguments, nil
}

func toolByName(candidates []core.Tool, name string) (core.Tool, bool) {
	for _, t := range candidates {
		if t.Name == name {
			return t, true
		}
	}
	return core.Tool{}, false
}

// MatchMulti asks the LLM to produce an ordered plan of tool invocations.
func (m *ToolMatcher) MatchMulti(ctx context.Context, query string, candidates []core.Tool) ([]Step, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidate tools", core.ErrValidation)
	}
	if m.Provider == nil {
		return nil, fmt.Errorf("%w: no llm provider configured", core.ErrLLM)
	}

	key := multiMatchCacheKey{Query: query, Candidates: candidateNames(candidates), Multi: true}
	known := make(map[string]bool, len(candidates))
	for _, t := range candidates {
		known[t.Name] = true
	}

	if m.Cache != nil {
		if cached, ok := m.Cache.Get(query, key); ok {
			if steps, ok := cached.([]Step); ok && stepsKnown(steps, known) {
				return steps, nil
			}
		}
	}

	prompt := m.applyCandidateRules(buildMultiMatchPrompt(query, candidates), query, candidates)
	text, err := m.Provider.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: plan match: %v", core.ErrLLM, err)
	}
	var resp multiMatchResponse
	if err := llm.ExtractJSON(text, &resp); err != nil {
		return nil, err
	}
	if !stepsKnown(resp.Steps, known) {
		return nil, fmt.Errorf("%w: plan references unknown tool", core.ErrLLM)
	}
	if m.Cache != nil {
		m.Cache.Put(query, key, resp.Steps)
	}
	return resp.Steps, nil
}

func stepsKnown(steps []Step, known map[string]bool) bool {
	for _, step := range steps {
		if !known[step.Tool] {
			return false
		}
	}
	return true
}

func buildSingleMatchPrompt(query string, candidates []core.Tool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pick the single most relevant tool for the query and produce its arguments.\n\nQuery: %s\n\nTools:\n", query)
	writeToolList(&b, candidates)
	b.WriteString(`

Respond with JSON: {"tool": "<name>", "arguments": {...}}`)
	return b.String()
}

func buildMultiMatchPrompt(query string, candidates []core.Tool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Produce an ordered list of tool invocations that together answer the query. "+
		"An argument value may reference an earlier step's result with \"{{RESULT_<N>}}\", 1-based.\n\nQuery: %s\n\nTools:\n", query)
	writeToolList(&b, candidates)
	b.WriteString(`

Respond with JSON: {"steps": [{"tool": "<name>", "arguments": {...}}, ...]}`)
	return b.String()
}

func writeToolList(b *strings.Builder, tools []core.Tool) {
	sorted := make([]core.Tool, len(tools))
	copy(sorted, tools)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	for i, t := range sorted {
		fmt.Fprintf(b, "%d. %s — %s (schema: %s)\n", i+1, t.Name, t.Description, schemaSummary(t))
	}
}

func schemaSummary(t core.Tool) string {
	if len(t.Schema.Properties) == 0 {
		return "none"
	}
	names := make([]string, 0, len(t.Schema.Properties))
	for name := range t.Schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
