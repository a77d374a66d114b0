package strategy

import (
	"context"
	"fmt"
	"strings"

	"github.com/conductorhq/conductor/core"
	"github.com/conductorhq/conductor/llm"
)

const analyzePrompt = `Classify the query below into exactly one of DIRECT_ANSWER, SINGLE_TOOL, or MULTI_TOOL, and give one sentence of reasoning.

DIRECT_ANSWER: the query can be answered from general knowledge, with no external tool.
SINGLE_TOOL: the query needs exactly one tool call.
MULTI_TOOL: the query needs a chain of two or more tool calls.

Query: %s

Respond with JSON: {"class": "<CLASS>", "reasoning": "<one sentence>"}`

type analyzeResponse struct {
	Class     string `json:"class"`
	Reasoning string `json:"reasoning"`
}

// analyzeQuery classifies query into a core.QueryClass via the LLM,
// falling back to DIRECT_ANSWER (never an exception) when the provider is
// unavailable or its response can't be parsed (spec §8 boundary behavior).
func analyzeQuery(ctx context.Context, provider llm.Provider, query string) core.QueryAnalysis {
	if provider == nil {
		return core.QueryAnalysis{Class: core.DirectAnswer, Reasoning: "no llm provider configured"}
	}

	text, err := provider.Generate(ctx, fmt.Sprintf(analyzePrompt, query))
	if err != nil {
		return core.QueryAnalysis{Class: core.DirectAnswer, Reasoning: "llm unavailable: " + err.Error()}
	}

	var resp analyzeResponse
	if err := llm.ExtractJSON(text, &resp); err != nil {
		return core.QueryAnalysis{Class: core.DirectAnswer, Reasoning: "unparseable classification"}
	}

	class := core.QueryClass(strings.ToUpper(strings.TrimSpace(resp.Class)))
	switch class {
	case core.DirectAnswer, core.SingleTool, core.MultiTool:
		return core.QueryAnalysis{Class: class, Reasoning: resp.Reasoning}
	default:
		return core.QueryAnalysis{Class: core.DirectAnswer, Reasoning: "unrecognized classification: " + resp.Class}
	}
}
