package strategy

import (
	"context"
	"fmt"
	"strings"

	"github.com/conductorhq/conductor/conversation"
	"github.com/conductorhq/conductor/core"
	"github.com/conductorhq/conductor/llm"
)

// Default and hard-cap iteration bounds for the ReAct loop (spec §4.3.2).
const (
	defaultReactIterations = 5
	maxReactIterations     = 7
	reactUsefulDataGoal    = 2
	reactToolUseCap        = 3
)

// observationClass is how one tool result is judged useful to the loop.
type observationClass string

const (
	usefulData     observationClass = "USEFUL_DATA"
	genericSuccess observationClass = "GENERIC_SUCCESS"
	observationErr observationClass = "ERROR"
)

// ReAct runs an iterative Thought/Action/Observation loop, using tool
// results to decide whether to keep going or answer (spec §4.3.2).
//
// MaxIterations is taken literally: an explicit 0 means the loop body never
// runs and ProcessQuery returns the initial LLM answer with no tool calls.
// Substituting the documented default of 5 for an *absent* config value is
// the caller's job (cmd/conductor's resolveMaxIterations), not this type's —
// by the time a ReAct reaches here, 0 is a deliberate choice.
type ReAct struct {
	Deps
	MaxIterations int
}

// NewReAct builds a ReAct strategy over deps with the given iteration cap,
// clamped to maxReactIterations.
func NewReAct(deps Deps, maxIterations int) *ReAct {
	return &ReAct{Deps: deps, MaxIterations: maxIterations}
}

func (r *ReAct) limit() int {
	n := r.MaxIterations
	if n < 0 {
		n = 0
	}
	if n > maxReactIterations {
		n = maxReactIterations
	}
	return n
}

type reactTurn struct {
	thought     string
	action      string
	toolName    string
	observation string
	class       observationClass
}

type reactAction struct {
	Action      string                 `json:"action"`
	Thought     string                 `json:"thought"`
	ToolName    string                 `json:"tool_name,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
	FinalAnswer string                 `json:"final_answer,omitempty"`
}

func (r *ReAct) ProcessQuery(ctx context.Context, query string, history []conversation.Message) (string, error) {
	query = withHistory(history, query)
	analysis := analyzeQuery(ctx, r.Provider, query)
	r.Observer.EmitInferenceStart(query, "react")
	r.Observer.EmitThought(analysis.Reasoning)

	if analysis.Class == core.DirectAnswer {
		text, err := r.Provider.Generate(ctx, query)
		if err != nil {
			return "", fmt.Errorf("%w: %v", core.ErrLLM, err)
		}
		r.Observer.EmitInferenceComplete(text)
		return text, nil
	}

	limit := r.limit()
	if limit == 0 {
		text, err := r.Provider.Generate(ctx, query)
		if err != nil {
			return "", fmt.Errorf("%w: %v", core.ErrLLM, err)
		}
		r.Observer.EmitInferenceComplete(text)
		return text, nil
	}

	candidates := r.candidateTools(ctx, query, true)
	r.Observer.EmitToolDiscovery(toolNames(candidates))

	var transcript []reactTurn
	usefulCount := 0
	toolUses := make(map[string]int)

	for i := 0; i < limit; i++ {
		prompt := r.buildReactPrompt(query, candidates, transcript)
		text, err := r.Provider.Generate(ctx, prompt)
		if err != nil {
			return r.synthesize(ctx, query, transcript)
		}

		var act reactAction
		if err := llm.ExtractJSON(text, &act); err != nil {
			return r.synthesize(ctx, query, transcript)
		}
		r.Observer.EmitThought(act.Thought)

		if strings.EqualFold(act.Action, "FINAL_ANSWER") {
			r.Observer.EmitInferenceComplete(act.FinalAnswer)
			return act.FinalAnswer, nil
		}

		tool, ok := toolByName(candidates, act.ToolName)
		if !ok {
			transcript = append(transcript, reactTurn{
				thought: act.Thought, action: "USE_TOOL", toolName: act.ToolName,
				observation: "unknown tool", class: observationErr,
			})
			continue
		}

		r.Observer.EmitToolSelection(tool.Name, act.Parameters)
		outcome := r.exec(ctx, Step{Tool: tool, Arguments: act.Parameters})
		r.Observer.EmitToolExecution(tool.Name, outcome.Content, outcome.Success)

		class := classifyObservation(outcome)
		turn := reactTurn{thought: act.Thought, action: "USE_TOOL", toolName: tool.Name, class: class}
		if outcome.Success {
			turn.observation = outcome.Content
		} else {
			turn.observation = outcome.Error()
		}
		transcript = append(transcript, turn)

		toolUses[tool.Name]++
		if class == usefulData {
			usefulCount++
		}

		if usefulCount >= reactUsefulDataGoal && class == usefulData {
			return r.synthesize(ctx, query, transcript)
		}
		if toolUses[tool.Name] >= reactToolUseCap {
			return r.synthesize(ctx, query, transcript)
		}
	}

	return r.synthesize(ctx, query, transcript)
}

// classifyObservation judges a tool outcome's usefulness to the loop. A
// failure is ERROR; a success with non-empty content distinct from a bare
// acknowledgement is USEFUL_DATA; anything else is GENERIC_SUCCESS.
func classifyObservation(outcome core.ToolExecutionResult) observationClass {
	if !outcome.Success {
		return observationErr
	}
	content := strings.TrimSpace(outcome.Content)
	if content == "" || strings.EqualFold(content, "ok") || strings.EqualFold(content, "done") {
		return genericSuccess
	}
	return usefulData
}

func (r *ReAct) buildReactPrompt(query string, candidates []core.Tool, transcript []reactTurn) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are solving the query below by choosing one action at a time.\n\nQuery: %s\n\nTools:\n", query)
	for _, t := range candidates {
		fmt.Fprintf(&b, "- %s — %s\n", t.Name, t.Description)
	}

	if len(transcript) > 0 {
		b.WriteString("\nTranscript so far:\n")
		for i, t := range transcript {
			fmt.Fprintf(&b, "%d. Thought: %s\n   Action: %s(%s)\n   Observation [%s]: %s\n",
				i+1, t.thought, t.action, t.toolName, t.class, t.observation)
		}
	}

	b.WriteString(`
Respond with JSON: {"action": "USE_TOOL"|"FINAL_ANSWER", "thought": "<reasoning>", "tool_name": "<name>", "parameters": {...}, "final_answer": "<text>"}`)
	return b.String()
}

func (r *ReAct) synthesize(ctx context.Context, query string, transcript []reactTurn) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Original query: %s\n\nWhat was learned:\n", query)
	for i, t := range transcript {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, t.toolName, t.observation)
	}
	b.WriteString("\nGive the user a final answer based on the above.")

	text, err := r.Provider.Generate(ctx, b.String())
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrLLM, err)
	}
	r.Observer.EmitInferenceComplete(text)
	return text, nil
}
