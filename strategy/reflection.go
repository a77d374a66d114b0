package strategy

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/conductorhq/conductor/conversation"
	"github.com/conductorhq/conductor/core"
	"github.com/conductorhq/conductor/llm"
)

// confidenceStopThreshold is the critique confidence above which the loop
// stops refining even if the critique flagged NEEDS_IMPROVEMENT.
const confidenceStopThreshold = 0.8

// Reflection answers once, then critiques and refines its own answer until
// the critique is satisfied or the iteration bound is reached, finishing
// with a four-axis quality self-assessment (spec §4.3.3).
//
// MaxIterations is taken literally, the same way ReAct's is: an explicit 0
// means the critique/refine loop never runs and ProcessQuery returns the
// initial response untouched. The documented default of 3 is applied by
// the caller for an absent value (cmd/conductor's resolveMaxIterations),
// not substituted here.
type Reflection struct {
	Deps
	MaxIterations int
}

// NewReflection builds a Reflection strategy over deps with the given
// critique/refine iteration cap.
func NewReflection(deps Deps, maxIterations int) *Reflection {
	return &Reflection{Deps: deps, MaxIterations: maxIterations}
}

func (r *Reflection) limit() int {
	if r.MaxIterations < 0 {
		return 0
	}
	return r.MaxIterations
}

type critique struct {
	Issues           string
	Suggestions      string
	Confidence       float64
	NeedsImprovement bool
}

// QualityAssessment is the four-axis self-score produced once a Reflection
// run terminates (spec §4.3.3).
type QualityAssessment struct {
	Completeness float64
	Accuracy     float64
	Relevance    float64
	Clarity      float64
}

// Overall is the mean of the four axis scores.
func (q QualityAssessment) Overall() float64 {
	return (q.Completeness + q.Accuracy + q.Relevance + q.Clarity) / 4
}

func (r *Reflection) ProcessQuery(ctx context.Context, query string, history []conversation.Message) (string, error) {
	query = withHistory(history, query)
	analysis := analyzeQuery(ctx, r.Provider, query)
	r.Observer.EmitInferenceStart(query, "reflection")
	r.Observer.EmitThought(analysis.Reasoning)

	response, err := r.initialResponse(ctx, query, analysis)
	if err != nil {
		return "", err
	}

	limit := r.limit()
	for i := 0; i < limit; i++ {
		c, err := r.critique(ctx, query, response)
		if err != nil {
			break
		}
		r.Observer.EmitThought(fmt.Sprintf("critique: issues=%q confidence=%.2f needsImprovement=%v", c.Issues, c.Confidence, c.NeedsImprovement))

		if !c.NeedsImprovement || c.Confidence > confidenceStopThreshold {
			break
		}

		refined, err := r.refine(ctx, query, response, c)
		if err != nil {
			break
		}
		response = refined
	}

	assessment, err := r.assessQuality(ctx, query, response)
	if err == nil {
		r.Observer.EmitThought(fmt.Sprintf("quality overall=%.2f", assessment.Overall()))
	}

	r.Observer.EmitInferenceComplete(response)
	return response, nil
}

// initialResponse mirrors Direct's three-way branch (same-as-Direct per
// spec §4.3.3): a MULTI_TOOL query runs through the multi-step engine and
// its consolidated text becomes the first draft to critique. Unlike Direct,
// a failed single-tool match falls back to a direct answer.
func (r *Reflection) initialResponse(ctx context.Context, query string, analysis core.QueryAnalysis) (string, error) {
	switch analysis.Class {
	case core.SingleTool:
		candidates := r.candidateTools(ctx, query, false)
		tool, args, err := r.Matcher.MatchSingle(ctx, query, candidates)
		if err != nil {
			return r.directAnswer(ctx, query)
		}
		r.Observer.EmitToolSelection(tool.Name, args)
		outcome := r.exec(ctx, Step{Tool: tool, Arguments: args})
		r.Observer.EmitToolExecution(tool.Name, outcome.Content, outcome.Success)
		if !outcome.Success {
			return "", fmt.Errorf("%w: %v", core.ErrToolFailure, outcome.Error())
		}
		return r.Provider.Generate(ctx, fmt.Sprintf(
			"The user asked: %s\n\nThe %s tool returned:\n%s\n\nPresent this result to the user.",
			query, tool.Name, outcome.Content))
	case core.MultiTool:
		candidates := r.candidateTools(ctx, query, true)
		return r.runMultiStep(ctx, query, candidates)
	default:
		return r.directAnswer(ctx, query)
	}
}

func (r *Reflection) directAnswer(ctx context.Context, query string) (string, error) {
	if r.Provider == nil {
		return "", fmt.Errorf("%w: no llm provider configured", core.ErrLLM)
	}
	return r.Provider.Generate(ctx, query)
}

const critiquePrompt = `Critique the response below against the original query. Respond as plain text lines, one tag per line:
ISSUES: <comma separated issues, or "none">
SUGGESTIONS: <comma separated suggestions, or "none">
CONFIDENCE: <0.0-1.0>
NEEDS_IMPROVEMENT: <true|false>

Query: %s

Response: %s`

func (r *Reflection) critique(ctx context.Context, query, response string) (critique, error) {
	text, err := r.Provider.Generate(ctx, fmt.Sprintf(critiquePrompt, query, response))
	if err != nil {
		return critique{}, fmt.Errorf("%w: %v", core.ErrLLM, err)
	}
	return parseCritique(text), nil
}

// parseCritique reads a tag-per-line critique block (spec §4.3.3), tolerant
// of missing tags and defaulting to a conservative "needs nothing further"
// reading when a tag is absent or malformed.
func parseCritique(text string) critique {
	c := critique{Confidence: 1.0}
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(strings.ToUpper(line), "ISSUES:"):
			c.Issues = strings.TrimSpace(line[len("ISSUES:"):])
		case strings.HasPrefix(strings.ToUpper(line), "SUGGESTIONS:"):
			c.Suggestions = strings.TrimSpace(line[len("SUGGESTIONS:"):])
		case strings.HasPrefix(strings.ToUpper(line), "CONFIDENCE:"):
			v := strings.TrimSpace(line[len("CONFIDENCE:"):])
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				c.Confidence = f
			}
		case strings.HasPrefix(strings.ToUpper(line), "NEEDS_IMPROVEMENT:"):
			v := strings.ToLower(strings.TrimSpace(line[len("NEEDS_IMPROVEMENT:"):]))
			c.NeedsImprovement = v == "true"
		}
	}
	return c
}

func (r *Reflection) refine(ctx context.Context, query, response string, c critique) (string, error) {
	prompt := fmt.Sprintf(
		"Refine the response below to address the issues raised.\n\nQuery: %s\n\nResponse: %s\n\nIssues: %s\n\nSuggestions: %s\n\nRespond with only the refined response.",
		query, response, c.Issues, c.Suggestions)
	refined, err := r.Provider.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrLLM, err)
	}
	return refined, nil
}

const qualityPrompt = `Score the response against the query on four axes, each 0.0-1.0. Respond with JSON: {"completeness": <n>, "accuracy": <n>, "relevance": <n>, "clarity": <n>}

Query: %s

Response: %s`

func (r *Reflection) assessQuality(ctx context.Context, query, response string) (QualityAssessment, error) {
	text, err := r.Provider.Generate(ctx, fmt.Sprintf(qualityPrompt, query, response))
	if err != nil {
		return QualityAssessment{}, fmt.Errorf("%w: %v", core.ErrLLM, err)
	}
	var raw struct {
		Completeness float64 `json:"completeness"`
		Accuracy     float64 `json:"accuracy"`
		Relevance    float64 `json:"relevance"`
		Clarity      float64 `json:"clarity"`
	}
	if err := llm.ExtractJSON(text, &raw); err != nil {
		return QualityAssessment{}, err
	}
	return QualityAssessment{
		Completeness: raw.Completeness,
		Accuracy:     raw.Accuracy,
		Relevance:    raw.Relevance,
		Clarity:      raw.Clarity,
	}, nil
}
