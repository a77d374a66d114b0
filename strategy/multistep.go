package strategy

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/conductorhq/conductor/core"
)

// maxPlanSteps is the hard cap on chain length; additional steps are
// ignored (spec §4.4 Bounds).
const maxPlanSteps = 3

// placeholderPattern matches a "{{RESULT_<N>}}" reference, 1-based.
var placeholderPattern = regexp.MustCompile(`\{\{RESULT_(\d+)\}\}`)

// Step is one entry of a multi-tool execution plan, already resolved to a
// concrete Tool (discovery's plan only carries tool names).
type Step struct {
	Tool      core.Tool
	Arguments map[string]interface{}
}

// ToolExecutor invokes one resolved step and returns its result.
type ToolExecutor func(ctx context.Context, step Step) core.ToolExecutionResult

// stepResult is one executed step's outcome, kept for consolidation.
type stepResult struct {
	declaredIndex int // 1-based position in the LLM's declared plan
	tool          string
	message       string
}

// RunPlan executes an ordered tool plan so downstream steps can consume
// upstream results, per spec §4.4. Steps beyond maxPlanSteps are dropped.
// Steps run in dependency-level order, so a step that references a later
// declared step runs after it; a plan whose references still can't all point
// to an earlier-executing step (a self reference or a cycle) is rejected
// before any tool runs.
func RunPlan(ctx context.Context, steps []Step, exec ToolExecutor, consolidate func(context.Context, string) (string, error)) (string, error) {
	if len(steps) == 0 {
		return "", fmt.Errorf("%w: empty plan", core.ErrValidation)
	}
	if len(steps) > maxPlanSteps {
		steps = steps[:maxPlanSteps]
	}

	order, err := dependencyOrder(steps)
	if err != nil {
		return "", err
	}

	results := make(map[int]string, len(steps)) // declaredIndex -> content
	summaries := make([]stepResult, 0, len(steps))

	for _, declaredIndex := range order {
		step := steps[declaredIndex-1]
		resolved := resolvePlaceholders(step.Arguments, results)

		outcome := exec(ctx, Step{Tool: step.Tool, Arguments: resolved})
		if !outcome.Success {
			return "", fmt.Errorf("step %d (%s): %w", declaredIndex, step.Tool.Name, outcome.Cause)
		}

		results[declaredIndex] = outcome.Content
		summaries = append(summaries, stepResult{declaredIndex: declaredIndex, tool: step.Tool.Name, message: outcome.Message})
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].declaredIndex < summaries[j].declaredIndex })
	var lines strings.Builder
	for _, s := range summaries {
		msg := s.message
		if msg == "" {
			msg = results[s.declaredIndex]
		}
		fmt.Fprintf(&lines, "Step %d (%s): %s\n", s.declaredIndex, s.tool, msg)
	}

	return consolidate(ctx, lines.String())
}

// dependencyOrder returns the steps' declared indices in execution order,
// stably sorted by dependency level (spec §4.4 Dependency ordering), and
// verifies every placeholder reference resolves to a step that executes
// strictly earlier.
func dependencyOrder(steps []Step) ([]int, error) {
	type leveled struct {
		declaredIndex int
		level         int
	}
	refs := make([][]int, len(steps)) // declaredIndex-1 -> referenced declared indices
	entries := make([]leveled, len(steps))

	for i, step := range steps {
		declaredIndex := i + 1
		maxN := 0
		for _, ns := range placeholderRefs(step.Arguments) {
			if ns > maxN {
				maxN = ns
			}
			refs[i] = append(refs[i], ns)
		}
		entries[i] = leveled{declaredIndex: declaredIndex, level: maxN}
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].level < entries[j].level })

	execPos := make(map[int]int, len(steps)) // declaredIndex -> position in execution order
	order := make([]int, len(entries))
	for pos, e := range entries {
		execPos[e.declaredIndex] = pos
		order[pos] = e.declaredIndex
	}

	for i := range steps {
		declaredIndex := i + 1
		for _, ref := range refs[i] {
			if execPos[ref] >= execPos[declaredIndex] {
				return nil, fmt.Errorf("%w: step %d references {{RESULT_%d}}, which does not execute before it",
					core.ErrDependencyCycle, declaredIndex, ref)
			}
		}
	}
	return order, nil
}

func placeholderRefs(args map[string]interface{}) []int {
	var refs []int
	for _, v := range args {
		s, ok := v.(string)
		if !ok {
			continue
		}
		for _, m := range placeholderPattern.FindAllStringSubmatch(s, -1) {
			n, err := strconv.Atoi(m[1])
			if err == nil {
				refs = append(refs, n)
			}
		}
	}
	return refs
}

// resolvePlaceholders substitutes every "{{RESULT_<j>}}" in string argument
// values with the literal content of step j's prior successful execution.
func resolvePlaceholders(args map[string]interface{}, results map[int]string) map[string]interface{} {
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		s, ok := v.(string)
		if !ok {
			out[k] = v
			continue
		}
		out[k] = placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
			sub := placeholderPattern.FindStringSubmatch(match)
			n, err := strconv.Atoi(sub[1])
			if err != nil {
				return match
			}
			if content, ok := results[n]; ok {
				return content
			}
			return match
		})
	}
	return out
}
