// Package discovery implements the query -> (Tool, arguments) pipeline:
// domain classification, tool/argument matching, prompt-rewrite rules, and
// automatic domain naming for ungrouped tool servers. Domain scoring and
// domain naming degrade to a deterministic fallback when their LLM call
// fails; tool matching has no fallback and returns an error instead.
package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/conductorhq/conductor/core"
	"github.com/conductorhq/conductor/llm"
)

const (
	// matchThreshold is the score a domain must exceed to be considered a
	// candidate at all (spec §4.2.1).
	matchThreshold = 0.3
	// multiStepThreshold is the minimum score for a domain to be included
	// in a multi-step plan's candidate set.
	multiStepThreshold = 0.6
	// keywordWeight discounts semantic-keyword matches relative to
	// pattern matches in the substring-overlap fallback.
	keywordWeight = 0.8
)

// DomainFilter scores each registered domain against a free-text query.
type DomainFilter struct {
	Provider llm.Provider
}

// Scores maps domain name to a clamped [0,1] relevance score.
type Scores map[string]float64

// Filter asks the LLM to score every domain against query, falling back to
// substring-overlap scoring if the call fails or its response can't be
// parsed.
func (f *DomainFilter) Filter(ctx context.Context, query string, domains map[string]core.Domain, multiStep bool) Scores {
	if f.Provider != nil {
		if scores, err := f.filterViaLLM(ctx, query, domains, multiStep); err == nil {
			return scores
		}
	}
	return fallbackScores(query, domains)
}

func (f *DomainFilter) filterViaLLM(ctx context.Context, query string, domains map[string]core.Domain, multiStep bool) (Scores, error) {
	prompt := buildDomainPrompt(query, domains, multiStep)
	text, err := f.Provider.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: domain filter: %v", core.ErrLLM, err)
	}
	var raw map[string]float64
	if err := llm.ExtractJSON(text, &raw); err != nil {
		return nil, err
	}
	return clamp(raw), nil
}

func buildDomainPrompt(query string, domains map[string]core.Domain, multiStep bool) string {
	names := make([]string, 0, len(domains))
	for name := range domains {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	if multiStep {
		b.WriteString("Identify ALL domains relevant to the query below. ")
	} else {
		b.WriteString("Identify the single best-matching domain for the query below. ")
	}
	b.WriteString("Return a JSON object mapping each domain name to a relevance score between 0.0 and 1.0.\n\n")
	fmt.Fprintf(&b, "Query: %s\n\nDomains:\n", query)
	for _, name := range names {
		d := domains[name]
		fmt.Fprintf(&b, "- %s — %s\n", name, d.Description)
	}
	return b.String()
}

func clamp(raw map[string]float64) Scores {
	out := make(Scores, len(raw))
	for name, score := range raw {
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		out[name] = score
	}
	return out
}

// fallbackScores scores each domain by normalized substring overlap between
// its patterns/semantic keywords and the lowercased query (spec §4.2.1
// Fallback). Keywords are weighted by keywordWeight relative to patterns.
func fallbackScores(query string, domains map[string]core.Domain) Scores {
	q := strings.ToLower(query)
	out := make(Scores, len(domains))
	for name, d := range domains {
		best := 0.0
		for _, pattern := range d.Patterns {
			best = maxFloat(best, overlapScore(q, pattern, 1.0))
		}
		for _, kw := range d.SemanticKeywords {
			best = maxFloat(best, overlapScore(q, kw, keywordWeight))
		}
		out[name] = best
	}
	return out
}

func overlapScore(query, term string, weight float64) float64 {
	term = strings.ToLower(term)
	if term == "" || !strings.Contains(query, term) {
		return 0
	}
	if len(query) == 0 {
		return 0
	}
	return weight * float64(len(term)) / float64(len(query))
}

func maxFloat(a, b float64) float64 {
	if b > a {
		return b
	}
	return a
}

// Best returns the argmax over scores strictly above matchThreshold.
func (s Scores) Best() (string, bool) {
	best := ""
	bestScore := matchThreshold
	found := false
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		score := s[name]
		if score > bestScore || (!found && score > matchThreshold) {
			best, bestScore, found = name, score, true
		}
	}
	return best, found
}

// Matching returns every domain scoring at or above multiStepThreshold, for
// multi-step plans that may span several domains.
func (s Scores) Matching() []string {
	names := make([]string, 0, len(s))
	for name, score := range s {
		if score >= multiStepThreshold {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
