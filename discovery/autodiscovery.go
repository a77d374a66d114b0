package discovery

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/conductorhq/conductor/core"
	"github.com/conductorhq/conductor/llm"
)

// domainNamePattern matches a single sanitized lowercase domain name: the
// LLM is asked for exactly this shape, but chat models wrap or punctuate
// their answers anyway.
var domainNamePattern = regexp.MustCompile(`[a-z][a-z0-9_]*`)

// AutoDiscovery names a domain for tools that arrived without one, either
// by asking the LLM to summarize the tool set in one word, or — on
// conflict, empty response, or LLM failure — by falling back to the first
// token of the alphabetically first tool's name, disambiguated with "_1",
// "_2", ...
type AutoDiscovery struct {
	Provider llm.Provider
}

// NameDomain picks a domain name for tools, given the set of domain names
// already in use (to disambiguate a fallback collision).
func (a *AutoDiscovery) NameDomain(ctx context.Context, tools []core.Tool, existing map[string]bool) string {
	if a.Provider != nil {
		if name, ok := a.nameViaLLM(ctx, tools, existing); ok {
			return name
		}
	}
	return a.fallbackName(tools, existing)
}

func (a *AutoDiscovery) nameViaLLM(ctx context.Context, tools []core.Tool, existing map[string]bool) (string, bool) {
	prompt := buildNamePrompt(tools)
	text, err := a.Provider.Generate(ctx, prompt)
	if err != nil {
		return "", false
	}
	name := sanitizeName(text)
	if name == "" {
		return "", false
	}
	if existing[name] {
		return "", false
	}
	return name, true
}

func buildNamePrompt(tools []core.Tool) string {
	var b strings.Builder
	b.WriteString("Summarize the purpose of the following tools in a single lowercase word (letters, digits, underscores only):\n\n")
	sorted := make([]core.Tool, len(tools))
	copy(sorted, tools)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	for _, t := range sorted {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
	}
	return b.String()
}

func sanitizeName(text string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	return domainNamePattern.FindString(lower)
}

// fallbackName uses first_token_of_tool_name, disambiguating with "_1",
// "_2", ... against existing names.
func (a *AutoDiscovery) fallbackName(tools []core.Tool, existing map[string]bool) string {
	if len(tools) == 0 {
		return disambiguate("tools", existing)
	}
	sorted := make([]core.Tool, len(tools))
	copy(sorted, tools)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	base := firstToken(sorted[0].Name)
	if base == "" {
		base = "tools"
	}
	return disambiguate(base, existing)
}

func firstToken(name string) string {
	name = strings.ToLower(name)
	fields := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == ' '
	})
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func disambiguate(base string, existing map[string]bool) string {
	if !existing[base] {
		return base
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d", base, i)
		if !existing[candidate] {
			return candidate
		}
	}
}
