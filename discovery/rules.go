package discovery

import (
	"regexp"
	"strings"

	"github.com/conductorhq/conductor/core"
)

// ApplyRules is a pure prompt-rewriter: (prompt, query, serverName,
// paramNames, rules) -> prompt'. It never touches global state and never
// fails — an
// unparseable parameter_replace pattern is skipped rather than erroring
// the whole query (spec §4.2.2/§9).
func ApplyRules(prompt, query, serverName string, paramNames []string, rules map[string]core.Rule) string {
	rule, ok := rules[serverName]
	if !ok {
		return prompt
	}

	lowerQuery := strings.ToLower(query)
	for _, item := range rule.Items {
		if !itemMatches(item, paramNames, lowerQuery) {
			continue
		}
		if item.Rules.ContextAdd != "" {
			prompt = prompt + "\n" + item.Rules.ContextAdd
		}
		for _, replace := range item.Rules.ParameterReplace {
			re, err := regexp.Compile(replace.Pattern)
			if err != nil {
				continue
			}
			prompt = re.ReplaceAllString(prompt, replace.Replacement)
		}
	}
	return prompt
}

func itemMatches(item core.RuleItem, paramNames []string, lowerQuery string) bool {
	if intersects(item.Triggers, paramNames) {
		return true
	}
	for _, kw := range item.ContentKeywords {
		if strings.Contains(lowerQuery, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func intersects(triggers, paramNames []string) bool {
	if len(triggers) == 0 || len(paramNames) == 0 {
		return false
	}
	set := make(map[string]bool, len(paramNames))
	for _, p := range paramNames {
		set[p] = true
	}
	for _, t := range triggers {
		if set[t] {
			return true
		}
	}
	return false
}
