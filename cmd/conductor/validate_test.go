package main

import (
	"testing"

	"github.com/conductorhq/conductor/core"
)

func TestCrossCheckFlagsDanglingRule(t *testing.T) {
	servers := map[string]core.ToolServerConfig{"weather": {}}
	rules := map[string]core.Rule{
		"filesystem": {Name: "filesystem", Items: []core.RuleItem{{Name: "default"}}},
	}

	warnings := crossCheck(servers, rules)
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one", warnings)
	}
}

func TestCrossCheckFlagsBadParameterReplacePattern(t *testing.T) {
	servers := map[string]core.ToolServerConfig{"weather": {}}
	rules := map[string]core.Rule{
		"weather": {
			Name: "weather",
			Items: []core.RuleItem{{
				Name: "broken",
				Rules: core.RuleAction{
					ParameterReplace: map[string]core.ParamReplace{
						"city": {Pattern: "(unterminated", Replacement: "x"},
					},
				},
			}},
		},
	}

	warnings := crossCheck(servers, rules)
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one", warnings)
	}
}

func TestCrossCheckCleanConfigHasNoWarnings(t *testing.T) {
	servers := map[string]core.ToolServerConfig{"weather": {}}
	rules := map[string]core.Rule{
		"weather": {
			Name: "weather",
			Items: []core.RuleItem{{
				Name:     "default",
				Triggers: []string{"city"},
				Rules: core.RuleAction{
					ParameterReplace: map[string]core.ParamReplace{
						"city": {Pattern: "^\\s+", Replacement: ""},
					},
				},
			}},
		},
	}

	if warnings := crossCheck(servers, rules); len(warnings) != 0 {
		t.Fatalf("warnings = %v, want none", warnings)
	}
}
