package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/conductorhq/conductor/core"
)

type fakeLLM struct {
	response string
	err      error
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string) (string, error) {
	return f.response, f.err
}

func sampleDomains() map[string]core.Domain {
	return map[string]core.Domain{
		"time": {
			Name: "time", Description: "time stuff",
			Patterns: []string{"time", "clock"}, SemanticKeywords: []string{"schedule"},
		},
		"weather": {
			Name: "weather", Description: "weather stuff",
			Patterns: []string{"weather", "forecast"}, SemanticKeywords: []string{"sunny"},
		},
	}
}

func TestDomainFilterFallbackScoresByOverlap(t *testing.T) {
	f := &DomainFilter{}
	scores := f.Filter(context.Background(), "what's the weather forecast today", sampleDomains(), false)
	if scores["weather"] <= scores["time"] {
		t.Errorf("expected weather to outscore time, got %+v", scores)
	}
}

func TestDomainFilterLLMPath(t *testing.T) {
	f := &DomainFilter{Provider: &fakeLLM{response: "```json\n{\"time\": 0.9, \"weather\": 0.1}\n```"}}
	scores := f.Filter(context.Background(), "what time is it", sampleDomains(), false)
	best, ok := scores.Best()
	if !ok || best != "time" {
		t.Errorf("best = %q, ok=%v, scores=%+v", best, ok, scores)
	}
}

func TestDomainFilterLLMFailureFallsBack(t *testing.T) {
	f := &DomainFilter{Provider: &fakeLLM{err: errors.New("down")}}
	scores := f.Filter(context.Background(), "clock time now", sampleDomains(), false)
	if scores["time"] == 0 {
		t.Error("expected fallback scoring to still find a match")
	}
}

func TestScoresMatchingMultiStepThreshold(t *testing.T) {
	s := Scores{"a": 0.7, "b": 0.5, "c": 0.61}
	matching := s.Matching()
	if len(matching) != 2 {
		t.Errorf("matching = %v, want 2 entries >= 0.6", matching)
	}
}

func echoTool(serverID string) core.Tool {
	return core.Tool{
		Name: "echo", ServerID: serverID,
		Schema: core.ToolSchema{Properties: map[string]core.ToolParameter{"msg": {Type: "string"}}},
	}
}

func TestToolMatcherMatchSingle(t *testing.T) {
	m := &ToolMatcher{Provider: &fakeLLM{response: `{"tool": "echo", "arguments": {"msg": "hi"}}`}}
	tool, args, err := m.MatchSingle(context.Background(), "say hi", []core.Tool{echoTool("s1")})
	if err != nil {
		t.Fatalf("MatchSingle: %v", err)
	}
	if tool.Name != "echo" || args["msg"] != "hi" {
		t.Errorf("tool=%+v args=%+v", tool, args)
	}
}

func TestToolMatcherMatchSingleUnknownToolIsError(t *testing.T) {
	m := &ToolMatcher{Provider: &fakeLLM{response: `{"tool": "ghost", "arguments": {}}`}}
	_, _, err := m.MatchSingle(context.Background(), "say hi", []core.Tool{echoTool("s1")})
	if err == nil {
		t.Fatal("expected error for unknown tool selection")
	}
}

func TestToolMatcherMatchMulti(t *testing.T) {
	resp := `{"steps": [{"tool": "echo", "arguments": {"msg": "a"}}, {"tool": "echo", "arguments": {"msg": "{{RESULT_1}}"}}]}`
	m := &ToolMatcher{Provider: &fakeLLM{response: resp}}
	steps, err := m.MatchMulti(context.Background(), "chain two echoes", []core.Tool{echoTool("s1")})
	if err != nil {
		t.Fatalf("MatchMulti: %v", err)
	}
	if len(steps) != 2 || steps[1].Arguments["msg"] != "{{RESULT_1}}" {
		t.Errorf("steps = %+v", steps)
	}
}

func TestApplyRulesContextAddOnContentKeyword(t *testing.T) {
	rules := map[string]core.Rule{
		"fs": {Items: []core.RuleItem{
			{ContentKeywords: []string{"secret"}, Rules: core.RuleAction{ContextAdd: "Redact sensitive paths."}},
		}},
	}
	out := ApplyRules("base prompt", "read the secret file", "fs", nil, rules)
	if out == "base prompt" {
		t.Error("expected context_add to be appended")
	}
}

func TestApplyRulesParameterReplaceOnTriggerIntersect(t *testing.T) {
	rules := map[string]core.Rule{
		"fs": {Items: []core.RuleItem{
			{Triggers: []string{"path"}, Rules: core.RuleAction{
				ParameterReplace: map[string]core.ParamReplace{
					"path": {Pattern: `\.\./`, Replacement: ""},
				},
			}},
		}},
	}
	out := ApplyRules("write to ../../etc/passwd", "write file", "fs", []string{"path"}, rules)
	if out != "write to etc/passwd" {
		t.Errorf("out = %q", out)
	}
}

func TestApplyRulesNoMatchUnchanged(t *testing.T) {
	rules := map[string]core.Rule{"fs": {Items: []core.RuleItem{
		{ContentKeywords: []string{"nonexistent"}, Rules: core.RuleAction{ContextAdd: "x"}},
	}}}
	out := ApplyRules("base", "query", "fs", nil, rules)
	if out != "base" {
		t.Errorf("out = %q, want unchanged", out)
	}
}

func TestAutoDiscoveryFallbackDisambiguates(t *testing.T) {
	a := &AutoDiscovery{}
	existing := map[string]bool{"file": true, "file_1": true}
	name := a.NameDomain(context.Background(), []core.Tool{{Name: "file_read"}}, existing)
	if name != "file_2" {
		t.Errorf("name = %q, want file_2", name)
	}
}

func TestAutoDiscoveryLLMNamesDomain(t *testing.T) {
	a := &AutoDiscovery{Provider: &fakeLLM{response: "Filesystem!"}}
	name := a.NameDomain(context.Background(), []core.Tool{{Name: "read_file"}}, map[string]bool{})
	if name != "filesystem" {
		t.Errorf("name = %q", name)
	}
}

func TestSelectionCacheRoundTrip(t *testing.T) {
	c := NewSelectionCache()
	if _, ok := c.Get("q", "opts"); ok {
		t.Fatal("expected miss on empty cache")
	}
	c.Put("q", "opts", 42)
	v, ok := c.Get("q", "opts")
	if !ok || v.(int) != 42 {
		t.Errorf("v=%v ok=%v", v, ok)
	}
	c.Invalidate()
	if _, ok := c.Get("q", "opts"); ok {
		t.Fatal("expected miss after invalidate")
	}
}
