package main

import (
	"context"
	"testing"

	"github.com/conductorhq/conductor/config"
	"github.com/conductorhq/conductor/core"
	"github.com/conductorhq/conductor/discovery"
	"github.com/conductorhq/conductor/logger"
	"github.com/conductorhq/conductor/strategy"
)

func TestApiKeyEnvVar(t *testing.T) {
	cases := map[string]string{
		"openai":    "OPENAI_API_KEY",
		"anthropic": "ANTHROPIC_API_KEY",
		"":          "OPENAI_API_KEY",
		"bogus":     "OPENAI_API_KEY",
	}
	for provider, want := range cases {
		if got := apiKeyEnvVar(provider); got != want {
			t.Errorf("apiKeyEnvVar(%q) = %q, want %q", provider, got, want)
		}
	}
}

func TestResolveMaxIterationsFlagWins(t *testing.T) {
	zero := 0
	if got := resolveMaxIterations(&zero, strategy.KindReAct, 5); got != 0 {
		t.Errorf("got %d, want 0 (explicit flag zero must win over a non-zero file value)", got)
	}
	seven := 7
	if got := resolveMaxIterations(&seven, strategy.KindReflection, 3); got != 7 {
		t.Errorf("got %d, want 7", got)
	}
}

func TestResolveMaxIterationsFileWinsOverDefault(t *testing.T) {
	if got := resolveMaxIterations(nil, strategy.KindReAct, 4); got != 4 {
		t.Errorf("got %d, want 4", got)
	}
}

func TestResolveMaxIterationsFallsBackToStrategyDefault(t *testing.T) {
	if got := resolveMaxIterations(nil, strategy.KindReAct, 0); got != strategy.DefaultReactIterations {
		t.Errorf("got %d, want %d", got, strategy.DefaultReactIterations)
	}
	if got := resolveMaxIterations(nil, strategy.KindReflection, 0); got != strategy.DefaultReflectionIterations {
		t.Errorf("got %d, want %d", got, strategy.DefaultReflectionIterations)
	}
	if got := resolveMaxIterations(nil, strategy.KindDirect, 0); got != 0 {
		t.Errorf("got %d, want 0 for a kind with no iteration bound", got)
	}
}

func TestNewAutoDomainToolsPassesThroughAlreadyGroupedTools(t *testing.T) {
	grouped := core.Tool{Name: "get_weather", ServerID: "weather", Domain: "weather"}
	listTools := func() []core.Tool { return []core.Tool{grouped} }

	toolsFn := newAutoDomainTools(context.Background(), listTools, config.DomainsConfig{}, &discovery.AutoDiscovery{}, logger.Nop())
	out := toolsFn()
	if len(out) != 1 || out[0].Domain != "weather" {
		t.Fatalf("out = %+v, want grouped tool untouched", out)
	}
}

func TestNewAutoDomainToolsNamesUngroupedToolsOncePerServer(t *testing.T) {
	ungrouped := core.Tool{Name: "list_files", ServerID: "fs"}
	listTools := func() []core.Tool { return []core.Tool{ungrouped} }
	domains := config.DomainsConfig{}

	// No LLM provider configured: AutoDiscovery falls back to
	// first-token-of-tool-name, so the assignment is deterministic.
	toolsFn := newAutoDomainTools(context.Background(), listTools, domains, &discovery.AutoDiscovery{}, logger.Nop())

	first := toolsFn()
	if len(first) != 1 || first[0].Domain != "list" {
		t.Fatalf("first = %+v, want domain %q", first, "list")
	}
	if _, ok := domains["list"]; !ok {
		t.Fatalf("domains = %+v, want auto-discovered domain recorded", domains)
	}

	second := toolsFn()
	if len(second) != 1 || second[0].Domain != "list" {
		t.Fatalf("second = %+v, want the cached assignment reused", second)
	}
}
