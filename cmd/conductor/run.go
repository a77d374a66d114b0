package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/conductorhq/conductor/config"
	"github.com/conductorhq/conductor/conversation"
	"github.com/conductorhq/conductor/core"
	"github.com/conductorhq/conductor/discovery"
	"github.com/conductorhq/conductor/llm"
	"github.com/conductorhq/conductor/logger"
	"github.com/conductorhq/conductor/metrics"
	"github.com/conductorhq/conductor/observer"
	"github.com/conductorhq/conductor/strategy"
	"github.com/conductorhq/conductor/toolserver"
)

// RunCmd connects the tool-server fleet and answers queries: either a
// single --query and exit, or an interactive stdin loop.
type RunCmd struct {
	Provider      string `help:"LLM provider (openai, anthropic)." default:"openai" enum:"openai,anthropic"`
	Model         string `help:"Model name." required:""`
	APIKey        string `name:"api-key" help:"LLM API key (defaults to <PROVIDER>_API_KEY from the environment)."`
	Host          string `help:"Custom API base URL."`
	Temperature   float64 `help:"Sampling temperature." default:"0.7"`
	MaxTokens     int    `name:"max-tokens" help:"Max response tokens." default:"1000"`
	Strategy      string `help:"Inference strategy." default:"direct" enum:"direct,react,reflection"`
	MaxIterations *int   `name:"max-iterations" help:"ReAct/Reflection iteration bound (0 = return the initial answer; unset resolves to the strategy's documented default)."`
	Query         string `short:"q" help:"Run a single query and exit instead of reading stdin."`
}

// apiKeyEnvVar maps a provider kind to the environment variable its API
// key conventionally lives in, mirroring the teacher's zero-config flag
// resolution (CLI flag > env var > none).
func apiKeyEnvVar(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	default:
		return "OPENAI_API_KEY"
	}
}

func (c *RunCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	log := logger.New(logger.ParseLevel(cli.LogLevel))

	loader := config.NewLoader(cli.ConfigRoot)
	servers, err := loader.LoadServers()
	if err != nil {
		return err
	}
	domains, err := loader.LoadDomains()
	if err != nil {
		return err
	}
	rules, err := loader.LoadRules()
	if err != nil {
		return err
	}
	rt, err := loader.LoadRuntime(filepath.Join(cli.ConfigRoot, "config", "runtime.json"))
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	supMetrics := metrics.NewSupervisor(reg)
	stratMetrics := metrics.NewStrategy(reg)

	sup := toolserver.New(log, supMetrics, rt.ConnectionTimeout(), rt.CallTimeout())
	defer sup.Close()
	sup.ConnectAll(ctx, servers)
	go sup.Run(ctx, rt.RefreshInterval())

	apiKey := c.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(apiKeyEnvVar(c.Provider))
	}
	llmCfg := llm.Config{
		APIKey:      apiKey,
		Model:       c.Model,
		Host:        c.Host,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
	}
	providerKind := c.Provider
	if providerKind == "" {
		providerKind = rt.LLMProvider
	}
	provider, err := llm.New(providerKind, llmCfg)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrConfig, err)
	}

	cache := discovery.NewSelectionCache()
	domainFilter := &discovery.DomainFilter{Provider: provider}
	matcher := &discovery.ToolMatcher{Provider: provider, Rules: rules, RulesEnabled: rt.RulesEnabled, Cache: cache}
	autoDiscovery := &discovery.AutoDiscovery{Provider: provider}

	toolsFn := newAutoDomainTools(ctx, sup.Tools, domains, autoDiscovery, log)

	obs := &observer.Observer{
		Thought: func(text string) { log.Debug("thought", "text", text) },
		ToolDiscovery: func(names []string) { log.Debug("tool discovery", "candidates", names) },
		ToolSelection: func(name string, args map[string]interface{}) { log.Debug("tool selected", "tool", name, "args", args) },
		ToolExecution: func(name, result string, ok bool) { log.Debug("tool executed", "tool", name, "ok", ok) },
		Error:         func(message string, cause error) { log.Warn(message, "error", cause) },
	}

	deps := strategy.Deps{
		Provider:     provider,
		DomainFilter: domainFilter,
		Matcher:      matcher,
		Domains:      domains,
		Tools:        toolsFn,
		Exec: func(ctx context.Context, step strategy.Step) core.ToolExecutionResult {
			return sup.CallTool(ctx, step.Tool.ServerID, step.Tool.Name, step.Arguments)
		},
		Observer: obs,
		Metrics:  stratMetrics,
	}

	maxIterations := resolveMaxIterations(c.MaxIterations, strategy.Kind(c.Strategy), rt.StrategyMaxIterations)
	strat, err := strategy.New(strategy.Kind(c.Strategy), deps, maxIterations)
	if err != nil {
		return err
	}

	history := conversation.NewHistory(0)

	if c.Query != "" {
		return answerOne(ctx, strat, history, c.Query)
	}
	return answerLoop(ctx, strat, history)
}

// resolveMaxIterations picks the iteration bound a ReAct/Reflection
// strategy receives. Priority: an explicit --max-iterations flag (even 0,
// taken literally) wins; otherwise an explicit non-zero runtime.json
// "maxIterations" wins; otherwise the strategy kind's documented default.
// A zero value from runtime.json is indistinguishable from "absent" at the
// JSON layer (mapstructure has no way to tell), so — like config.Runtime's
// own SetDefaults — that ambiguity is resolved in favor of treating zero
// from the file as "unset" rather than "explicitly zero"; a caller who
// means zero must say so on the command line.
func resolveMaxIterations(flag *int, kind strategy.Kind, fromFile int) int {
	if flag != nil {
		return *flag
	}
	if fromFile != 0 {
		return fromFile
	}
	switch kind {
	case strategy.KindReAct:
		return strategy.DefaultReactIterations
	case strategy.KindReflection:
		return strategy.DefaultReflectionIterations
	default:
		return 0
	}
}

// newAutoDomainTools wraps a tools-lister (normally sup.Tools) with the
// domain auto-discovery pass of spec §4.2.3: tools arriving with no
// configured domain are grouped by their parent server and named once, the
// assignment cached so repeated calls don't re-prompt the LLM for the same
// server's tools. Takes the lister as a plain func rather than a
// *toolserver.Supervisor so it can be exercised with a fake in tests.
func newAutoDomainTools(ctx context.Context, listTools func() []core.Tool, domains config.DomainsConfig, auto *discovery.AutoDiscovery, log *slog.Logger) func() []core.Tool {
	var mu sync.Mutex
	assigned := make(map[string]string) // tool key -> domain name

	return func() []core.Tool {
		tools := listTools()

		mu.Lock()
		defer mu.Unlock()

		byServer := make(map[string][]core.Tool)
		for _, t := range tools {
			if t.Domain == "" {
				if _, ok := assigned[t.Key()]; !ok {
					byServer[t.ServerID] = append(byServer[t.ServerID], t)
				}
			}
		}
		for serverID, ungrouped := range byServer {
			existing := make(map[string]bool, len(domains))
			for name := range domains {
				existing[name] = true
			}
			name := auto.NameDomain(ctx, ungrouped, existing)
			domains[name] = core.Domain{Name: name, Description: "auto-discovered domain for " + serverID}
			for _, t := range ungrouped {
				assigned[t.Key()] = name
			}
			log.Info("auto-discovered domain", "server", serverID, "domain", name)
		}

		for i := range tools {
			if tools[i].Domain == "" {
				if name, ok := assigned[tools[i].Key()]; ok {
					tools[i].Domain = name
				}
			}
		}
		return tools
	}
}

// answerOne runs a single query to completion, printing the answer (or the
// user-visible failure message of spec §7) to stdout.
func answerOne(ctx context.Context, strat strategy.Strategy, history *conversation.History, query string) error {
	prior := history.Recent()
	history.Append(conversation.RoleUser, query)

	answer, err := strat.ProcessQuery(ctx, query, prior)
	if err != nil {
		fmt.Printf("Error processing query: %v\n", err)
		return nil
	}
	history.Append(conversation.RoleAssistant, answer)
	fmt.Println(answer)
	return nil
}

// answerLoop reads one query per line from stdin until EOF or the context
// is cancelled, answering each against the same running history.
func answerLoop(ctx context.Context, strat strategy.Strategy, history *conversation.History) error {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("Type a query and press Enter. Ctrl+D to exit.")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := answerOne(ctx, strat, history, query); err != nil {
			return err
		}
	}
}
