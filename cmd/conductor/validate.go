package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/conductorhq/conductor/config"
	"github.com/conductorhq/conductor/core"
)

// ValidateCmd loads mcp.json, domains.json, the rule files, and
// runtime.json from the config root and reports config errors before
// attempting to connect anything — the same "load, validate, stop" shape
// as the teacher's own validate command, scoped to this runtime's config
// surface (servers/domains/rules/runtime, no agent concept here).
type ValidateCmd struct {
	Format      string `short:"f" help:"Output format: compact, verbose, json." default:"compact" enum:"compact,verbose,json"`
	PrintConfig bool   `short:"p" name:"print-config" help:"Print the loaded configuration (defaults applied, env vars resolved)."`
}

type expandedConfig struct {
	Servers map[string]any `json:"servers"`
	Domains map[string]any `json:"domains"`
	Rules   map[string]any `json:"rules"`
	Runtime any            `json:"runtime"`
}

func (c *ValidateCmd) Run(cli *CLI) error {
	_ = config.LoadEnvFiles()
	loader := config.NewLoader(cli.ConfigRoot)

	servers, err := loader.LoadServers()
	if err != nil {
		return c.printLoadError(cli.ConfigRoot, err)
	}
	domains, err := loader.LoadDomains()
	if err != nil {
		return c.printLoadError(cli.ConfigRoot, err)
	}
	rules, err := loader.LoadRules()
	if err != nil {
		return c.printLoadError(cli.ConfigRoot, err)
	}
	rt, err := loader.LoadRuntime(filepath.Join(cli.ConfigRoot, "config", "runtime.json"))
	if err != nil {
		return c.printLoadError(cli.ConfigRoot, err)
	}

	// LoadServers/LoadRuntime already call SetDefaults()+Validate() on every
	// entry they decode; what's left here is cross-file consistency the
	// loader has no business knowing about: a rule keyed by a server name
	// that doesn't exist, or a parameter_replace pattern that won't compile.
	if warnings := crossCheck(servers, rules); len(warnings) > 0 {
		return c.printWarnings(cli.ConfigRoot, warnings)
	}

	if c.PrintConfig {
		return c.printExpanded(cli.ConfigRoot, servers, domains, rules, rt)
	}

	c.printSuccess(cli.ConfigRoot)
	return nil
}

// crossCheck finds config problems that only show up once servers and
// rules are both loaded: a rule with no matching server, and any
// parameter_replace pattern that fails to compile as a regexp (ApplyRules
// would otherwise silently skip it at query time, per spec §4.2.2/§9).
func crossCheck(servers map[string]core.ToolServerConfig, rules map[string]core.Rule) []string {
	var warnings []string
	for serverName, rule := range rules {
		if _, ok := servers[serverName]; !ok {
			warnings = append(warnings, fmt.Sprintf("rule %q: no configured server with that name", serverName))
		}
		for _, item := range rule.Items {
			for paramName, replace := range item.Rules.ParameterReplace {
				if _, err := regexp.Compile(replace.Pattern); err != nil {
					warnings = append(warnings, fmt.Sprintf(
						"rule %q item %q: parameter_replace %q pattern %q does not compile: %v",
						serverName, item.Name, paramName, replace.Pattern, err))
				}
			}
		}
	}
	sort.Strings(warnings)
	return warnings
}

func (c *ValidateCmd) printLoadError(root string, err error) error {
	switch c.Format {
	case "json":
		c.printJSON(false, root, []string{err.Error()})
	case "verbose":
		fmt.Fprintf(os.Stderr, "Configuration Load Error\n========================\n\n")
		fmt.Fprintf(os.Stderr, "Root:  %s\n", root)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	default:
		fmt.Fprintf(os.Stderr, "%s: load error: %v\n", root, err)
	}
	return fmt.Errorf("config load failed")
}

func (c *ValidateCmd) printWarnings(root string, warnings []string) error {
	switch c.Format {
	case "json":
		c.printJSON(false, root, warnings)
	case "verbose":
		fmt.Fprintf(os.Stderr, "Configuration Validation Failed\n================================\n\n")
		fmt.Fprintf(os.Stderr, "Root: %s\n\n", root)
		for _, w := range warnings {
			fmt.Fprintf(os.Stderr, "  - %s\n", w)
		}
	default:
		for _, w := range warnings {
			fmt.Fprintf(os.Stderr, "%s: %s\n", root, w)
		}
	}
	return fmt.Errorf("config validation failed")
}

func (c *ValidateCmd) printSuccess(root string) {
	switch c.Format {
	case "json":
		c.printJSON(true, root, nil)
	case "verbose":
		fmt.Printf("Configuration Validation Successful\n====================================\n\n")
		fmt.Printf("Root:   %s\n", root)
		fmt.Printf("Status: OK Valid\n")
	default:
		fmt.Printf("%s: valid\n", root)
	}
}

func (c *ValidateCmd) printJSON(valid bool, root string, warnings []string) {
	out := struct {
		Valid    bool     `json:"valid"`
		Root     string   `json:"root"`
		Warnings []string `json:"warnings,omitempty"`
	}{Valid: valid, Root: root, Warnings: warnings}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}

func (c *ValidateCmd) printExpanded(root string, servers map[string]core.ToolServerConfig, domains config.DomainsConfig, rules map[string]core.Rule, rt config.Runtime) error {
	serverDocs := make(map[string]any, len(servers))
	for name, s := range servers {
		serverDocs[name] = s
	}
	domainDocs := make(map[string]any, len(domains))
	for name, d := range domains {
		domainDocs[name] = d
	}
	ruleDocs := make(map[string]any, len(rules))
	for name, r := range rules {
		ruleDocs[name] = r
	}

	doc := expandedConfig{Servers: serverDocs, Domains: domainDocs, Rules: ruleDocs, Runtime: rt}

	fmt.Printf("# Expanded configuration from: %s\n", root)
	fmt.Printf("# (defaults applied, env vars resolved)\n\n")

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
