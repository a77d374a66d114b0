package config

import (
	"fmt"
	"time"

	"github.com/conductorhq/conductor/core"
)

// MCPConfig is the parsed shape of mcp/mcp.json.
type MCPConfig struct {
	Servers map[string]core.ToolServerConfig `json:"mcpServers" mapstructure:"mcpServers"`
}

// DomainsConfig is the parsed shape of mcp/domains.json.
type DomainsConfig map[string]core.Domain

// RuleFile is the parsed shape of config/rules/<server>.json.
type RuleFile = core.Rule

// Runtime holds the recognized runtime knobs from spec §6.3. Durations are
// stored as the raw millisecond counts the JSON config uses; RefreshInterval()/
// ConnectionTimeout()/CallTimeout() convert to time.Duration for callers.
type Runtime struct {
	LLMProvider           string `json:"llm.provider" mapstructure:"llm.provider"`
	RefreshIntervalMS     int64  `json:"mcp.refresh.interval" mapstructure:"mcp.refresh.interval"`
	ConnectionTimeoutMS   int64  `json:"mcp.connection.timeout" mapstructure:"mcp.connection.timeout"`
	CallTimeoutMS         int64  `json:"mcp.call.timeout" mapstructure:"mcp.call.timeout"`
	RulesEnabled          bool   `json:"mcp.rules.enabled" mapstructure:"mcp.rules.enabled"`
	StrategyMaxIterations int    `json:"maxIterations" mapstructure:"maxIterations"`
	Debug                 bool   `json:"debug" mapstructure:"debug"`
}

// SetDefaults fills zero-valued fields with the documented defaults.
func (r *Runtime) SetDefaults() {
	if r.RefreshIntervalMS == 0 {
		r.RefreshIntervalMS = (5 * time.Minute).Milliseconds()
	}
	if r.ConnectionTimeoutMS == 0 {
		r.ConnectionTimeoutMS = (15 * time.Second).Milliseconds()
	}
	if r.CallTimeoutMS == 0 {
		r.CallTimeoutMS = (15 * time.Second).Milliseconds()
	}
	r.RulesEnabled = true
}

// Validate reports a config error for an out-of-range runtime knob.
func (r *Runtime) Validate() error {
	if r.RefreshIntervalMS < 1000 {
		return fmt.Errorf("%w: mcp.refresh.interval must be >= 1000ms, got %dms", core.ErrConfig, r.RefreshIntervalMS)
	}
	return nil
}

// RefreshInterval returns the reconciliation period as a time.Duration.
func (r *Runtime) RefreshInterval() time.Duration {
	return time.Duration(r.RefreshIntervalMS) * time.Millisecond
}

// ConnectionTimeout returns the handshake timeout as a time.Duration.
func (r *Runtime) ConnectionTimeout() time.Duration {
	return time.Duration(r.ConnectionTimeoutMS) * time.Millisecond
}

// CallTimeout returns the per-RPC timeout as a time.Duration.
func (r *Runtime) CallTimeout() time.Duration {
	return time.Duration(r.CallTimeoutMS) * time.Millisecond
}

// DefaultMCPServers is materialized when mcp.json is missing (spec §6.2):
// the three canonical servers time/weather/filesystem.
func DefaultMCPServers() map[string]core.ToolServerConfig {
	return map[string]core.ToolServerConfig{
		"time": {
			Description: "Current time and timezone conversion tools",
			Command:     "mcp-server-time",
			Enabled:     true,
			Priority:    50,
			Domain:      "time",
		},
		"weather": {
			Description: "Weather forecast and conditions tools",
			Command:     "mcp-server-weather",
			Enabled:     true,
			Priority:    50,
			Domain:      "weather",
		},
		"filesystem": {
			Description: "Local filesystem read/write tools",
			Command:     "mcp-server-filesystem",
			Enabled:     true,
			Priority:    50,
			Domain:      "filesystem",
		},
	}
}

// DefaultDomains is materialized when domains.json is missing (spec §6.2).
func DefaultDomains() DomainsConfig {
	return DomainsConfig{
		"time": {
			Name:             "time",
			Description:      "Questions about the current time, date, or timezone conversion",
			Patterns:         []string{"time", "clock", "timezone", "date"},
			SemanticKeywords: []string{"when", "hour", "schedule"},
		},
		"weather": {
			Name:             "weather",
			Description:      "Questions about weather conditions or forecasts",
			Patterns:         []string{"weather", "forecast", "temperature", "rain"},
			SemanticKeywords: []string{"sunny", "cloudy", "climate"},
		},
		"filesystem": {
			Name:             "filesystem",
			Description:      "Reading, writing, or listing local files",
			Patterns:         []string{"file", "directory", "folder", "save", "read"},
			SemanticKeywords: []string{"path", "write", "disk"},
		},
	}
}
