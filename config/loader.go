package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"

	"github.com/conductorhq/conductor/core"
)

// Loader reads the two persisted config files and any rule files from a
// config root directory, in the raw-map -> env-expand -> struct-decode
// pipeline the runtime's ambient config stack uses throughout.
type Loader struct {
	Root string
}

// NewLoader creates a Loader rooted at dir (typically the current working
// directory; mcp.json/domains.json live under dir/mcp, rules under
// dir/config/rules).
func NewLoader(dir string) *Loader {
	return &Loader{Root: dir}
}

// LoadServers reads mcp/mcp.json, or returns the three canonical default
// servers if the file does not exist.
func (l *Loader) LoadServers() (map[string]core.ToolServerConfig, error) {
	path := filepath.Join(l.Root, "mcp", "mcp.json")
	raw, err := readJSONMap(path)
	if os.IsNotExist(err) {
		return DefaultMCPServers(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", core.ErrConfig, path, err)
	}

	var doc MCPConfig
	if err := decode(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", core.ErrConfig, path, err)
	}

	for id, srv := range doc.Servers {
		srv.ID = id
		srv.SetDefaults()
		if err := srv.Validate(); err != nil {
			return nil, err
		}
		doc.Servers[id] = srv
	}
	return doc.Servers, nil
}

// LoadDomains reads mcp/domains.json, or returns the three canonical
// default domains if the file does not exist.
func (l *Loader) LoadDomains() (DomainsConfig, error) {
	path := filepath.Join(l.Root, "mcp", "domains.json")
	raw, err := readJSONMap(path)
	if os.IsNotExist(err) {
		return DefaultDomains(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", core.ErrConfig, path, err)
	}

	var doc DomainsConfig
	if err := decode(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", core.ErrConfig, path, err)
	}
	for name, d := range doc {
		d.Name = name
		doc[name] = d
	}
	return doc, nil
}

// LoadRules reads every config/rules/<server>.json file present. A missing
// rules directory is not an error: rules are optional.
func (l *Loader) LoadRules() (map[string]core.Rule, error) {
	dir := filepath.Join(l.Root, "config", "rules")
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return map[string]core.Rule{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", core.ErrConfig, dir, err)
	}

	rules := make(map[string]core.Rule, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		raw, err := readJSONMap(path)
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", core.ErrConfig, path, err)
		}
		var rule core.Rule
		if err := decode(raw, &rule); err != nil {
			return nil, fmt.Errorf("%w: decoding %s: %v", core.ErrConfig, path, err)
		}
		serverName := rule.Name
		if serverName == "" {
			serverName = e.Name()[:len(e.Name())-len(".json")]
		}
		rules[serverName] = rule
	}
	return rules, nil
}

// LoadRuntime reads runtime knobs from a flat JSON object (spec §6.3),
// applying defaults for anything absent. A missing file yields all-default
// knobs, never an error.
func (l *Loader) LoadRuntime(path string) (Runtime, error) {
	var rt Runtime
	rt.SetDefaults()

	raw, err := readJSONMap(path)
	if os.IsNotExist(err) {
		return rt, nil
	}
	if err != nil {
		return rt, fmt.Errorf("%w: reading %s: %v", core.ErrConfig, path, err)
	}
	// Decode on top of the defaults already set above: mapstructure only
	// overwrites fields present in raw, so an absent key keeps its default.
	if err := decode(raw, &rt); err != nil {
		return rt, fmt.Errorf("%w: decoding %s: %v", core.ErrConfig, path, err)
	}
	if err := rt.Validate(); err != nil {
		return rt, err
	}
	return rt, nil
}

// readJSONMap reads and JSON-decodes a file into an untyped document,
// preserving os.ErrNotExist for callers that want to fall back to defaults.
func readJSONMap(path string) (interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return doc, nil
}

// decode env-expands a raw JSON document and mapstructure-decodes it into
// dst, matching keys against each field's json tag (so snake_case keys such
// as context_add/parameter_replace reach their fields). Keys with no
// matching field are ignored.
func decode(raw interface{}, dst interface{}) error {
	expanded := expandEnvVarsInData(raw)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dst,
		WeaklyTypedInput: true,
		TagName:          "json",
	})
	if err != nil {
		return err
	}
	return decoder.Decode(expanded)
}
