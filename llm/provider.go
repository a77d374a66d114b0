// Package llm defines the runtime's sole LLM contract — generate(prompt) ->
// {content, ok, error} — and a couple of concrete HTTP-backed adapters. The
// core orchestration packages (discovery, strategy) depend only on
// Provider; nothing about a specific vendor leaks past this package.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/conductorhq/conductor/core"
)

// Provider is the only capability discovery/strategy require from an LLM
// back-end: take a fully-built prompt, return its text completion.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config is the shared shape for a concrete adapter's credentials and
// generation knobs.
type Config struct {
	APIKey      string
	Model       string
	Host        string
	Temperature float64
	MaxTokens   int
	TimeoutSec  int
}

// SetDefaults fills zero-valued fields with the teacher's own provider
// defaults.
func (c *Config) SetDefaults() {
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 1000
	}
	if c.TimeoutSec == 0 {
		c.TimeoutSec = 60
	}
}

// Validate reports a config error if the adapter is unusable.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: llm: apiKey is required", core.ErrConfig)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: llm: model is required", core.ErrConfig)
	}
	return nil
}

var codeFence = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// ExtractJSON strips Markdown code fences (if present) and unmarshals the
// remaining text into dst. Discovery prompts ask the LLM for bare JSON but
// chat models routinely wrap it in ```json ... ``` anyway.
func ExtractJSON(text string, dst interface{}) error {
	body := text
	if m := codeFence.FindStringSubmatch(text); m != nil {
		body = m[1]
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return fmt.Errorf("%w: empty response from llm", core.ErrLLM)
	}
	if err := json.Unmarshal([]byte(body), dst); err != nil {
		return fmt.Errorf("%w: parsing llm json response: %v", core.ErrLLM, err)
	}
	return nil
}
