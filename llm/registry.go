package llm

import (
	"fmt"

	"github.com/conductorhq/conductor/registry"
)

// Registry holds named Provider instances, mirroring the teacher's
// LLMRegistry but generalized to the plain Provider contract instead of a
// vendor-specific chat interface.
type Registry struct {
	*registry.BaseRegistry[Provider]
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[Provider]()}
}

// New constructs a Provider by vendor kind ("openai", "anthropic"), the
// runtime's `llm.provider` knob (spec §6.3).
func New(kind string, cfg Config) (Provider, error) {
	switch kind {
	case "openai":
		return NewOpenAIProvider(cfg)
	case "anthropic":
		return NewAnthropicProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", kind)
	}
}
