package llm

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// schemaReflector produces schemas with no top-level $ref wrapper and no
// $schema/$id noise, since these are embedded inline in a prompt, not
// served as a standalone document.
var schemaReflector = &jsonschema.Reflector{
	DoNotReference:            true,
	ExpandedStruct:            true,
	AllowAdditionalProperties: false,
}

// SchemaJSON reflects v's Go type into a JSON Schema document and returns it
// compactly marshaled, for embedding in an LLM prompt that asks for
// structured output matching v's shape. Discovery's tool-matching and
// plan-emission prompts do not call it; they spell out their JSON shape as
// literal text.
func SchemaJSON(v interface{}) (string, error) {
	schema := schemaReflector.Reflect(v)
	schema.Version = ""
	data, err := json.Marshal(schema)
	if err != nil {
		return "", fmt.Errorf("reflecting schema: %w", err)
	}
	return string(data), nil
}
