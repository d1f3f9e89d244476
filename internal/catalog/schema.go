package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/tax-portal/internal/common"
)

var planSchema = map[string]any{
	"type": "object",
	"additionalProperties": map[string]any{
		"type":     "object",
		"required": []any{"name", "price", "features"},
		"properties": map[string]any{
			"name":     map[string]any{"type": "string", "minLength": 1},
			"price":    map[string]any{"type": "number", "minimum": 0},
			"features": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
	},
}

var serviceSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": map[string]any{"type": "number", "minimum": 0},
}

var (
	compiledPlans    = mustCompile("plans.json", planSchema)
	compiledServices = mustCompile("services.json", serviceSchema)
)

func compile(name string, schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile(name)
}

func mustCompile(name string, schemaMap map[string]any) *jsonschema.Schema {
	s, err := compile(name, schemaMap)
	if err != nil {
		panic(fmt.Sprintf("catalog: compile %s: %v", name, err))
	}
	return s
}

// validate checks data against schema; every failure wraps common.ErrMalformedPayload.
func validate(schema *jsonschema.Schema, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: %v", common.ErrMalformedPayload, err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", common.ErrMalformedPayload, err)
	}
	return nil
}
