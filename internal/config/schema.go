package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/config-v1.json
var configSchemaJSON string

// Validator wraps a compiled jsonschema.Schema, grounded on the
// teacher's devices.Validator: embed the schema, compile once,
// validate raw JSON before the typed unmarshal.
type Validator struct {
	schema *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config-v1.json", strings.NewReader(configSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile("config-v1.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate checks raw against the config schema. raw must be JSON;
// viper-loaded YAML is re-marshaled to JSON by the caller first since
// jsonschema only understands the json.Unmarshal value shape.
func (v *Validator) Validate(raw []byte) error {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
