package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalidSchema is returned when the caller's schema cannot be compiled
var ErrInvalidSchema = errors.New("invalid json schema")

const resourceName = "schema.json"

// Schema is a compiled caller schema. Raw is forwarded to the agent verbatim.
type Schema struct {
	Raw      string
	compiled *jsonschema.Schema
}

// Compile checks that raw is a usable JSON Schema document
func Compile(raw string) (*Schema, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty schema", ErrInvalidSchema)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resourceName, strings.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	compiled, err := compiler.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	return &Schema{Raw: raw, compiled: compiled}, nil
}

// Check reports whether data is JSON matching the schema. The analysis result
// is returned to the caller either way; this only feeds logs and metrics.
func (s *Schema) Check(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}
	if err := s.compiled.Validate(v); err != nil {
		return fmt.Errorf("result does not match schema: %w", err)
	}
	return nil
}
