package structurer

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// cardSchema describes the business card fields. Unknown keys are allowed.
const cardSchema = `{
  "type": "object",
  "properties": {
    "Name":             {"type": ["string", "null"]},
    "Company":          {"type": ["string", "null"]},
    "Primary Email":    {"type": ["string", "null"]},
    "Secondary Email":  {"type": ["string", "null"]},
    "Primary Number":   {"type": ["string", "number", "null"]},
    "Secondary Number": {"type": ["string", "number", "null"]}
  },
  "additionalProperties": true
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func cardSchemaCompiled() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("card.json", bytes.NewReader([]byte(cardSchema))); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile("card.json")
	})
	return schema, schemaErr
}

// CheckSchema validates a decoded record against the card schema. The
// result is advisory: callers log it and keep the record either way.
func CheckSchema(fields map[string]any) error {
	s, err := cardSchemaCompiled()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	if err := s.Validate(fields); err != nil {
		return fmt.Errorf("record does not match card schema: %w", err)
	}
	return nil
}
