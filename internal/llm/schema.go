package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildReceiptJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. It is used locally to validate extraction output before we
// trust any of its numbers.
func BuildReceiptJSONSchema() map[string]any {
	itemProps := map[string]any{
		"name":     map[string]any{"type": "string"},
		"price":    numericProp(),
		"quantity": numericProp(),
		"category": map[string]any{"type": []any{"string", "null"}},
	}
	props := map[string]any{
		"vendor": map[string]any{"type": "string", "minLength": 1},
		"date":   map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
		"items": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties":           itemProps,
				"required":             []string{"name"},
			},
		},
		"subtotal": numericProp(),
		"tax":      numericProp(),
		"total":    numericProp(),
		"currency": map[string]any{"type": "string", "minLength": 3, "maxLength": 3},
		"ocr_text": map[string]any{"type": "string"},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             []string{"vendor", "date", "total"},
	}
}

// numericProp tolerates the LLM emitting money either as a JSON number or a
// decimal string; explicit nulls are allowed and dropped during sanitize.
func numericProp() map[string]any {
	return map[string]any{
		"anyOf": []any{
			map[string]any{"type": "number"},
			map[string]any{"type": "string", "pattern": `^-?\d+(\.\d+)?$`},
			map[string]any{"type": "null"},
		},
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
