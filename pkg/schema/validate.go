package schema

import (
	"encoding/json"
	"fmt"

	// Packages
	jsonschema "github.com/google/jsonschema-go/jsonschema"
)

// ValidateAgainstSchema checks value against a JSON-schema document
// (typically the requestedSchema of an elicitation/create request) before
// the coordinator writes an accepted elicitation reply back to the
// server. A nil schemaDoc is permissive.
func ValidateAgainstSchema(schemaDoc any, value any) error {
	if schemaDoc == nil {
		return nil
	}

	raw, err := json.Marshal(schemaDoc)
	if err != nil {
		return fmt.Errorf("schema: marshal requestedSchema: %w", err)
	}

	var s jsonschema.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("schema: parse requestedSchema: %w", err)
	}

	resolved, err := s.Resolve(nil)
	if err != nil {
		return fmt.Errorf("schema: resolve requestedSchema: %w", err)
	}
	if err := resolved.Validate(value); err != nil {
		return fmt.Errorf("schema: elicitation response does not match requestedSchema: %w", err)
	}
	return nil
}
