package schema_test

import (
	"testing"

	// Packages
	schema "github.com/mutablelogic/go-mcp/pkg/schema"
	assert "github.com/stretchr/testify/assert"
)

func Test_ValidateAgainstSchema_nilSchemaIsPermissive(t *testing.T) {
	assert := assert.New(t)
	assert.NoError(schema.ValidateAgainstSchema(nil, map[string]any{"anything": true}))
}

func Test_ValidateAgainstSchema_accepts_matching_value(t *testing.T) {
	assert := assert.New(t)

	doc := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
		},
		"required": []any{"name"},
	}
	assert.NoError(schema.ValidateAgainstSchema(doc, map[string]any{"name": "Ada"}))
}

func Test_ValidateAgainstSchema_rejects_mismatched_value(t *testing.T) {
	assert := assert.New(t)

	doc := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
		},
		"required": []any{"name"},
	}
	assert.Error(schema.ValidateAgainstSchema(doc, map[string]any{}))
}
