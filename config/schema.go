package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// JSONSchema describes the channel mapping: channel name to a pattern or a
// non-empty list of patterns. Names starting with '@' are reserved.
func (Channels) JSONSchema() *jsonschema.Schema {
	pattern := &jsonschema.Schema{
		Type:        "string",
		Pattern:     `\S`,
		Description: "Glob pattern relative to root",
	}
	return &jsonschema.Schema{
		Type:        "object",
		Description: "Named channels mapping to one or more glob patterns",
		PropertyNames: &jsonschema.Schema{
			Type:    "string",
			Pattern: `^[^@]`,
		},
		AdditionalProperties: &jsonschema.Schema{
			OneOf: []*jsonschema.Schema{
				pattern,
				{
					Type:  "array",
					Items: pattern,
				},
			},
		},
	}
}

// GenerateSchema generates the JSON Schema for basin configuration files.
// Extensions are allowed as additional top-level properties.
func GenerateSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		// Unknown top-level keys are extensions such as "logging".
		AllowAdditionalProperties: true,
		// Expand struct references instead of using $ref for the root.
		ExpandedStruct: true,
		// Use YAML field names for property names
		FieldNameTag: "yaml",
	}

	schema := r.Reflect(&Config{})
	schema.Title = "Basin Configuration"
	schema.Description = "Schema for basin.yml and basin.toml."
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return json.MarshalIndent(schema, "", "  ")
}
