package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// GenerateSchema generates the JSON Schema for the wizard configuration.
// Extension sections are validated by their owners and are left out.
func GenerateSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		ExpandedStruct:             true,
		RequiredFromJSONSchemaTags: true,
		FieldNameTag:               "yaml",
	}

	// Mirror of Config without the inline Extensions map.
	type BaseConfig struct {
		Version string        `yaml:"version,omitempty" jsonschema:"description=Configuration version"`
		Install InstallConfig `yaml:"install" jsonschema:"description=Install settings"`
		Query   QueryConfig   `yaml:"query" jsonschema:"description=Inspection settings"`
		Watch   WatchConfig   `yaml:"watch" jsonschema:"description=Drop-folder inspection settings"`
	}

	schema := r.Reflect(&BaseConfig{})
	schema.Title = "Wizard Configuration"
	schema.Description = "Schema for wizard.yml / wizard.toml."

	return json.MarshalIndent(schema, "", "  ")
}
