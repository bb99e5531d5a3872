package definition

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Parse parses a YAML graph definition.
func Parse(data []byte) (*GraphDefinition, error) {
	var def GraphDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return &def, nil
}

// ParseFile reads and parses a YAML graph definition from a file.
func ParseFile(filename string) (*GraphDefinition, error) {
	data, err := os.ReadFile(filename) //nolint:gosec // graph files are chosen by the operator
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	def.Source = filename
	return def, nil
}

// Marshal converts a graph definition to YAML format.
func Marshal(def *GraphDefinition) ([]byte, error) {
	return yaml.Marshal(def)
}
