package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads and validates a schema definition from a YAML file.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML schema definition.
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	if s.Version <= 0 {
		s.Version = 1
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
