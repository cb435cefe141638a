// Package schema defines the versioned metadata schema shared by the
// extractor, the enrichment transformer, and the query translator. The schema
// is the single source of truth for both the extraction target shape and the
// filterable query vocabulary.
package schema

import (
	"fmt"
	"strings"
)

// FieldType enumerates the value types a metadata field may hold.
type FieldType string

const (
	TypeString     FieldType = "string"
	TypeDate       FieldType = "date"
	TypeBoolean    FieldType = "boolean"
	TypeEnum       FieldType = "enum"
	TypeNumber     FieldType = "number"
	TypeStringList FieldType = "list-of-string"
)

// Operator names the filter operators the query layer may apply to a field.
type Operator string

const (
	OpEquals   Operator = "equals"
	OpRange    Operator = "range"
	OpContains Operator = "contains"
	OpIn       Operator = "in"
)

// Field describes a single metadata field: its type, whether the extractor is
// required to produce it, the default used when it cannot, and free-text hints
// embedded verbatim into the extraction and translation prompts.
type Field struct {
	Name     string    `yaml:"name"`
	Type     FieldType `yaml:"type"`
	Required bool      `yaml:"required"`
	Default  any       `yaml:"default"`
	Enum     []string  `yaml:"enum,omitempty"`
	Hints    string    `yaml:"hints,omitempty"`

	// DerivedFrom marks a boolean field that is not extracted directly but
	// computed from the presence of another field after coercion.
	DerivedFrom string `yaml:"derived_from,omitempty"`
}

// Derived reports whether the field is computed rather than extracted.
func (f Field) Derived() bool { return f.DerivedFrom != "" }

// Operators returns the filter operators valid for the field's type.
func (f Field) Operators() []Operator {
	switch f.Type {
	case TypeString:
		return []Operator{OpEquals, OpContains, OpIn}
	case TypeDate:
		return []Operator{OpEquals, OpRange}
	case TypeBoolean:
		return []Operator{OpEquals}
	case TypeEnum:
		return []Operator{OpEquals, OpIn}
	case TypeNumber:
		return []Operator{OpEquals, OpRange}
	case TypeStringList:
		return []Operator{OpContains}
	default:
		return nil
	}
}

// AllowsOperator reports whether op is valid for the field's type.
func (f Field) AllowsOperator(op Operator) bool {
	for _, allowed := range f.Operators() {
		if allowed == op {
			return true
		}
	}
	return false
}

// Schema is the process-wide, versioned metadata schema. It is treated as
// read-only once loaded; field order is significant and determines the
// deterministic enrichment order.
type Schema struct {
	Version int     `yaml:"version"`
	Fields  []Field `yaml:"fields"`
}

// Field returns the named field and whether it exists.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldNames returns the field names in schema order.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// MismatchError reports a reference to a field or operator the schema does not
// define, or a malformed schema definition detected at load time.
type MismatchError struct {
	Field  string
	Reason string
}

func (e *MismatchError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema mismatch: %s", e.Reason)
	}
	return fmt.Sprintf("schema mismatch on field %q: %s", e.Field, e.Reason)
}

// validName restricts field names to identifier characters. Names are
// interpolated into prompts and JSONB path expressions, so anything beyond
// letters, digits, and underscores is rejected at load time.
func validName(name string) bool {
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return false
		}
	}
	return true
}

var validTypes = map[FieldType]struct{}{
	TypeString:     {},
	TypeDate:       {},
	TypeBoolean:    {},
	TypeEnum:       {},
	TypeNumber:     {},
	TypeStringList: {},
}

// Validate checks structural soundness: unique non-empty names, known types,
// enum fields carrying values, and derived fields referencing a real,
// non-derived boolean source. A malformed schema is rejected hard here so the
// pipeline never runs against a vocabulary it cannot honor.
func (s *Schema) Validate() error {
	if len(s.Fields) == 0 {
		return &MismatchError{Reason: "schema has no fields"}
	}

	seen := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return &MismatchError{Reason: "field with empty name"}
		}
		if name != f.Name {
			return &MismatchError{Field: f.Name, Reason: "name has surrounding whitespace"}
		}
		if !validName(name) {
			return &MismatchError{Field: name, Reason: "name must contain only letters, digits, and underscores"}
		}
		if _, dup := seen[name]; dup {
			return &MismatchError{Field: name, Reason: "duplicate field name"}
		}
		seen[name] = struct{}{}

		if _, ok := validTypes[f.Type]; !ok {
			return &MismatchError{Field: name, Reason: fmt.Sprintf("unknown type %q", f.Type)}
		}
		if f.Type == TypeEnum && len(f.Enum) == 0 {
			return &MismatchError{Field: name, Reason: "enum field without values"}
		}
		if f.Type != TypeEnum && len(f.Enum) > 0 {
			return &MismatchError{Field: name, Reason: "enum values on non-enum field"}
		}
		if f.Derived() && f.Type != TypeBoolean {
			return &MismatchError{Field: name, Reason: "derived fields must be boolean"}
		}
	}

	for _, f := range s.Fields {
		if !f.Derived() {
			continue
		}
		source, ok := s.Field(f.DerivedFrom)
		if !ok {
			return &MismatchError{Field: f.Name, Reason: fmt.Sprintf("derived from unknown field %q", f.DerivedFrom)}
		}
		if source.Derived() {
			return &MismatchError{Field: f.Name, Reason: "derived fields cannot chain"}
		}
	}

	return nil
}
