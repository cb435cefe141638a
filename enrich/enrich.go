// Package enrich normalizes raw extracted metadata into schema-conformant
// records. Enrichment is best-effort and never fails: every call returns a
// complete record with exactly the schema's field set so indexing stays
// possible, plus an audit of what had to be repaired.
package enrich

import (
	"fmt"
	"strings"

	"github.com/anycompany/docsearch/schema"
)

// Flag marks how a field value came to be.
type Flag string

const (
	// FlagInvalid marks a value that was present but not coercible; the
	// schema default was used instead.
	FlagInvalid Flag = "invalid"
	// FlagDerivedDefault marks a field absent from the raw extraction and
	// filled with the schema default.
	FlagDerivedDefault Flag = "derived_default"
)

// Audit records per-field repair flags. It is diagnostic metadata parallel to
// the enriched record, never part of it.
type Audit struct {
	Flags map[string]Flag
}

func (a Audit) Flagged(field string) (Flag, bool) {
	f, ok := a.Flags[field]
	return f, ok
}

func (a *Audit) set(field string, f Flag) {
	if a.Flags == nil {
		a.Flags = make(map[string]Flag)
	}
	a.Flags[field] = f
}

// Enrich coerces raw extracted values into the schema's canonical
// representations. Direct fields are processed first in schema order, then
// derived fields, so derived computations always see coerced values. Fields
// absent from raw (or null) get the schema default and a derived_default flag;
// present-but-uncoercible values get the default and an invalid flag.
func Enrich(raw map[string]any, s *schema.Schema) (map[string]any, Audit) {
	out := make(map[string]any, len(s.Fields))
	var audit Audit

	for _, field := range s.Fields {
		if field.Derived() {
			continue
		}

		value, present := raw[field.Name]
		if !present || value == nil {
			out[field.Name] = defaultValue(field)
			audit.set(field.Name, FlagDerivedDefault)
			continue
		}

		coerced, err := CoerceValue(value, field)
		if err != nil {
			out[field.Name] = defaultValue(field)
			audit.set(field.Name, FlagInvalid)
			continue
		}
		out[field.Name] = coerced
	}

	for _, field := range s.Fields {
		if !field.Derived() {
			continue
		}
		out[field.Name] = nonEmpty(out[field.DerivedFrom])
	}

	return out, audit
}

// ValidateDefaults checks at load time that every schema default is coercible
// to its field's type. Nil defaults are always allowed.
func ValidateDefaults(s *schema.Schema) error {
	for _, field := range s.Fields {
		if field.Default == nil || field.Derived() {
			continue
		}
		if _, err := CoerceValue(field.Default, field); err != nil {
			return &schema.MismatchError{Field: field.Name, Reason: fmt.Sprintf("default not coercible: %v", err)}
		}
	}
	return nil
}

func defaultValue(field schema.Field) any {
	if field.Default == nil {
		return nil
	}
	coerced, err := CoerceValue(field.Default, field)
	if err != nil {
		return nil
	}
	return coerced
}

// nonEmpty implements the derived-field rule: a derived boolean is true when
// its source field carries a usable value.
func nonEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(x) != ""
	case bool:
		return x
	case float64:
		return true
	case []string:
		return len(x) > 0
	case []any:
		return len(x) > 0
	default:
		return true
	}
}
