package query

import (
	"fmt"
	"strings"

	"github.com/anycompany/docsearch/enrich"
	"github.com/anycompany/docsearch/schema"
	"github.com/anycompany/docsearch/store"
)

type rawTranslation struct {
	SemanticQuery string      `json:"semantic_query"`
	Join          string      `json:"join"`
	Filters       []rawFilter `json:"filters"`
}

type rawFilter struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value any    `json:"value"`
	Min   any    `json:"min"`
	Max   any    `json:"max"`
}

var operatorAliases = map[string]schema.Operator{
	"equals":   schema.OpEquals,
	"equal":    schema.OpEquals,
	"eq":       schema.OpEquals,
	"=":        schema.OpEquals,
	"==":       schema.OpEquals,
	"range":    schema.OpRange,
	"between":  schema.OpRange,
	"contains": schema.OpContains,
	"in":       schema.OpIn,
	"in-set":   schema.OpIn,
}

// checkClause type-checks one model-proposed filter against the schema and
// returns its canonical form.
func checkClause(raw rawFilter, s *schema.Schema) (store.Clause, error) {
	field, ok := s.Field(raw.Field)
	if !ok {
		return store.Clause{}, &schema.MismatchError{Field: raw.Field, Reason: "not in schema"}
	}

	op, ok := operatorAliases[strings.ToLower(strings.TrimSpace(raw.Op))]
	if !ok {
		return store.Clause{}, &schema.MismatchError{Field: raw.Field, Reason: fmt.Sprintf("unknown operator %q", raw.Op)}
	}
	if !field.AllowsOperator(op) {
		return store.Clause{}, &schema.MismatchError{Field: raw.Field, Reason: fmt.Sprintf("operator %q not valid for type %q", op, field.Type)}
	}

	switch op {
	case schema.OpEquals:
		if raw.Value == nil {
			return store.Clause{}, &schema.MismatchError{Field: raw.Field, Reason: "equals clause without value"}
		}
		value, err := enrich.CoerceValue(raw.Value, field)
		if err != nil {
			return store.Clause{}, &schema.MismatchError{Field: raw.Field, Reason: err.Error()}
		}
		return store.Clause{Field: field.Name, Op: op, Value: value}, nil

	case schema.OpContains:
		needle, ok := raw.Value.(string)
		if !ok || strings.TrimSpace(needle) == "" {
			return store.Clause{}, &schema.MismatchError{Field: raw.Field, Reason: "contains clause needs a string value"}
		}
		return store.Clause{Field: field.Name, Op: op, Value: strings.TrimSpace(needle)}, nil

	case schema.OpIn:
		items, ok := raw.Value.([]any)
		if !ok || len(items) == 0 {
			return store.Clause{}, &schema.MismatchError{Field: raw.Field, Reason: "in clause needs a non-empty array"}
		}
		values := make([]string, 0, len(items))
		for _, item := range items {
			coerced, err := enrich.CoerceValue(item, field)
			if err != nil {
				return store.Clause{}, &schema.MismatchError{Field: raw.Field, Reason: err.Error()}
			}
			values = append(values, fmt.Sprint(coerced))
		}
		return store.Clause{Field: field.Name, Op: op, Value: values}, nil

	case schema.OpRange:
		min, max := raw.Min, raw.Max
		if bounds, ok := raw.Value.(map[string]any); ok {
			if min == nil {
				min = bounds["min"]
			}
			if max == nil {
				max = bounds["max"]
			}
		}
		r := store.Range{}
		var err error
		if min != nil {
			if r.Min, err = enrich.CoerceValue(min, field); err != nil {
				return store.Clause{}, &schema.MismatchError{Field: raw.Field, Reason: err.Error()}
			}
		}
		if max != nil {
			if r.Max, err = enrich.CoerceValue(max, field); err != nil {
				return store.Clause{}, &schema.MismatchError{Field: raw.Field, Reason: err.Error()}
			}
		}
		if r.Min == nil && r.Max == nil {
			return store.Clause{}, &schema.MismatchError{Field: raw.Field, Reason: "range clause without bounds"}
		}
		return store.Clause{Field: field.Name, Op: op, Value: r}, nil

	default:
		return store.Clause{}, &schema.MismatchError{Field: raw.Field, Reason: fmt.Sprintf("unsupported operator %q", op)}
	}
}
