package store

import (
	"strings"

	"github.com/anycompany/docsearch/schema"
)

// Join combines the children of a predicate node.
type Join string

const (
	JoinAnd Join = "and"
	JoinOr  Join = "or"
)

// Range bounds a range clause. Bounds are inclusive; nil leaves a side open.
// Values are either float64 (number fields) or ISO dates as strings, whose
// lexical order matches chronological order.
type Range struct {
	Min any
	Max any
}

// Clause is one field comparison. Values are canonical enriched
// representations: string, bool, float64, []string, or Range.
type Clause struct {
	Field string
	Op    schema.Operator
	Value any
}

// Predicate is a tree of clauses combined with AND/OR. The zero value is the
// empty-AND predicate, which matches everything.
type Predicate struct {
	Join    Join
	Clauses []Clause
	Nested  []Predicate
}

// And builds a flat conjunction.
func And(clauses ...Clause) Predicate {
	return Predicate{Join: JoinAnd, Clauses: clauses}
}

// Empty reports whether the predicate constrains nothing.
func (p Predicate) Empty() bool {
	if len(p.Clauses) > 0 {
		return false
	}
	for _, n := range p.Nested {
		if !n.Empty() {
			return false
		}
	}
	return true
}

// Matches evaluates the predicate against an enriched metadata record.
func (p Predicate) Matches(meta map[string]any) bool {
	if p.Empty() {
		return true
	}

	if p.Join == JoinOr {
		for _, c := range p.Clauses {
			if c.matches(meta) {
				return true
			}
		}
		for _, n := range p.Nested {
			if n.Matches(meta) {
				return true
			}
		}
		return false
	}

	for _, c := range p.Clauses {
		if !c.matches(meta) {
			return false
		}
	}
	for _, n := range p.Nested {
		if !n.Matches(meta) {
			return false
		}
	}
	return true
}

func (c Clause) matches(meta map[string]any) bool {
	value, ok := meta[c.Field]
	if !ok || value == nil {
		return false
	}

	switch c.Op {
	case schema.OpEquals:
		return valueEqual(value, c.Value)
	case schema.OpContains:
		return valueContains(value, c.Value)
	case schema.OpIn:
		return valueIn(value, c.Value)
	case schema.OpRange:
		r, ok := c.Value.(Range)
		if !ok {
			return false
		}
		return valueInRange(value, r)
	default:
		return false
	}
}

func valueEqual(a, b any) bool {
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			return fa == fb
		}
		return false
	}
	switch x := a.(type) {
	case string:
		s, ok := b.(string)
		return ok && strings.EqualFold(x, s)
	case bool:
		v, ok := b.(bool)
		return ok && x == v
	default:
		return false
	}
}

func valueContains(value, needle any) bool {
	target, ok := needle.(string)
	if !ok {
		return false
	}
	switch x := value.(type) {
	case string:
		return strings.Contains(strings.ToLower(x), strings.ToLower(target))
	case []string:
		for _, item := range x {
			if strings.EqualFold(item, target) {
				return true
			}
		}
		return false
	case []any:
		for _, item := range x {
			if s, ok := item.(string); ok && strings.EqualFold(s, target) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func valueIn(value, set any) bool {
	switch items := set.(type) {
	case []string:
		for _, item := range items {
			if valueEqual(value, item) {
				return true
			}
		}
	case []any:
		for _, item := range items {
			if valueEqual(value, item) {
				return true
			}
		}
	}
	return false
}

func valueInRange(value any, r Range) bool {
	if f, ok := asFloat(value); ok {
		if r.Min != nil {
			min, ok := asFloat(r.Min)
			if !ok || f < min {
				return false
			}
		}
		if r.Max != nil {
			max, ok := asFloat(r.Max)
			if !ok || f > max {
				return false
			}
		}
		return true
	}

	// ISO dates compare lexically.
	s, ok := value.(string)
	if !ok {
		return false
	}
	if r.Min != nil {
		min, ok := r.Min.(string)
		if !ok || s < min {
			return false
		}
	}
	if r.Max != nil {
		max, ok := r.Max.(string)
		if !ok || s > max {
			return false
		}
	}
	return true
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}
