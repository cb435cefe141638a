package enrich

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/anycompany/docsearch/schema"
)

// DateLayout is the canonical date representation. ISO dates compare lexically
// in chronological order, which the filter layer relies on.
const DateLayout = "2006-01-02"

// acceptedDateLayouts is the fixed set of input formats the transformer
// understands. Anything else is not coercible.
var acceptedDateLayouts = []string{
	DateLayout,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	time.RFC3339,
}

var boolWords = map[string]bool{
	"true":         true,
	"yes":          true,
	"y":            true,
	"1":            true,
	"required":     true,
	"false":        false,
	"no":           false,
	"n":            false,
	"0":            false,
	"none":         false,
	"not required": false,
}

// CoerceValue converts a raw model-produced value into the canonical typed
// representation for the field: string, "2006-01-02" date string, bool,
// float64, canonical enum string, or []string.
func CoerceValue(value any, field schema.Field) (any, error) {
	switch field.Type {
	case schema.TypeString:
		return coerceString(value)
	case schema.TypeDate:
		return coerceDate(value)
	case schema.TypeBoolean:
		return coerceBool(value)
	case schema.TypeNumber:
		return coerceNumber(value)
	case schema.TypeEnum:
		return coerceEnum(value, field.Enum)
	case schema.TypeStringList:
		return coerceStringList(value)
	default:
		return nil, fmt.Errorf("unknown field type %q", field.Type)
	}
}

func coerceString(value any) (string, error) {
	switch x := value.(type) {
	case string:
		return strings.TrimSpace(x), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(x), nil
	default:
		return "", fmt.Errorf("cannot coerce %T to string", value)
	}
}

func coerceDate(value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("cannot coerce %T to date", value)
	}
	s = strings.TrimSpace(s)
	for _, layout := range acceptedDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", s)
}

func coerceBool(value any) (bool, error) {
	switch x := value.(type) {
	case bool:
		return x, nil
	case string:
		if b, ok := boolWords[strings.ToLower(strings.TrimSpace(x))]; ok {
			return b, nil
		}
		return false, fmt.Errorf("unrecognized boolean %q", x)
	case float64:
		if x == 0 {
			return false, nil
		}
		if x == 1 {
			return true, nil
		}
		return false, fmt.Errorf("number %v is not a boolean", x)
	default:
		return false, fmt.Errorf("cannot coerce %T to boolean", value)
	}
}

func coerceNumber(value any) (float64, error) {
	switch x := value.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("unrecognized number %q", x)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("cannot coerce %T to number", value)
	}
}

func coerceEnum(value any, allowed []string) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("cannot coerce %T to enum", value)
	}
	s = strings.TrimSpace(s)
	for _, candidate := range allowed {
		if strings.EqualFold(s, candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("value %q not in enum %v", s, allowed)
}

func coerceStringList(value any) ([]string, error) {
	switch x := value.(type) {
	case []string:
		return trimNonEmpty(x), nil
	case []any:
		items := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("list element %T is not a string", item)
			}
			items = append(items, s)
		}
		return trimNonEmpty(items), nil
	case string:
		return trimNonEmpty(strings.FieldsFunc(x, func(r rune) bool {
			return r == ',' || r == ';'
		})), nil
	default:
		return nil, fmt.Errorf("cannot coerce %T to list", value)
	}
}

func trimNonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
