package enrich

import (
	"errors"
	"reflect"
	"testing"

	"github.com/anycompany/docsearch/schema"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s := &schema.Schema{
		Version: 1,
		Fields: []schema.Field{
			{Name: "company", Type: schema.TypeString, Required: true, Default: "Unknown"},
			{Name: "agreement_date", Type: schema.TypeDate},
			{Name: "breach_notification_required", Type: schema.TypeBoolean, Default: false},
			{Name: "breach_notification_days", Type: schema.TypeNumber},
			{Name: "time_entry_requirements", Type: schema.TypeEnum, Default: "none", Enum: []string{"daily", "weekly", "monthly", "none"}},
			{Name: "types_of_expenses", Type: schema.TypeStringList},
			{Name: "has_expense_policy", Type: schema.TypeBoolean, DerivedFrom: "types_of_expenses"},
		},
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("test schema invalid: %v", err)
	}
	return s
}

func TestEnrichProducesCompleteRecord(t *testing.T) {
	s := testSchema(t)
	out, audit := Enrich(map[string]any{
		"company":                      "  AnyCompany  ",
		"agreement_date":               "January 5, 2023",
		"breach_notification_required": "yes",
		"breach_notification_days":     "30",
		"time_entry_requirements":      "WEEKLY",
		"types_of_expenses":            []any{"travel", " lodging ", ""},
	}, s)

	if len(out) != len(s.Fields) {
		t.Fatalf("expected %d fields, got %d", len(s.Fields), len(out))
	}
	if out["company"] != "AnyCompany" {
		t.Fatalf("unexpected company: %v", out["company"])
	}
	if out["agreement_date"] != "2023-01-05" {
		t.Fatalf("unexpected date: %v", out["agreement_date"])
	}
	if out["breach_notification_required"] != true {
		t.Fatalf("unexpected boolean: %v", out["breach_notification_required"])
	}
	if out["breach_notification_days"] != float64(30) {
		t.Fatalf("unexpected number: %v", out["breach_notification_days"])
	}
	if out["time_entry_requirements"] != "weekly" {
		t.Fatalf("expected canonical enum casing, got %v", out["time_entry_requirements"])
	}
	if !reflect.DeepEqual(out["types_of_expenses"], []string{"travel", "lodging"}) {
		t.Fatalf("unexpected list: %v", out["types_of_expenses"])
	}
	if out["has_expense_policy"] != true {
		t.Fatalf("expected derived field true, got %v", out["has_expense_policy"])
	}
	if len(audit.Flags) != 0 {
		t.Fatalf("expected no audit flags, got %v", audit.Flags)
	}
}

func TestEnrichAbsentFieldsGetDefaults(t *testing.T) {
	s := testSchema(t)
	out, audit := Enrich(map[string]any{"company": "AnyCompany"}, s)

	if out["time_entry_requirements"] != "none" {
		t.Fatalf("expected enum default, got %v", out["time_entry_requirements"])
	}
	if out["agreement_date"] != nil {
		t.Fatalf("expected nil for defaultless absent field, got %v", out["agreement_date"])
	}
	if flag, ok := audit.Flagged("agreement_date"); !ok || flag != FlagDerivedDefault {
		t.Fatalf("expected derived_default flag, got %v %v", flag, ok)
	}
	if out["has_expense_policy"] != false {
		t.Fatalf("expected derived field false for absent source, got %v", out["has_expense_policy"])
	}
}

func TestEnrichInvalidValuesFallBackToDefault(t *testing.T) {
	s := testSchema(t)
	out, audit := Enrich(map[string]any{
		"company":                      "AnyCompany",
		"agreement_date":               "sometime last spring",
		"breach_notification_required": "perhaps",
		"time_entry_requirements":      "hourly",
	}, s)

	if out["agreement_date"] != nil {
		t.Fatalf("expected nil for invalid defaultless date, got %v", out["agreement_date"])
	}
	if out["breach_notification_required"] != false {
		t.Fatalf("expected boolean default, got %v", out["breach_notification_required"])
	}
	if out["time_entry_requirements"] != "none" {
		t.Fatalf("expected enum default, got %v", out["time_entry_requirements"])
	}
	for _, name := range []string{"agreement_date", "breach_notification_required", "time_entry_requirements"} {
		if flag, ok := audit.Flagged(name); !ok || flag != FlagInvalid {
			t.Fatalf("expected invalid flag for %s, got %v %v", name, flag, ok)
		}
	}
}

func TestEnrichIsIdempotent(t *testing.T) {
	s := testSchema(t)
	raw := map[string]any{
		"company":                      "AnyCompany",
		"agreement_date":               "2023/06/30",
		"breach_notification_required": float64(1),
		"breach_notification_days":     float64(15),
		"time_entry_requirements":      "Daily",
		"types_of_expenses":            "travel, meals",
	}

	first, _ := Enrich(raw, s)
	second, _ := Enrich(first, s)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("enrichment is not a fixed point:\nfirst:  %v\nsecond: %v", first, second)
	}
}

func TestEnrichDerivedSeesCoercedValue(t *testing.T) {
	s := testSchema(t)
	// A list that trims down to nothing must leave the derived flag false.
	out, _ := Enrich(map[string]any{"types_of_expenses": []any{"  ", ""}}, s)
	if out["has_expense_policy"] != false {
		t.Fatalf("expected false for effectively empty list, got %v", out["has_expense_policy"])
	}
}

func TestValidateDefaults(t *testing.T) {
	s := testSchema(t)
	if err := ValidateDefaults(s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := &schema.Schema{Fields: []schema.Field{
		{Name: "count", Type: schema.TypeNumber, Default: "lots"},
	}}
	err := ValidateDefaults(bad)
	if err == nil {
		t.Fatal("expected error for uncoercible default")
	}
	var mismatch *schema.MismatchError
	if !errors.As(err, &mismatch) || mismatch.Field != "count" {
		t.Fatalf("expected MismatchError for field count, got %v", err)
	}
}

func TestCoerceDateLayouts(t *testing.T) {
	field := schema.Field{Name: "d", Type: schema.TypeDate}
	for _, input := range []string{"2024-03-09", "2024/03/09", "03/09/2024", "March 9, 2024", "Mar 9, 2024", "9 March 2024"} {
		got, err := CoerceValue(input, field)
		if err != nil {
			t.Fatalf("coerce %q: %v", input, err)
		}
		if got != "2024-03-09" {
			t.Fatalf("coerce %q: got %v", input, got)
		}
	}
}

func TestCoerceBoolWords(t *testing.T) {
	field := schema.Field{Name: "b", Type: schema.TypeBoolean}
	truthy := []any{"yes", "Required", "TRUE", float64(1), true}
	for _, input := range truthy {
		got, err := CoerceValue(input, field)
		if err != nil || got != true {
			t.Fatalf("coerce %v: got %v, err %v", input, got, err)
		}
	}
	falsy := []any{"no", "none", "Not Required", float64(0), false}
	for _, input := range falsy {
		got, err := CoerceValue(input, field)
		if err != nil || got != false {
			t.Fatalf("coerce %v: got %v, err %v", input, got, err)
		}
	}
	if _, err := CoerceValue(float64(7), field); err == nil {
		t.Fatal("expected error for arbitrary number as boolean")
	}
}

func TestCoerceStringListFromDelimitedString(t *testing.T) {
	field := schema.Field{Name: "l", Type: schema.TypeStringList}
	got, err := CoerceValue("travel, lodging; meals", field)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"travel", "lodging", "meals"}) {
		t.Fatalf("unexpected list: %v", got)
	}
}
