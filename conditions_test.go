package permit

import (
	"testing"
	"time"
)

func TestConditionOperators(t *testing.T) {
	attrs := map[string]any{
		"department": "finance",
		"age":        30,
		"score":      7.5,
		"tags":       []string{"vip", "beta"},
		"path":       "reports/q3/summary",
		"when":       time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC),
	}

	cases := []struct {
		name string
		cond Condition
		want bool
	}{
		{"eq match", Condition{Attribute: "department", Operator: OpEq, Values: []any{"finance"}}, true},
		{"eq mismatch", Condition{Attribute: "department", Operator: OpEq, Values: []any{"sales"}}, false},
		{"ne", Condition{Attribute: "department", Operator: OpNe, Values: []any{"sales"}}, true},
		{"gt int vs float", Condition{Attribute: "age", Operator: OpGt, Values: []any{29.5}}, true},
		{"gte equal", Condition{Attribute: "age", Operator: OpGte, Values: []any{30}}, true},
		{"lt", Condition{Attribute: "score", Operator: OpLt, Values: []any{8}}, true},
		{"lte fail", Condition{Attribute: "score", Operator: OpLte, Values: []any{7}}, false},
		{"in", Condition{Attribute: "department", Operator: OpIn, Values: []any{"hr", "finance"}}, true},
		{"not in", Condition{Attribute: "department", Operator: OpNotIn, Values: []any{"hr", "sales"}}, true},
		{"contains string", Condition{Attribute: "path", Operator: OpContains, Values: []any{"q3"}}, true},
		{"contains slice", Condition{Attribute: "tags", Operator: OpContains, Values: []any{"vip"}}, true},
		{"contains miss", Condition{Attribute: "tags", Operator: OpContains, Values: []any{"admin"}}, false},
		{"time gt rfc3339", Condition{Attribute: "when", Operator: OpGt, Values: []any{"2026-03-10T09:00:00Z"}}, true},
		{"missing attribute", Condition{Attribute: "device", Operator: OpEq, Values: []any{"managed"}}, false},
		{"unknown operator", Condition{Attribute: "department", Operator: "~", Values: []any{"finance"}}, false},
	}
	for _, tc := range cases {
		if got := tc.cond.Match(attrs); got != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestMatchConditionsLogic(t *testing.T) {
	attrs := map[string]any{"a": 1, "b": 2}
	match := Condition{Attribute: "a", Operator: OpEq, Values: []any{1}}
	miss := Condition{Attribute: "b", Operator: OpEq, Values: []any{99}}

	if !matchConditions(nil, attrs, LogicAnd) {
		t.Fatalf("empty condition list must match")
	}
	if matchConditions([]Condition{match, miss}, attrs, LogicAnd) {
		t.Fatalf("AND with a failing condition must not match")
	}
	if !matchConditions([]Condition{match, miss}, attrs, LogicOr) {
		t.Fatalf("OR with one holding condition must match")
	}
	// Empty logic behaves as AND.
	if matchConditions([]Condition{match, miss}, attrs, "") {
		t.Fatalf("default logic must be AND")
	}
}

func TestRequiredConditionsHold(t *testing.T) {
	attrs := map[string]any{"location": "office"}
	required := Condition{Attribute: "location", Operator: OpEq, Values: []any{"office"}, Required: true}
	optionalMiss := Condition{Attribute: "device", Operator: OpEq, Values: []any{"managed"}}

	if !requiredConditionsHold([]Condition{required, optionalMiss}, attrs) {
		t.Fatalf("failing optional condition must not block")
	}

	requiredMiss := Condition{Attribute: "device", Operator: OpEq, Values: []any{"managed"}, Required: true}
	if requiredConditionsHold([]Condition{required, requiredMiss}, attrs) {
		t.Fatalf("failing required condition must block")
	}
}
