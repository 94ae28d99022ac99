package celeval

import (
	"testing"
	"time"

	"github.com/permithq/permit"
)

func newEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	ev, err := New()
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}
	return ev
}

func TestEvaluateRequestVariables(t *testing.T) {
	ev := newEvaluator(t)
	rc := &permit.Context{
		UserID:       "u1",
		ResourceType: "Report",
		ResourceID:   "rep-1",
		Kind:         permit.KindExport,
		Timestamp:    time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}

	ok, err := ev.Evaluate(`request.user_id == "u1" && request.kind == "export"`, rc)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !ok {
		t.Fatalf("expected expression to hold")
	}

	ok, err = ev.Evaluate(`request.resource_type == "Invoice"`, rc)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if ok {
		t.Fatalf("expected expression to fail")
	}
}

func TestEvaluateAttributes(t *testing.T) {
	ev := newEvaluator(t)
	rc := &permit.Context{
		UserID:     "u1",
		Attributes: map[string]any{"department": "finance", "clearance": 3},
	}

	ok, err := ev.Evaluate(`attrs.department == "finance" && int(attrs.clearance) >= 2`, rc)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !ok {
		t.Fatalf("expected attribute expression to hold")
	}

	// Nil attribute maps evaluate against an empty map instead of failing.
	rc = &permit.Context{UserID: "u1"}
	ok, err = ev.Evaluate(`"department" in attrs`, rc)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if ok {
		t.Fatalf("expected membership test to fail on empty attrs")
	}
}

func TestEvaluateErrors(t *testing.T) {
	ev := newEvaluator(t)
	rc := &permit.Context{UserID: "u1"}

	if _, err := ev.Evaluate(`request.user_id ==`, rc); err == nil {
		t.Fatalf("expected compile error")
	}
	if _, err := ev.Evaluate(`request.user_id`, rc); err == nil {
		t.Fatalf("expected non-boolean result error")
	}
	if err := ev.Validate(`attrs.level > 1`); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := ev.Validate(`broken(`); err == nil {
		t.Fatalf("expected validation failure")
	}
}

func TestProgramCacheReuse(t *testing.T) {
	ev := newEvaluator(t)
	rc := &permit.Context{UserID: "u1"}

	const expr = `request.user_id == "u1"`
	if _, err := ev.Evaluate(expr, rc); err != nil {
		t.Fatalf("first evaluation: %v", err)
	}
	if _, ok := ev.programs.Load(expr); !ok {
		t.Fatalf("expected compiled program to be cached")
	}
	if ok, err := ev.Evaluate(expr, rc); err != nil || !ok {
		t.Fatalf("cached evaluation: ok=%v err=%v", ok, err)
	}
}
