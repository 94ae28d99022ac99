package permit

import (
	"testing"
)

func policyFixture() []*Policy {
	return []*Policy{
		{
			ID: "low", Name: "low", Priority: 1, Active: true,
			ResourceTypes: []string{"Report"},
			CombineLogic:  LogicOr,
			Rules: []PolicyRule{
				{Name: "low-allow", Decision: DecisionAllow},
			},
		},
		{
			ID: "high", Name: "high", Priority: 10, Active: true,
			ResourceTypes: []string{"Report"},
			CombineLogic:  LogicOr,
			Rules: []PolicyRule{
				{Name: "high-deny", Decision: DecisionDeny},
			},
		},
	}
}

func TestEvaluatePoliciesPriorityOrder(t *testing.T) {
	rc := &Context{UserID: "u1", ResourceType: "Report", Kind: KindRead}
	out := EvaluatePolicies(policyFixture(), rc, nil)
	if len(out) != 2 {
		t.Fatalf("expected both policies evaluated, got %d", len(out))
	}
	if out[0].Policy.Name != "high" || out[1].Policy.Name != "low" {
		t.Fatalf("expected descending priority order, got %s then %s", out[0].Policy.Name, out[1].Policy.Name)
	}
	// The high-priority deny is first but does not stop the loop; the
	// low-priority allow halts it.
	if out[0].Decision != DecisionDeny || out[1].Decision != DecisionAllow {
		t.Fatalf("unexpected decisions: %s, %s", out[0].Decision, out[1].Decision)
	}
}

func TestEvaluatePoliciesAllowHalts(t *testing.T) {
	policies := policyFixture()
	policies[0].Priority = 20 // allow now outranks the deny

	rc := &Context{UserID: "u1", ResourceType: "Report", Kind: KindRead}
	out := EvaluatePolicies(policies, rc, nil)
	if len(out) != 1 {
		t.Fatalf("expected evaluation to halt after allow, got %d entries", len(out))
	}
	if out[0].Decision != DecisionAllow {
		t.Fatalf("expected allow, got %s", out[0].Decision)
	}
}

func TestEvaluatePoliciesApplicabilityFilter(t *testing.T) {
	policies := policyFixture()
	policies[1].ResourceTypes = []string{"Invoice"}
	policies[1].ResourceIDs = nil

	rc := &Context{UserID: "u1", ResourceType: "Report", Kind: KindRead}
	out := EvaluatePolicies(policies, rc, nil)
	if len(out) != 1 || out[0].Policy.Name != "low" {
		t.Fatalf("expected only the Report policy, got %d entries", len(out))
	}

	inactive := policyFixture()
	inactive[0].Active = false
	inactive[1].Active = false
	if out := EvaluatePolicies(inactive, rc, nil); len(out) != 0 {
		t.Fatalf("inactive policies must not be evaluated, got %d", len(out))
	}
}

func TestEvaluatePolicyRoleRequirements(t *testing.T) {
	p := &Policy{
		ID: "restricted", Name: "restricted", Active: true, Priority: 5,
		ResourceTypes: []string{"Report"},
		CombineLogic:  LogicOr,
		Rules: []PolicyRule{
			{Name: "admins-only", Decision: DecisionAllow, RequiredRoles: []string{"admin"}, ExcludedRoles: []string{"contractor"}},
		},
	}
	rc := &Context{UserID: "u1", ResourceType: "Report", Kind: KindRead}

	if out := EvaluatePolicies([]*Policy{p}, rc, nil); out[0].Decision != DecisionNotApplicable {
		t.Fatalf("expected not applicable without required role, got %s", out[0].Decision)
	}
	if out := EvaluatePolicies([]*Policy{p}, rc, []string{"admin"}); out[0].Decision != DecisionAllow {
		t.Fatalf("expected allow with required role, got %s", out[0].Decision)
	}
	if out := EvaluatePolicies([]*Policy{p}, rc, []string{"admin", "contractor"}); out[0].Decision != DecisionNotApplicable {
		t.Fatalf("excluded role must block the rule, got %s", out[0].Decision)
	}
}

func TestEvaluatePolicyCombineLogic(t *testing.T) {
	andPolicy := &Policy{
		ID: "and", Name: "and", Active: true,
		ResourceTypes: []string{"File"},
		CombineLogic:  LogicAnd,
		Rules: []PolicyRule{
			{Name: "first", Decision: DecisionDeny, Order: 0, Conditions: []Condition{
				{Attribute: "location", Operator: OpEq, Values: []any{"remote"}},
			}},
			{Name: "second", Decision: DecisionAllow, Order: 1, Conditions: []Condition{
				{Attribute: "device", Operator: OpEq, Values: []any{"byod"}},
			}},
		},
	}
	rc := &Context{
		UserID: "u1", ResourceType: "File", Kind: KindRead,
		Attributes: map[string]any{"location": "remote", "device": "byod"},
	}

	// AND with every rule matching takes the first rule's decision.
	out := EvaluatePolicies([]*Policy{andPolicy}, rc, nil)
	if out[0].Decision != DecisionDeny || out[0].Rule != "first" {
		t.Fatalf("expected first rule's deny, got %s via %q", out[0].Decision, out[0].Rule)
	}

	// One failing rule makes the AND policy not applicable.
	rc.Attributes["device"] = "managed"
	out = EvaluatePolicies([]*Policy{andPolicy}, rc, nil)
	if out[0].Decision != DecisionNotApplicable {
		t.Fatalf("expected not applicable, got %s", out[0].Decision)
	}

	// OR takes the first matching rule in order.
	orPolicy := *andPolicy
	orPolicy.CombineLogic = LogicOr
	out = EvaluatePolicies([]*Policy{&orPolicy}, rc, nil)
	if out[0].Decision != DecisionDeny || out[0].Rule != "first" {
		t.Fatalf("expected OR to take first matching rule, got %s via %q", out[0].Decision, out[0].Rule)
	}
}

func TestEvaluatePolicyWithoutRules(t *testing.T) {
	p := &Policy{ID: "empty", Name: "empty", Active: true, ResourceTypes: []string{"Report"}}
	rc := &Context{UserID: "u1", ResourceType: "Report", Kind: KindRead}
	out := EvaluatePolicies([]*Policy{p}, rc, nil)
	if out[0].Decision != DecisionNotApplicable {
		t.Fatalf("rule-less policy must be not applicable, got %s", out[0].Decision)
	}
}
