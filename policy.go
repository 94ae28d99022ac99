package permit

import (
	"fmt"
	"sort"
)

// ============================================================================
// POLICY ENGINE
// ============================================================================

// PolicyDecision is one policy's verdict on a request.
type PolicyDecision struct {
	Policy   *Policy
	Decision Decision
	Reason   string
	Rule     string // name of the rule that fixed the decision, if any
}

// EvaluatePolicies filters the given policies to those applicable to the
// request, orders them by descending priority and evaluates each until one
// produces an explicit Allow. The returned list is in evaluation order and
// contains one entry per policy actually evaluated.
//
// Short-circuiting is asymmetric: an Allow halts the loop, a Deny does
// not. A lower-priority Allow therefore wins over an earlier
// higher-priority Deny. Callers wanting deny-overrides must encode it in
// policy priorities and rule order.
func EvaluatePolicies(policies []*Policy, rc *Context, roleIDs []string) []PolicyDecision {
	applicable := make([]*Policy, 0, len(policies))
	for _, p := range policies {
		if p.Active && p.AppliesTo(rc.ResourceType, rc.ResourceID) {
			applicable = append(applicable, p)
		}
	}
	sort.SliceStable(applicable, func(i, j int) bool {
		return applicable[i].Priority > applicable[j].Priority
	})

	roles := make(map[string]bool, len(roleIDs))
	for _, r := range roleIDs {
		roles[r] = true
	}

	out := make([]PolicyDecision, 0, len(applicable))
	for _, p := range applicable {
		d := evaluatePolicy(p, rc, roles)
		out = append(out, d)
		if d.Decision == DecisionAllow {
			break
		}
	}
	return out
}

// evaluatePolicy applies the policy's combine logic over its rules.
//
// AND: every rule must match; the decision is taken from the first rule in
// order. OR: the first matching rule in order supplies the decision. A
// policy whose rules yield nothing is NotApplicable.
func evaluatePolicy(p *Policy, rc *Context, roles map[string]bool) PolicyDecision {
	rules := make([]*PolicyRule, 0, len(p.Rules))
	for i := range p.Rules {
		rules = append(rules, &p.Rules[i])
	}
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Order < rules[j].Order })

	if len(rules) == 0 {
		return PolicyDecision{Policy: p, Decision: DecisionNotApplicable, Reason: "policy has no rules"}
	}

	if p.CombineLogic == LogicOr {
		for _, r := range rules {
			if ruleMatches(r, rc, roles) {
				return PolicyDecision{
					Policy:   p,
					Decision: r.Decision,
					Reason:   fmt.Sprintf("policy %q rule %q matched", p.Name, ruleLabel(r)),
					Rule:     ruleLabel(r),
				}
			}
		}
		return PolicyDecision{Policy: p, Decision: DecisionNotApplicable, Reason: "no rule matched"}
	}

	// AND: all rules must match; rule order fixes which decision the
	// policy carries.
	for _, r := range rules {
		if !ruleMatches(r, rc, roles) {
			return PolicyDecision{Policy: p, Decision: DecisionNotApplicable, Reason: "rule set not fully matched"}
		}
	}
	lead := rules[0]
	return PolicyDecision{
		Policy:   p,
		Decision: lead.Decision,
		Reason:   fmt.Sprintf("policy %q all rules matched", p.Name),
		Rule:     ruleLabel(lead),
	}
}

// ruleMatches checks role requirements and attribute conditions.
func ruleMatches(r *PolicyRule, rc *Context, roles map[string]bool) bool {
	for _, required := range r.RequiredRoles {
		if !roles[required] {
			return false
		}
	}
	for _, excluded := range r.ExcludedRoles {
		if roles[excluded] {
			return false
		}
	}
	return matchConditions(r.Conditions, rc.Attributes, r.ConditionLogic)
}

func ruleLabel(r *PolicyRule) string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}

func policyLabel(p *Policy) string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}
