package stores

import (
	"time"

	"github.com/oarkflow/date"

	"github.com/permithq/permit"
)

func parseFlexibleTime(s string) (time.Time, error) {
	return date.Parse(s)
}

// scanTime copes with drivers returning timestamps as time.Time, string
// or []byte depending on the backend.
func scanTime(raw any) time.Time {
	switch v := raw.(type) {
	case time.Time:
		return v
	case string:
		if t, err := parseFlexibleTime(v); err == nil {
			return t
		}
	case []byte:
		if t, err := parseFlexibleTime(string(v)); err == nil {
			return t
		}
	}
	return time.Time{}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func cloneRole(r *permit.Role) *permit.Role {
	if r == nil {
		return nil
	}
	dup := *r
	dup.ChildIDs = append([]string(nil), r.ChildIDs...)
	dup.PermissionIDs = append([]string(nil), r.PermissionIDs...)
	return &dup
}

func clonePermission(p *permit.Permission) *permit.Permission {
	if p == nil {
		return nil
	}
	dup := *p
	dup.Conditions = append([]permit.Condition(nil), p.Conditions...)
	return &dup
}

func clonePolicy(p *permit.Policy) *permit.Policy {
	if p == nil {
		return nil
	}
	dup := *p
	dup.Rules = append([]permit.PolicyRule(nil), p.Rules...)
	dup.ResourceTypes = append([]string(nil), p.ResourceTypes...)
	dup.ResourceIDs = append([]string(nil), p.ResourceIDs...)
	return &dup
}

func cloneOwnership(o *permit.ResourceOwnership) *permit.ResourceOwnership {
	if o == nil {
		return nil
	}
	dup := *o
	dup.Grants = append([]permit.ResourceGrant(nil), o.Grants...)
	return &dup
}

func cloneAssignment(a *permit.RoleAssignment) *permit.RoleAssignment {
	if a == nil {
		return nil
	}
	dup := *a
	dup.Conditions = append([]permit.Condition(nil), a.Conditions...)
	return &dup
}
