package permit

import (
	"time"
)

// ============================================================================
// DOMAIN OBJECTS
// ============================================================================

// PermissionKind classifies what an operation does to a resource.
type PermissionKind string

const (
	KindRead      PermissionKind = "read"
	KindWrite     PermissionKind = "write"
	KindDelete    PermissionKind = "delete"
	KindExecute   PermissionKind = "execute"
	KindAdmin     PermissionKind = "admin"
	KindCreate    PermissionKind = "create"
	KindUpdate    PermissionKind = "update"
	KindApprove   PermissionKind = "approve"
	KindPublish   PermissionKind = "publish"
	KindExport    PermissionKind = "export"
	KindImport    PermissionKind = "import"
	KindAudit     PermissionKind = "audit"
	KindConfigure PermissionKind = "configure"
	KindManage    PermissionKind = "manage"
)

// Decision is the outcome category of an evaluation.
type Decision string

const (
	DecisionAllow         Decision = "allow"
	DecisionDeny          Decision = "deny"
	DecisionNotApplicable Decision = "not_applicable"
)

// ScopeAll marks a permission as applying to every instance of its resource type.
const ScopeAll = "*"

// Operator compares a context attribute against expected values.
type Operator string

const (
	OpEq       Operator = "eq"
	OpNe       Operator = "ne"
	OpGt       Operator = "gt"
	OpGte      Operator = "gte"
	OpLt       Operator = "lt"
	OpLte      Operator = "lte"
	OpIn       Operator = "in"
	OpNotIn    Operator = "not_in"
	OpContains Operator = "contains"
)

// RuleLogic combines multiple rules or conditions.
type RuleLogic string

const (
	LogicAnd RuleLogic = "and"
	LogicOr  RuleLogic = "or"
)

// Condition gates a permission, role assignment or policy rule on a request
// attribute. A condition whose attribute is absent from the context fails;
// whether that failure blocks the enclosing match depends on Required.
type Condition struct {
	Attribute string   `json:"attribute" yaml:"attribute"`
	Operator  Operator `json:"operator" yaml:"operator"`
	Values    []any    `json:"values" yaml:"values"`
	Required  bool     `json:"required" yaml:"required"`
}

// Role is a named grant bundle arranged in an acyclic parent hierarchy.
// Level is derived: a root role has level 0, a child has parent level + 1.
type Role struct {
	ID            string    `json:"id" yaml:"id"`
	Name          string    `json:"name" yaml:"name"`
	Active        bool      `json:"active" yaml:"active"`
	Level         int       `json:"level" yaml:"level"`
	ParentID      string    `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	ChildIDs      []string  `json:"child_ids,omitempty" yaml:"child_ids,omitempty"`
	PermissionIDs []string  `json:"permission_ids,omitempty" yaml:"permission_ids,omitempty"`
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
}

// Permission describes one kind of access to a resource type, optionally
// narrowed to a single instance. A non-empty ResourceID always means
// instance scoping, whatever Scope says.
type Permission struct {
	ID           string         `json:"id" yaml:"id"`
	Name         string         `json:"name" yaml:"name"`
	Kind         PermissionKind `json:"kind" yaml:"kind"`
	ResourceType string         `json:"resource_type" yaml:"resource_type"`
	ResourceID   string         `json:"resource_id,omitempty" yaml:"resource_id,omitempty"`
	Scope        string         `json:"scope" yaml:"scope"`
	Conditions   []Condition    `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// InstanceScoped reports whether the permission is pinned to one resource.
func (p *Permission) InstanceScoped() bool {
	return p.ResourceID != ""
}

// DedupKey identifies a permission fact for aggregation purposes. Two
// permissions with the same key are the same fact and collapse to one.
func (p *Permission) DedupKey() string {
	return p.Name + "\x00" + p.ResourceType + "\x00" + p.ResourceID
}

// RoleAssignment links a user to a role within an optional validity window.
// The zero time on either bound means that bound is open.
type RoleAssignment struct {
	UserID     string      `json:"user_id" yaml:"user_id"`
	RoleID     string      `json:"role_id" yaml:"role_id"`
	ValidFrom  time.Time   `json:"valid_from,omitempty" yaml:"valid_from,omitempty"`
	ValidUntil time.Time   `json:"valid_until,omitempty" yaml:"valid_until,omitempty"`
	Active     bool        `json:"active" yaml:"active"`
	Conditions []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// LiveAt reports whether the assignment's activation flag and validity
// window admit the given instant. Attribute conditions are checked
// separately because they need the request context.
func (a *RoleAssignment) LiveAt(now time.Time) bool {
	if !a.Active {
		return false
	}
	if !a.ValidFrom.IsZero() && now.Before(a.ValidFrom) {
		return false
	}
	if !a.ValidUntil.IsZero() && now.After(a.ValidUntil) {
		return false
	}
	return true
}

// Group collects users and holds permissions and roles of its own. Groups
// nest through ParentID; members of a child group inherit everything the
// ancestor groups hold.
type Group struct {
	ID            string   `json:"id" yaml:"id"`
	Name          string   `json:"name" yaml:"name"`
	MemberIDs     []string `json:"member_ids,omitempty" yaml:"member_ids,omitempty"`
	PermissionIDs []string `json:"permission_ids,omitempty" yaml:"permission_ids,omitempty"`
	RoleIDs       []string `json:"role_ids,omitempty" yaml:"role_ids,omitempty"`
	ParentID      string   `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
}

// ResourceGrant is an ad-hoc grant on one resource instance, targeting
// either a user or a role (exactly one of the two is set).
type ResourceGrant struct {
	UserID     string           `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	RoleID     string           `json:"role_id,omitempty" yaml:"role_id,omitempty"`
	Kinds      []PermissionKind `json:"kinds" yaml:"kinds"`
	ValidFrom  time.Time        `json:"valid_from,omitempty" yaml:"valid_from,omitempty"`
	ValidUntil time.Time        `json:"valid_until,omitempty" yaml:"valid_until,omitempty"`
	Active     bool             `json:"active" yaml:"active"`
}

// LiveAt reports whether the grant may contribute at the given instant.
// A lapsed or inactive grant is excluded outright, never merely flagged.
func (g *ResourceGrant) LiveAt(now time.Time) bool {
	if !g.Active {
		return false
	}
	if !g.ValidFrom.IsZero() && now.Before(g.ValidFrom) {
		return false
	}
	if !g.ValidUntil.IsZero() && now.After(g.ValidUntil) {
		return false
	}
	return true
}

// HasKind reports whether the grant's permission set covers the kind.
func (g *ResourceGrant) HasKind(kind PermissionKind) bool {
	for _, k := range g.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// ResourceOwnership binds a resource instance to its owner and the grants
// delegated on it.
type ResourceOwnership struct {
	ResourceType string          `json:"resource_type" yaml:"resource_type"`
	ResourceID   string          `json:"resource_id" yaml:"resource_id"`
	OwnerID      string          `json:"owner_id" yaml:"owner_id"`
	Grants       []ResourceGrant `json:"grants,omitempty" yaml:"grants,omitempty"`
	CreatedAt    time.Time       `json:"created_at" yaml:"created_at"`
}

// Policy is an ordered set of rules with an applicability filter.
// Higher priority policies are evaluated first.
type Policy struct {
	ID            string       `json:"id" yaml:"id"`
	Name          string       `json:"name" yaml:"name"`
	Priority      int          `json:"priority" yaml:"priority"`
	Rules         []PolicyRule `json:"rules" yaml:"rules"`
	CombineLogic  RuleLogic    `json:"combine_logic" yaml:"combine_logic"`
	ResourceTypes []string     `json:"resource_types,omitempty" yaml:"resource_types,omitempty"`
	ResourceIDs   []string     `json:"resource_ids,omitempty" yaml:"resource_ids,omitempty"`
	Active        bool         `json:"active" yaml:"active"`
	CreatedAt     time.Time    `json:"created_at" yaml:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at" yaml:"updated_at"`
}

// AppliesTo reports whether the policy's filter matches the request's
// resource. An empty ResourceTypes list matches every type; a non-empty
// ResourceIDs list additionally constrains the instance.
func (p *Policy) AppliesTo(resourceType, resourceID string) bool {
	if len(p.ResourceTypes) > 0 {
		found := false
		for _, t := range p.ResourceTypes {
			if t == resourceType {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(p.ResourceIDs) > 0 {
		for _, id := range p.ResourceIDs {
			if id == resourceID {
				return true
			}
		}
		return false
	}
	return true
}

// PolicyRule pairs an explicit decision with the role and attribute
// requirements under which it fires. Order fixes evaluation position
// inside the policy.
type PolicyRule struct {
	ID             string      `json:"id" yaml:"id"`
	Name           string      `json:"name" yaml:"name"`
	Decision       Decision    `json:"decision" yaml:"decision"`
	Conditions     []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	ConditionLogic RuleLogic   `json:"condition_logic,omitempty" yaml:"condition_logic,omitempty"`
	RequiredRoles  []string    `json:"required_roles,omitempty" yaml:"required_roles,omitempty"`
	ExcludedRoles  []string    `json:"excluded_roles,omitempty" yaml:"excluded_roles,omitempty"`
	Order          int         `json:"order" yaml:"order"`
}

// DynamicPermission binds an opaque boolean expression to a permission
// kind and resource type. The engine never interprets Expression itself;
// a pluggable evaluator does.
type DynamicPermission struct {
	ID           string         `json:"id" yaml:"id"`
	Name         string         `json:"name" yaml:"name"`
	Expression   string         `json:"expression" yaml:"expression"`
	Kind         PermissionKind `json:"kind" yaml:"kind"`
	ResourceType string         `json:"resource_type" yaml:"resource_type"`
	Active       bool           `json:"active" yaml:"active"`
}

// Context carries one authorization request. Attributes hold whatever the
// caller knows about the request environment (time of day, IP, device,
// department, ...).
type Context struct {
	UserID       string         `json:"user_id"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Kind         PermissionKind `json:"kind"`
	Timestamp    time.Time      `json:"timestamp"`
	Attributes   map[string]any `json:"attributes,omitempty"`
}

// Result is the engine's answer to one request. It is never persisted by
// the engine itself.
type Result struct {
	Allowed         bool          `json:"allowed"`
	Decision        Decision      `json:"decision"`
	Reason          string        `json:"reason"`
	MatchedPolicies []string      `json:"matched_policies,omitempty"`
	Duration        time.Duration `json:"duration"`
}

// UserStatus is the account liveness answer from the user directory.
type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserInactive UserStatus = "inactive"
	UserUnknown  UserStatus = "unknown"
)
