package permit

import "time"

// Builders provide a fluent API for creating Roles, Permissions, Policies
// and resource grants

// RoleBuilder builds a Role
type RoleBuilder struct {
	r *Role
}

func NewRoleBuilder() *RoleBuilder {
	return &RoleBuilder{r: &Role{Active: true, PermissionIDs: []string{}}}
}

func (b *RoleBuilder) ID(id string) *RoleBuilder       { b.r.ID = id; return b }
func (b *RoleBuilder) Name(n string) *RoleBuilder      { b.r.Name = n; return b }
func (b *RoleBuilder) Parent(id string) *RoleBuilder   { b.r.ParentID = id; return b }
func (b *RoleBuilder) Active(a bool) *RoleBuilder      { b.r.Active = a; return b }
func (b *RoleBuilder) Permissions(ids ...string) *RoleBuilder {
	b.r.PermissionIDs = append(b.r.PermissionIDs, ids...)
	return b
}
func (b *RoleBuilder) Build() *Role { return b.r }

// PermissionBuilder builds a Permission
type PermissionBuilder struct {
	p *Permission
}

func NewPermissionBuilder() *PermissionBuilder {
	return &PermissionBuilder{p: &Permission{Scope: ScopeAll}}
}

func (b *PermissionBuilder) ID(id string) *PermissionBuilder            { b.p.ID = id; return b }
func (b *PermissionBuilder) Name(n string) *PermissionBuilder           { b.p.Name = n; return b }
func (b *PermissionBuilder) Kind(k PermissionKind) *PermissionBuilder   { b.p.Kind = k; return b }
func (b *PermissionBuilder) ResourceType(t string) *PermissionBuilder   { b.p.ResourceType = t; return b }
func (b *PermissionBuilder) ResourceID(id string) *PermissionBuilder    { b.p.ResourceID = id; return b }
func (b *PermissionBuilder) Scope(s string) *PermissionBuilder          { b.p.Scope = s; return b }
func (b *PermissionBuilder) Condition(c Condition) *PermissionBuilder {
	b.p.Conditions = append(b.p.Conditions, c)
	return b
}
func (b *PermissionBuilder) Build() *Permission { return b.p }

// PolicyBuilder builds a Policy
type PolicyBuilder struct {
	p *Policy
}

func NewPolicyBuilder() *PolicyBuilder {
	return &PolicyBuilder{p: &Policy{Active: true, CombineLogic: LogicOr}}
}

func (b *PolicyBuilder) ID(id string) *PolicyBuilder       { b.p.ID = id; return b }
func (b *PolicyBuilder) Name(n string) *PolicyBuilder      { b.p.Name = n; return b }
func (b *PolicyBuilder) Priority(p int) *PolicyBuilder     { b.p.Priority = p; return b }
func (b *PolicyBuilder) Logic(l RuleLogic) *PolicyBuilder  { b.p.CombineLogic = l; return b }
func (b *PolicyBuilder) Active(a bool) *PolicyBuilder      { b.p.Active = a; return b }
func (b *PolicyBuilder) ResourceTypes(types ...string) *PolicyBuilder {
	b.p.ResourceTypes = append(b.p.ResourceTypes, types...)
	return b
}
func (b *PolicyBuilder) ResourceIDs(ids ...string) *PolicyBuilder {
	b.p.ResourceIDs = append(b.p.ResourceIDs, ids...)
	return b
}
func (b *PolicyBuilder) Rule(r PolicyRule) *PolicyBuilder {
	r.Order = len(b.p.Rules)
	b.p.Rules = append(b.p.Rules, r)
	return b
}
func (b *PolicyBuilder) Build() *Policy { return b.p }

// RuleBuilder builds a PolicyRule
type RuleBuilder struct {
	r *PolicyRule
}

func NewRuleBuilder(decision Decision) *RuleBuilder {
	return &RuleBuilder{r: &PolicyRule{Decision: decision, ConditionLogic: LogicAnd}}
}

func (b *RuleBuilder) ID(id string) *RuleBuilder      { b.r.ID = id; return b }
func (b *RuleBuilder) Name(n string) *RuleBuilder     { b.r.Name = n; return b }
func (b *RuleBuilder) Logic(l RuleLogic) *RuleBuilder { b.r.ConditionLogic = l; return b }
func (b *RuleBuilder) Condition(c Condition) *RuleBuilder {
	b.r.Conditions = append(b.r.Conditions, c)
	return b
}
func (b *RuleBuilder) RequireRoles(ids ...string) *RuleBuilder {
	b.r.RequiredRoles = append(b.r.RequiredRoles, ids...)
	return b
}
func (b *RuleBuilder) ExcludeRoles(ids ...string) *RuleBuilder {
	b.r.ExcludedRoles = append(b.r.ExcludedRoles, ids...)
	return b
}
func (b *RuleBuilder) Build() PolicyRule { return *b.r }

// GrantBuilder builds a ResourceGrant
type GrantBuilder struct {
	g *ResourceGrant
}

func NewGrantBuilder() *GrantBuilder {
	return &GrantBuilder{g: &ResourceGrant{Active: true}}
}

func (b *GrantBuilder) User(id string) *GrantBuilder { b.g.UserID = id; return b }
func (b *GrantBuilder) Role(id string) *GrantBuilder { b.g.RoleID = id; return b }
func (b *GrantBuilder) Kinds(ks ...PermissionKind) *GrantBuilder {
	b.g.Kinds = append(b.g.Kinds, ks...)
	return b
}
func (b *GrantBuilder) Window(from, until time.Time) *GrantBuilder {
	b.g.ValidFrom = from
	b.g.ValidUntil = until
	return b
}
func (b *GrantBuilder) Until(t time.Time) *GrantBuilder { b.g.ValidUntil = t; return b }
func (b *GrantBuilder) Active(a bool) *GrantBuilder     { b.g.Active = a; return b }
func (b *GrantBuilder) Build() ResourceGrant            { return *b.g }
