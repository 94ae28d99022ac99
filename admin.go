package permit

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ============================================================================
// MANAGEMENT OPERATIONS
// ============================================================================
//
// Every mutation bumps an epoch counter before returning, so cached
// decisions computed under the old state are unreachable the moment the
// administrative call succeeds. Role, policy, group, resource and dynamic
// permission changes can affect many users and bump the global epoch;
// per-user changes bump only that user's epoch.

// CreateRole stores a new role. An empty ID is filled with a UUID. When a
// parent is set, the role's level becomes parent level + 1 and the parent
// gains a child reference.
func (e *Engine) CreateRole(ctx context.Context, role *Role) error {
	if role == nil || role.Name == "" {
		return fmt.Errorf("%w: role name is required", ErrInvalid)
	}
	if role.ID == "" {
		role.ID = uuid.NewString()
	}
	if role.CreatedAt.IsZero() {
		role.CreatedAt = e.clock()
	}
	var parent *Role
	if role.ParentID != "" {
		if err := e.checkRoleCycle(ctx, role.ID, role.ParentID); err != nil {
			return err
		}
		p, err := e.st.Roles.GetRole(ctx, role.ParentID)
		if err != nil {
			return fmt.Errorf("parent role %s: %w", role.ParentID, err)
		}
		role.Level = p.Level + 1
		parent = p
	}
	if err := e.st.Roles.CreateRole(ctx, role); err != nil {
		return err
	}
	// Link the parent only after the role exists, so a failed create
	// cannot leave a dangling child reference behind.
	if parent != nil {
		parent.ChildIDs = appendUnique(parent.ChildIDs, role.ID)
		if err := e.st.Roles.UpdateRole(ctx, parent); err != nil {
			return err
		}
	}
	e.logger.Info("role created", "role", role.ID, "name", role.Name)
	return e.epochs.BumpGlobal(ctx)
}

// UpdateRole rewrites a role. Reparenting is validated against cycles
// before the store is touched.
func (e *Engine) UpdateRole(ctx context.Context, role *Role) error {
	if role == nil || role.ID == "" {
		return fmt.Errorf("%w: role id is required", ErrInvalid)
	}
	if role.ParentID != "" {
		if err := e.checkRoleCycle(ctx, role.ID, role.ParentID); err != nil {
			return err
		}
		parent, err := e.st.Roles.GetRole(ctx, role.ParentID)
		if err != nil {
			return fmt.Errorf("parent role %s: %w", role.ParentID, err)
		}
		role.Level = parent.Level + 1
	}
	if err := e.st.Roles.UpdateRole(ctx, role); err != nil {
		return err
	}
	return e.epochs.BumpGlobal(ctx)
}

// DeleteRole removes a role. Deletion is rejected with ErrRoleInUse while
// the role has active children or active assignments; callers must detach
// those explicitly first.
func (e *Engine) DeleteRole(ctx context.Context, roleID string) error {
	role, err := e.st.Roles.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	for _, childID := range role.ChildIDs {
		child, err := e.st.Roles.GetRole(ctx, childID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return err
		}
		if child.Active {
			return fmt.Errorf("%w: role %s has active child %s", ErrRoleInUse, roleID, childID)
		}
	}
	assignments, err := e.st.Assignments.ListForRole(ctx, roleID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	now := e.clock()
	for _, a := range assignments {
		if a.LiveAt(now) {
			return fmt.Errorf("%w: role %s is assigned to user %s", ErrRoleInUse, roleID, a.UserID)
		}
	}
	if err := e.st.Roles.DeleteRole(ctx, roleID); err != nil {
		return err
	}
	e.logger.Info("role deleted", "role", roleID)
	return e.epochs.BumpGlobal(ctx)
}

// checkRoleCycle walks the ancestor chain from the proposed parent and
// rejects the link if it ever reaches the role itself.
func (e *Engine) checkRoleCycle(ctx context.Context, roleID, parentID string) error {
	cur := parentID
	for depth := 0; cur != ""; depth++ {
		if depth > maxRoleDepth {
			return fmt.Errorf("%w: ancestor chain of %s exceeds depth %d", ErrRoleCycle, parentID, maxRoleDepth)
		}
		if cur == roleID {
			return fmt.Errorf("%w: %s cannot be its own ancestor", ErrRoleCycle, roleID)
		}
		anc, err := e.st.Roles.GetRole(ctx, cur)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		}
		cur = anc.ParentID
	}
	return nil
}

// AssignRole links a user to a role, optionally within a validity window.
func (e *Engine) AssignRole(ctx context.Context, a *RoleAssignment) error {
	if a == nil || a.UserID == "" || a.RoleID == "" {
		return fmt.Errorf("%w: user id and role id are required", ErrInvalid)
	}
	if _, err := e.st.Roles.GetRole(ctx, a.RoleID); err != nil {
		return fmt.Errorf("role %s: %w", a.RoleID, err)
	}
	if err := e.st.Assignments.Assign(ctx, a); err != nil {
		return err
	}
	e.logger.Debug("role assigned", "user", a.UserID, "role", a.RoleID)
	return e.epochs.BumpUser(ctx, a.UserID)
}

// RevokeRole removes a user's assignment to a role.
func (e *Engine) RevokeRole(ctx context.Context, userID, roleID string) error {
	if err := e.st.Assignments.Revoke(ctx, userID, roleID); err != nil {
		return err
	}
	e.logger.Debug("role revoked", "user", userID, "role", roleID)
	return e.epochs.BumpUser(ctx, userID)
}

// CreatePermission stores a permission, filling an empty ID.
func (e *Engine) CreatePermission(ctx context.Context, p *Permission) error {
	if p == nil || p.Name == "" || p.Kind == "" {
		return fmt.Errorf("%w: permission name and kind are required", ErrInvalid)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := e.st.Permissions.CreatePermission(ctx, p); err != nil {
		return err
	}
	return e.epochs.BumpGlobal(ctx)
}

// UpdatePermission rewrites a permission.
func (e *Engine) UpdatePermission(ctx context.Context, p *Permission) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("%w: permission id is required", ErrInvalid)
	}
	if err := e.st.Permissions.UpdatePermission(ctx, p); err != nil {
		return err
	}
	return e.epochs.BumpGlobal(ctx)
}

// DeletePermission removes a permission.
func (e *Engine) DeletePermission(ctx context.Context, id string) error {
	if err := e.st.Permissions.DeletePermission(ctx, id); err != nil {
		return err
	}
	return e.epochs.BumpGlobal(ctx)
}

// GrantPermissionToUser links a permission directly to a user, bypassing
// roles.
func (e *Engine) GrantPermissionToUser(ctx context.Context, userID, permissionID string) error {
	if userID == "" || permissionID == "" {
		return fmt.Errorf("%w: user id and permission id are required", ErrInvalid)
	}
	if err := e.st.Permissions.AssignToUser(ctx, userID, permissionID); err != nil {
		return err
	}
	return e.epochs.BumpUser(ctx, userID)
}

// RevokePermissionFromUser removes a direct user-permission link.
func (e *Engine) RevokePermissionFromUser(ctx context.Context, userID, permissionID string) error {
	if err := e.st.Permissions.RevokeFromUser(ctx, userID, permissionID); err != nil {
		return err
	}
	return e.epochs.BumpUser(ctx, userID)
}

// CreatePolicy stores an attribute policy.
func (e *Engine) CreatePolicy(ctx context.Context, p *Policy) error {
	if p == nil || p.Name == "" {
		return fmt.Errorf("%w: policy name is required", ErrInvalid)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := e.clock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if err := e.st.Policies.CreatePolicy(ctx, p); err != nil {
		return err
	}
	e.logger.Info("policy created", "policy", p.ID, "name", p.Name, "priority", p.Priority)
	return e.epochs.BumpGlobal(ctx)
}

// UpdatePolicy rewrites a policy.
func (e *Engine) UpdatePolicy(ctx context.Context, p *Policy) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("%w: policy id is required", ErrInvalid)
	}
	p.UpdatedAt = e.clock()
	if err := e.st.Policies.UpdatePolicy(ctx, p); err != nil {
		return err
	}
	return e.epochs.BumpGlobal(ctx)
}

// DeletePolicy removes a policy.
func (e *Engine) DeletePolicy(ctx context.Context, id string) error {
	if err := e.st.Policies.DeletePolicy(ctx, id); err != nil {
		return err
	}
	return e.epochs.BumpGlobal(ctx)
}

// CreateGroup stores a group.
func (e *Engine) CreateGroup(ctx context.Context, g *Group) error {
	if e.st.Groups == nil {
		return fmt.Errorf("%w: no group store configured", ErrInvalid)
	}
	if g == nil || g.Name == "" {
		return fmt.Errorf("%w: group name is required", ErrInvalid)
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if err := e.st.Groups.CreateGroup(ctx, g); err != nil {
		return err
	}
	return e.epochs.BumpGlobal(ctx)
}

// CreateOwnership records who owns a resource instance together with its
// initial grants.
func (e *Engine) CreateOwnership(ctx context.Context, own *ResourceOwnership) error {
	if e.st.Resources == nil {
		return fmt.Errorf("%w: no resource store configured", ErrInvalid)
	}
	if own == nil || own.ResourceType == "" || own.ResourceID == "" {
		return fmt.Errorf("%w: resource type and id are required", ErrInvalid)
	}
	if own.CreatedAt.IsZero() {
		own.CreatedAt = e.clock()
	}
	if err := e.st.Resources.CreateOwnership(ctx, own); err != nil {
		return err
	}
	e.logger.Info("ownership recorded", "resource_type", own.ResourceType, "resource", own.ResourceID, "owner", own.OwnerID)
	return e.epochs.BumpGlobal(ctx)
}

// GrantOnResource appends a grant to an existing ownership record, or
// creates the record if the resource has none yet.
func (e *Engine) GrantOnResource(ctx context.Context, resourceType, resourceID string, g ResourceGrant) error {
	if e.st.Resources == nil {
		return fmt.Errorf("%w: no resource store configured", ErrInvalid)
	}
	if g.UserID == "" && g.RoleID == "" {
		return fmt.Errorf("%w: grant must target a user or a role", ErrInvalid)
	}
	if len(g.Kinds) == 0 {
		return fmt.Errorf("%w: grant carries no permission kinds", ErrInvalid)
	}
	own, err := e.st.Resources.GrantsFor(ctx, resourceType, resourceID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if own == nil {
		own = &ResourceOwnership{
			ResourceType: resourceType,
			ResourceID:   resourceID,
			CreatedAt:    e.clock(),
		}
	}
	own.Grants = append(own.Grants, g)
	if err := e.st.Resources.CreateOwnership(ctx, own); err != nil {
		return err
	}
	if g.UserID != "" {
		return e.epochs.BumpUser(ctx, g.UserID)
	}
	return e.epochs.BumpGlobal(ctx)
}

// CreateDynamicPermission stores an expression-backed permission.
func (e *Engine) CreateDynamicPermission(ctx context.Context, d *DynamicPermission) error {
	if e.st.Dynamic == nil {
		return fmt.Errorf("%w: no dynamic permission store configured", ErrInvalid)
	}
	if d == nil || d.Name == "" || d.Expression == "" {
		return fmt.Errorf("%w: dynamic permission name and expression are required", ErrInvalid)
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	// Reject expressions that do not compile instead of letting them fail
	// silently on every request.
	if v, ok := e.evaluator.(ExpressionValidator); ok {
		if err := v.Validate(d.Expression); err != nil {
			return fmt.Errorf("%w: expression does not compile: %v", ErrInvalid, err)
		}
	}
	if err := e.st.Dynamic.CreateDynamicPermission(ctx, d); err != nil {
		return err
	}
	return e.epochs.BumpGlobal(ctx)
}

// UpdateDynamicPermission rewrites an expression-backed permission.
func (e *Engine) UpdateDynamicPermission(ctx context.Context, d *DynamicPermission) error {
	if e.st.Dynamic == nil {
		return fmt.Errorf("%w: no dynamic permission store configured", ErrInvalid)
	}
	if d == nil || d.ID == "" {
		return fmt.Errorf("%w: dynamic permission id is required", ErrInvalid)
	}
	if err := e.st.Dynamic.UpdateDynamicPermission(ctx, d); err != nil {
		return err
	}
	return e.epochs.BumpGlobal(ctx)
}

// DeleteDynamicPermission removes an expression-backed permission.
func (e *Engine) DeleteDynamicPermission(ctx context.Context, id string) error {
	if e.st.Dynamic == nil {
		return fmt.Errorf("%w: no dynamic permission store configured", ErrInvalid)
	}
	if err := e.st.Dynamic.DeleteDynamicPermission(ctx, id); err != nil {
		return err
	}
	return e.epochs.BumpGlobal(ctx)
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

// InvalidateUser drops every cached decision for one user immediately.
func (e *Engine) InvalidateUser(ctx context.Context, userID string) error {
	return e.epochs.BumpUser(ctx, userID)
}

// InvalidateAll drops every cached decision engine-wide.
func (e *Engine) InvalidateAll(ctx context.Context) error {
	return e.epochs.BumpGlobal(ctx)
}
