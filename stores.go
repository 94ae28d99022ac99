package permit

import (
	"context"
)

// ============================================================================
// STORAGE INTERFACES
// ============================================================================
//
// The engine owns no persistence. Each collaborator below is a simple
// CRUD-shaped contract; implementations live in the stores subpackage
// (memory, SQL via squealx, Redis).

// RoleStore manages role persistence and hierarchy traversal.
type RoleStore interface {
	CreateRole(ctx context.Context, r *Role) error
	GetRole(ctx context.Context, id string) (*Role, error)
	GetRoleByName(ctx context.Context, name string) (*Role, error)
	ListRoles(ctx context.Context) ([]*Role, error)
	UpdateRole(ctx context.Context, r *Role) error
	DeleteRole(ctx context.Context, id string) error
	// Ancestors returns the parent chain of a role, nearest first.
	// Implementations bound the walk depth so a corrupted hierarchy
	// cannot loop forever.
	Ancestors(ctx context.Context, roleID string) ([]*Role, error)
}

// PermissionStore manages permission persistence and direct user grants.
type PermissionStore interface {
	CreatePermission(ctx context.Context, p *Permission) error
	GetPermission(ctx context.Context, id string) (*Permission, error)
	ListPermissions(ctx context.Context) ([]*Permission, error)
	UpdatePermission(ctx context.Context, p *Permission) error
	DeletePermission(ctx context.Context, id string) error
	GetBatch(ctx context.Context, ids []string) ([]*Permission, error)
	// Direct user-to-permission links, independent of any role.
	AssignToUser(ctx context.Context, userID, permissionID string) error
	RevokeFromUser(ctx context.Context, userID, permissionID string) error
	ListForUser(ctx context.Context, userID string) ([]*Permission, error)
}

// PolicyStore manages authorization policies.
type PolicyStore interface {
	CreatePolicy(ctx context.Context, p *Policy) error
	GetPolicy(ctx context.Context, id string) (*Policy, error)
	ListPolicies(ctx context.Context) ([]*Policy, error)
	UpdatePolicy(ctx context.Context, p *Policy) error
	DeletePolicy(ctx context.Context, id string) error
	// ListApplicable returns policies whose filters match the resource.
	ListApplicable(ctx context.Context, resourceType, resourceID string) ([]*Policy, error)
}

// GroupStore manages groups and transitive membership resolution.
type GroupStore interface {
	CreateGroup(ctx context.Context, g *Group) error
	// GroupsForUser returns every group the user belongs to, including
	// ancestors of directly-joined groups.
	GroupsForUser(ctx context.Context, userID string) ([]*Group, error)
}

// ResourceStore manages resource ownership records and their grants.
type ResourceStore interface {
	CreateOwnership(ctx context.Context, o *ResourceOwnership) error
	// GrantsFor returns the ownership record for a resource instance, or
	// a wrapped ErrNotFound when none exists.
	GrantsFor(ctx context.Context, resourceType, resourceID string) (*ResourceOwnership, error)
}

// AssignmentStore manages user-role assignments.
type AssignmentStore interface {
	Assign(ctx context.Context, a *RoleAssignment) error
	Revoke(ctx context.Context, userID, roleID string) error
	ListForUser(ctx context.Context, userID string) ([]*RoleAssignment, error)
	ListForRole(ctx context.Context, roleID string) ([]*RoleAssignment, error)
}

// DynamicPermissionStore manages runtime-evaluated permissions.
type DynamicPermissionStore interface {
	CreateDynamicPermission(ctx context.Context, d *DynamicPermission) error
	ListDynamicPermissions(ctx context.Context) ([]*DynamicPermission, error)
	UpdateDynamicPermission(ctx context.Context, d *DynamicPermission) error
	DeleteDynamicPermission(ctx context.Context, id string) error
	// ListMatching returns dynamic permissions bound to the kind and
	// resource type.
	ListMatching(ctx context.Context, kind PermissionKind, resourceType string) ([]*DynamicPermission, error)
}

// UserDirectory resolves a user id to an account liveness status. It is
// externally owned; a missing user resolves to UserUnknown, not an error.
type UserDirectory interface {
	Status(ctx context.Context, userID string) (UserStatus, error)
}

// Stores bundles every collaborator the engine consumes.
type Stores struct {
	Roles       RoleStore
	Permissions PermissionStore
	Policies    PolicyStore
	Groups      GroupStore
	Resources   ResourceStore
	Assignments AssignmentStore
	Dynamic     DynamicPermissionStore
	Users       UserDirectory
}
