package stores

import (
	"context"
	"fmt"
	"sync"

	"github.com/permithq/permit"
)

// In-memory stores for testing and single-process deployments. All are
// safe for concurrent use and return clones so callers cannot mutate
// shared state.

const maxTraversalDepth = 64

// NewMemoryStores builds a complete in-memory store bundle.
func NewMemoryStores() permit.Stores {
	return permit.Stores{
		Roles:       NewMemoryRoleStore(),
		Permissions: NewMemoryPermissionStore(),
		Policies:    NewMemoryPolicyStore(),
		Groups:      NewMemoryGroupStore(),
		Resources:   NewMemoryResourceStore(),
		Assignments: NewMemoryAssignmentStore(),
		Dynamic:     NewMemoryDynamicStore(),
		Users:       NewMemoryUserDirectory(),
	}
}

// MemoryRoleStore implements role persistence in-memory
type MemoryRoleStore struct {
	mu    sync.RWMutex
	roles map[string]*permit.Role
}

func NewMemoryRoleStore() *MemoryRoleStore {
	return &MemoryRoleStore{roles: make(map[string]*permit.Role)}
}

func (s *MemoryRoleStore) CreateRole(ctx context.Context, r *permit.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.roles[r.ID]; exists {
		return fmt.Errorf("%w: role %s already exists", permit.ErrInvalid, r.ID)
	}
	s.roles[r.ID] = cloneRole(r)
	return nil
}

func (s *MemoryRoleStore) GetRole(ctx context.Context, id string) (*permit.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[id]
	if !ok {
		return nil, fmt.Errorf("%w: role %s", permit.ErrNotFound, id)
	}
	return cloneRole(r), nil
}

func (s *MemoryRoleStore) GetRoleByName(ctx context.Context, name string) (*permit.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.roles {
		if r.Name == name {
			return cloneRole(r), nil
		}
	}
	return nil, fmt.Errorf("%w: role named %q", permit.ErrNotFound, name)
}

func (s *MemoryRoleStore) ListRoles(ctx context.Context) ([]*permit.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*permit.Role, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, cloneRole(r))
	}
	return out, nil
}

func (s *MemoryRoleStore) UpdateRole(ctx context.Context, r *permit.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[r.ID]; !ok {
		return fmt.Errorf("%w: role %s", permit.ErrNotFound, r.ID)
	}
	s.roles[r.ID] = cloneRole(r)
	return nil
}

func (s *MemoryRoleStore) DeleteRole(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[id]; !ok {
		return fmt.Errorf("%w: role %s", permit.ErrNotFound, id)
	}
	delete(s.roles, id)
	return nil
}

// Ancestors walks parent references from the role upward. The walk is
// depth-bounded and tolerates a cycle by stopping at a revisited node.
func (s *MemoryRoleStore) Ancestors(ctx context.Context, roleID string) ([]*permit.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start, ok := s.roles[roleID]
	if !ok {
		return nil, fmt.Errorf("%w: role %s", permit.ErrNotFound, roleID)
	}
	var out []*permit.Role
	visited := map[string]bool{roleID: true}
	cur := start.ParentID
	for depth := 0; cur != "" && depth < maxTraversalDepth; depth++ {
		if visited[cur] {
			break
		}
		visited[cur] = true
		parent, ok := s.roles[cur]
		if !ok {
			break
		}
		out = append(out, cloneRole(parent))
		cur = parent.ParentID
	}
	return out, nil
}

// MemoryPermissionStore implements permission persistence in-memory
type MemoryPermissionStore struct {
	mu          sync.RWMutex
	permissions map[string]*permit.Permission
	userLinks   map[string]map[string]bool // userID -> permissionID set
}

func NewMemoryPermissionStore() *MemoryPermissionStore {
	return &MemoryPermissionStore{
		permissions: make(map[string]*permit.Permission),
		userLinks:   make(map[string]map[string]bool),
	}
}

func (s *MemoryPermissionStore) CreatePermission(ctx context.Context, p *permit.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.permissions[p.ID]; exists {
		return fmt.Errorf("%w: permission %s already exists", permit.ErrInvalid, p.ID)
	}
	s.permissions[p.ID] = clonePermission(p)
	return nil
}

func (s *MemoryPermissionStore) GetPermission(ctx context.Context, id string) (*permit.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.permissions[id]
	if !ok {
		return nil, fmt.Errorf("%w: permission %s", permit.ErrNotFound, id)
	}
	return clonePermission(p), nil
}

func (s *MemoryPermissionStore) ListPermissions(ctx context.Context) ([]*permit.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*permit.Permission, 0, len(s.permissions))
	for _, p := range s.permissions {
		out = append(out, clonePermission(p))
	}
	return out, nil
}

func (s *MemoryPermissionStore) UpdatePermission(ctx context.Context, p *permit.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.permissions[p.ID]; !ok {
		return fmt.Errorf("%w: permission %s", permit.ErrNotFound, p.ID)
	}
	s.permissions[p.ID] = clonePermission(p)
	return nil
}

func (s *MemoryPermissionStore) DeletePermission(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.permissions[id]; !ok {
		return fmt.Errorf("%w: permission %s", permit.ErrNotFound, id)
	}
	delete(s.permissions, id)
	for _, links := range s.userLinks {
		delete(links, id)
	}
	return nil
}

func (s *MemoryPermissionStore) GetBatch(ctx context.Context, ids []string) ([]*permit.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*permit.Permission, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.permissions[id]; ok {
			out = append(out, clonePermission(p))
		}
	}
	return out, nil
}

func (s *MemoryPermissionStore) AssignToUser(ctx context.Context, userID, permissionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.permissions[permissionID]; !ok {
		return fmt.Errorf("%w: permission %s", permit.ErrNotFound, permissionID)
	}
	links, ok := s.userLinks[userID]
	if !ok {
		links = make(map[string]bool)
		s.userLinks[userID] = links
	}
	links[permissionID] = true
	return nil
}

func (s *MemoryPermissionStore) RevokeFromUser(ctx context.Context, userID, permissionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.userLinks[userID], permissionID)
	return nil
}

func (s *MemoryPermissionStore) ListForUser(ctx context.Context, userID string) ([]*permit.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*permit.Permission, 0)
	for id := range s.userLinks[userID] {
		if p, ok := s.permissions[id]; ok {
			out = append(out, clonePermission(p))
		}
	}
	return out, nil
}

// MemoryPolicyStore implements policy persistence in-memory
type MemoryPolicyStore struct {
	mu       sync.RWMutex
	policies map[string]*permit.Policy
}

func NewMemoryPolicyStore() *MemoryPolicyStore {
	return &MemoryPolicyStore{policies: make(map[string]*permit.Policy)}
}

func (s *MemoryPolicyStore) CreatePolicy(ctx context.Context, p *permit.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.policies[p.ID]; exists {
		return fmt.Errorf("%w: policy %s already exists", permit.ErrInvalid, p.ID)
	}
	s.policies[p.ID] = clonePolicy(p)
	return nil
}

func (s *MemoryPolicyStore) GetPolicy(ctx context.Context, id string) (*permit.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[id]
	if !ok {
		return nil, fmt.Errorf("%w: policy %s", permit.ErrNotFound, id)
	}
	return clonePolicy(p), nil
}

func (s *MemoryPolicyStore) ListPolicies(ctx context.Context) ([]*permit.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*permit.Policy, 0, len(s.policies))
	for _, p := range s.policies {
		out = append(out, clonePolicy(p))
	}
	return out, nil
}

func (s *MemoryPolicyStore) UpdatePolicy(ctx context.Context, p *permit.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[p.ID]; !ok {
		return fmt.Errorf("%w: policy %s", permit.ErrNotFound, p.ID)
	}
	s.policies[p.ID] = clonePolicy(p)
	return nil
}

func (s *MemoryPolicyStore) DeletePolicy(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[id]; !ok {
		return fmt.Errorf("%w: policy %s", permit.ErrNotFound, id)
	}
	delete(s.policies, id)
	return nil
}

func (s *MemoryPolicyStore) ListApplicable(ctx context.Context, resourceType, resourceID string) ([]*permit.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*permit.Policy, 0)
	for _, p := range s.policies {
		if p.AppliesTo(resourceType, resourceID) {
			out = append(out, clonePolicy(p))
		}
	}
	return out, nil
}

// MemoryGroupStore implements group persistence in-memory
type MemoryGroupStore struct {
	mu     sync.RWMutex
	groups map[string]*permit.Group
}

func NewMemoryGroupStore() *MemoryGroupStore {
	return &MemoryGroupStore{groups: make(map[string]*permit.Group)}
}

func (s *MemoryGroupStore) CreateGroup(ctx context.Context, g *permit.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *g
	dup.MemberIDs = append([]string(nil), g.MemberIDs...)
	dup.PermissionIDs = append([]string(nil), g.PermissionIDs...)
	dup.RoleIDs = append([]string(nil), g.RoleIDs...)
	s.groups[g.ID] = &dup
	return nil
}

// GroupsForUser returns every group the user belongs to, plus all parent
// groups reachable from those, so group-held permissions and roles flow
// down the hierarchy.
func (s *MemoryGroupStore) GroupsForUser(ctx context.Context, userID string) ([]*permit.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	var out []*permit.Group
	var add func(id string, depth int)
	add = func(id string, depth int) {
		if seen[id] || depth > maxTraversalDepth {
			return
		}
		g, ok := s.groups[id]
		if !ok {
			return
		}
		seen[id] = true
		dup := *g
		out = append(out, &dup)
		if g.ParentID != "" {
			add(g.ParentID, depth+1)
		}
	}
	for id, g := range s.groups {
		for _, member := range g.MemberIDs {
			if member == userID {
				add(id, 0)
				break
			}
		}
	}
	return out, nil
}

// MemoryResourceStore implements resource ownership persistence in-memory
type MemoryResourceStore struct {
	mu         sync.RWMutex
	ownerships map[string]*permit.ResourceOwnership // key: type + "\x00" + id
}

func NewMemoryResourceStore() *MemoryResourceStore {
	return &MemoryResourceStore{ownerships: make(map[string]*permit.ResourceOwnership)}
}

func resourceKey(resourceType, resourceID string) string {
	return resourceType + "\x00" + resourceID
}

func (s *MemoryResourceStore) CreateOwnership(ctx context.Context, o *permit.ResourceOwnership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ownerships[resourceKey(o.ResourceType, o.ResourceID)] = cloneOwnership(o)
	return nil
}

func (s *MemoryResourceStore) GrantsFor(ctx context.Context, resourceType, resourceID string) (*permit.ResourceOwnership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.ownerships[resourceKey(resourceType, resourceID)]
	if !ok {
		return nil, fmt.Errorf("%w: resource %s/%s", permit.ErrNotFound, resourceType, resourceID)
	}
	return cloneOwnership(o), nil
}

// MemoryAssignmentStore implements user-role assignments in-memory
type MemoryAssignmentStore struct {
	mu     sync.RWMutex
	byUser map[string][]*permit.RoleAssignment
}

func NewMemoryAssignmentStore() *MemoryAssignmentStore {
	return &MemoryAssignmentStore{byUser: make(map[string][]*permit.RoleAssignment)}
}

func (s *MemoryAssignmentStore) Assign(ctx context.Context, a *permit.RoleAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.byUser[a.UserID]
	for i, existing := range list {
		if existing.RoleID == a.RoleID {
			list[i] = cloneAssignment(a)
			return nil
		}
	}
	s.byUser[a.UserID] = append(list, cloneAssignment(a))
	return nil
}

func (s *MemoryAssignmentStore) Revoke(ctx context.Context, userID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.byUser[userID]
	for i, a := range list {
		if a.RoleID == roleID {
			s.byUser[userID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: assignment of %s to %s", permit.ErrNotFound, roleID, userID)
}

func (s *MemoryAssignmentStore) ListForUser(ctx context.Context, userID string) ([]*permit.RoleAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.byUser[userID]
	out := make([]*permit.RoleAssignment, 0, len(list))
	for _, a := range list {
		out = append(out, cloneAssignment(a))
	}
	return out, nil
}

func (s *MemoryAssignmentStore) ListForRole(ctx context.Context, roleID string) ([]*permit.RoleAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*permit.RoleAssignment, 0)
	for _, list := range s.byUser {
		for _, a := range list {
			if a.RoleID == roleID {
				out = append(out, cloneAssignment(a))
			}
		}
	}
	return out, nil
}

// MemoryDynamicStore implements dynamic permission persistence in-memory
type MemoryDynamicStore struct {
	mu      sync.RWMutex
	entries map[string]*permit.DynamicPermission
}

func NewMemoryDynamicStore() *MemoryDynamicStore {
	return &MemoryDynamicStore{entries: make(map[string]*permit.DynamicPermission)}
}

func (s *MemoryDynamicStore) CreateDynamicPermission(ctx context.Context, d *permit.DynamicPermission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[d.ID]; exists {
		return fmt.Errorf("%w: dynamic permission %s already exists", permit.ErrInvalid, d.ID)
	}
	dup := *d
	s.entries[d.ID] = &dup
	return nil
}

func (s *MemoryDynamicStore) ListDynamicPermissions(ctx context.Context) ([]*permit.DynamicPermission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*permit.DynamicPermission, 0, len(s.entries))
	for _, d := range s.entries {
		dup := *d
		out = append(out, &dup)
	}
	return out, nil
}

func (s *MemoryDynamicStore) UpdateDynamicPermission(ctx context.Context, d *permit.DynamicPermission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[d.ID]; !ok {
		return fmt.Errorf("%w: dynamic permission %s", permit.ErrNotFound, d.ID)
	}
	dup := *d
	s.entries[d.ID] = &dup
	return nil
}

func (s *MemoryDynamicStore) DeleteDynamicPermission(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return fmt.Errorf("%w: dynamic permission %s", permit.ErrNotFound, id)
	}
	delete(s.entries, id)
	return nil
}

func (s *MemoryDynamicStore) ListMatching(ctx context.Context, kind permit.PermissionKind, resourceType string) ([]*permit.DynamicPermission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*permit.DynamicPermission, 0)
	for _, d := range s.entries {
		if d.Matches(kind, resourceType) {
			dup := *d
			out = append(out, &dup)
		}
	}
	return out, nil
}

// MemoryUserDirectory resolves user activity from an in-memory table
type MemoryUserDirectory struct {
	mu    sync.RWMutex
	users map[string]permit.UserStatus
}

func NewMemoryUserDirectory() *MemoryUserDirectory {
	return &MemoryUserDirectory{users: make(map[string]permit.UserStatus)}
}

func (s *MemoryUserDirectory) SetStatus(userID string, status permit.UserStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = status
}

func (s *MemoryUserDirectory) Status(ctx context.Context, userID string) (permit.UserStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.users[userID]
	if !ok {
		return permit.UserUnknown, nil
	}
	return status, nil
}
