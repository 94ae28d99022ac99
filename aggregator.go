package permit

import (
	"context"
	"errors"
	"time"
)

// ============================================================================
// EFFECTIVE PERMISSION AGGREGATION
// ============================================================================

// aggregation is the memoized product of resolving everything a user can
// do: the live role set (assignments plus group-held roles, expanded
// through role ancestry) and the deduplicated permission union.
// conditioned marks an aggregation shaped by attribute-gated assignments;
// such a result holds only for the request it was built from.
type aggregation struct {
	RoleIDs     []string
	Permissions []*Permission
	conditioned bool
}

// maxRoleDepth bounds ancestor traversal. Cycles are rejected at write
// time; the bound guards against hierarchies corrupted outside the engine.
const maxRoleDepth = 32

// effectivePermissions resolves the full permission set for a user:
// direct assignments, live role assignments expanded through role
// ancestry, and group-held permissions and roles through group hierarchy.
// An unknown user yields an empty aggregation, never an error; the
// orchestrator then falls through to its default deny.
func (e *Engine) effectivePermissions(ctx context.Context, userID string, now time.Time, attrs map[string]any) (*aggregation, error) {
	agg := &aggregation{}
	seen := make(map[string]bool)   // permission dedup keys
	roleSet := make(map[string]bool)

	addPerm := func(p *Permission) {
		if p == nil {
			return
		}
		key := p.DedupKey()
		if seen[key] {
			return
		}
		seen[key] = true
		agg.Permissions = append(agg.Permissions, p)
	}

	// Direct user-permission links.
	direct, err := e.st.Permissions.ListForUser(ctx, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	for _, p := range direct {
		addPerm(p)
	}

	// Live role assignments. An assignment counts only when active, inside
	// its validity window and with its conditions satisfied by this
	// request's attributes.
	assignments, err := e.st.Assignments.ListForUser(ctx, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	pendingRoles := make([]string, 0, len(assignments))
	for _, a := range assignments {
		if !a.LiveAt(now) {
			continue
		}
		if len(a.Conditions) > 0 {
			agg.conditioned = true
			if !matchConditions(a.Conditions, attrs, LogicAnd) {
				continue
			}
		}
		pendingRoles = append(pendingRoles, a.RoleID)
	}

	// Group membership, transitively through parent groups. Groups hold
	// both permissions and roles of their own.
	if e.st.Groups != nil {
		groups, err := e.st.Groups.GroupsForUser(ctx, userID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		var groupPermIDs []string
		for _, g := range groups {
			groupPermIDs = append(groupPermIDs, g.PermissionIDs...)
			pendingRoles = append(pendingRoles, g.RoleIDs...)
		}
		if len(groupPermIDs) > 0 {
			perms, err := e.st.Permissions.GetBatch(ctx, groupPermIDs)
			if err != nil {
				return nil, err
			}
			for _, p := range perms {
				addPerm(p)
			}
		}
	}

	// Expand roles through ancestry and collect their permissions.
	var rolePermIDs []string
	for _, roleID := range pendingRoles {
		if roleSet[roleID] {
			continue
		}
		role, err := e.st.Roles.GetRole(ctx, roleID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		if !role.Active {
			continue
		}
		roleSet[roleID] = true
		rolePermIDs = append(rolePermIDs, role.PermissionIDs...)

		ancestors, err := e.st.Roles.Ancestors(ctx, roleID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		depth := 0
		for _, anc := range ancestors {
			depth++
			if depth > maxRoleDepth {
				e.logger.Error("role ancestry exceeds depth bound", "role", roleID, "depth", depth)
				break
			}
			if !anc.Active || roleSet[anc.ID] {
				continue
			}
			roleSet[anc.ID] = true
			rolePermIDs = append(rolePermIDs, anc.PermissionIDs...)
		}
	}
	if len(rolePermIDs) > 0 {
		perms, err := e.st.Permissions.GetBatch(ctx, rolePermIDs)
		if err != nil {
			return nil, err
		}
		for _, p := range perms {
			addPerm(p)
		}
	}

	agg.RoleIDs = make([]string, 0, len(roleSet))
	for id := range roleSet {
		agg.RoleIDs = append(agg.RoleIDs, id)
	}
	return agg, nil
}

// aggregationFor returns the cached aggregation for a user, computing and
// memoizing it on a miss. The aggregation TTL is longer than the decision
// TTL because one aggregation serves many distinct permission checks.
// Aggregations shaped by assignment conditions depend on the request's
// attributes, which the key does not carry, so those are never memoized.
func (e *Engine) aggregationFor(ctx context.Context, rc *Context, globalEpoch, userEpoch uint64) (*aggregation, error) {
	key := aggregationKey(globalEpoch, userEpoch, rc.UserID)
	if v, ok := e.cache.Get(key); ok {
		if agg, ok := v.(*aggregation); ok {
			return agg, nil
		}
	}
	agg, err := e.effectivePermissions(ctx, rc.UserID, rc.Timestamp, rc.Attributes)
	if err != nil {
		return nil, err
	}
	if !agg.conditioned {
		e.cache.Set(key, agg, e.aggregationTTL)
	}
	return agg, nil
}
