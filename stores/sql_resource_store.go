package stores

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oarkflow/squealx"

	"github.com/permithq/permit"
)

// SQLResourceStore persists resource ownership records in SQL (squealx)
type SQLResourceStore struct {
	db *squealx.DB
}

func NewSQLResourceStore(db *squealx.DB) *SQLResourceStore {
	return &SQLResourceStore{db: db}
}

func (s *SQLResourceStore) CreateOwnership(ctx context.Context, o *permit.ResourceOwnership) error {
	grants, _ := json.Marshal(o.Grants)
	q := `INSERT OR REPLACE INTO resource_ownerships(resource_type, resource_id, owner_id, grants_json, created_at) VALUES(:resource_type, :resource_id, :owner_id, :grants_json, :created_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"resource_type": o.ResourceType,
		"resource_id":   o.ResourceID,
		"owner_id":      o.OwnerID,
		"grants_json":   string(grants),
		"created_at":    o.CreatedAt,
	})
	return err
}

func (s *SQLResourceStore) GrantsFor(ctx context.Context, resourceType, resourceID string) (*permit.ResourceOwnership, error) {
	q := `SELECT resource_type, resource_id, owner_id, grants_json, created_at FROM resource_ownerships WHERE resource_type = :resource_type AND resource_id = :resource_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{
		"resource_type": resourceType,
		"resource_id":   resourceID,
	})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("%w: resource %s/%s", permit.ErrNotFound, resourceType, resourceID)
	}
	var rt, rid, owner, grantsJSON string
	var createdRaw any
	if err := r.Scan(&rt, &rid, &owner, &grantsJSON, &createdRaw); err != nil {
		return nil, err
	}
	o := &permit.ResourceOwnership{ResourceType: rt, ResourceID: rid, OwnerID: owner}
	_ = json.Unmarshal([]byte(grantsJSON), &o.Grants)
	if createdRaw != nil {
		o.CreatedAt = scanTime(createdRaw)
	}
	return o, nil
}

// SQLGroupStore persists groups in SQL (squealx)
type SQLGroupStore struct {
	db *squealx.DB
}

func NewSQLGroupStore(db *squealx.DB) *SQLGroupStore {
	return &SQLGroupStore{db: db}
}

func (s *SQLGroupStore) CreateGroup(ctx context.Context, g *permit.Group) error {
	members, _ := json.Marshal(g.MemberIDs)
	perms, _ := json.Marshal(g.PermissionIDs)
	roles, _ := json.Marshal(g.RoleIDs)
	q := `INSERT OR REPLACE INTO groups(id, name, parent_id, members_json, perm_ids_json, role_ids_json) VALUES(:id, :name, :parent_id, :members_json, :perm_ids_json, :role_ids_json)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":            g.ID,
		"name":          g.Name,
		"parent_id":     g.ParentID,
		"members_json":  string(members),
		"perm_ids_json": string(perms),
		"role_ids_json": string(roles),
	})
	return err
}

// GroupsForUser loads all groups, resolves membership in process and
// follows parent references upward. Group counts are small; one scan
// beats a recursive query on every authorization.
func (s *SQLGroupStore) GroupsForUser(ctx context.Context, userID string) ([]*permit.Group, error) {
	q := `SELECT id, name, parent_id, members_json, perm_ids_json, role_ids_json FROM groups`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	byID := make(map[string]*permit.Group)
	for r.Next() {
		var id, name, parentID, membersJSON, permsJSON, rolesJSON string
		if err := r.Scan(&id, &name, &parentID, &membersJSON, &permsJSON, &rolesJSON); err != nil {
			return nil, err
		}
		g := &permit.Group{ID: id, Name: name, ParentID: parentID}
		_ = json.Unmarshal([]byte(membersJSON), &g.MemberIDs)
		_ = json.Unmarshal([]byte(permsJSON), &g.PermissionIDs)
		_ = json.Unmarshal([]byte(rolesJSON), &g.RoleIDs)
		byID[id] = g
	}

	seen := make(map[string]bool)
	var out []*permit.Group
	var add func(id string, depth int)
	add = func(id string, depth int) {
		if seen[id] || depth > maxTraversalDepth {
			return
		}
		g, ok := byID[id]
		if !ok {
			return
		}
		seen[id] = true
		out = append(out, g)
		if g.ParentID != "" {
			add(g.ParentID, depth+1)
		}
	}
	for id, g := range byID {
		for _, member := range g.MemberIDs {
			if member == userID {
				add(id, 0)
				break
			}
		}
	}
	return out, nil
}

// SQLUserDirectory resolves user activity from a users table
type SQLUserDirectory struct {
	db *squealx.DB
}

func NewSQLUserDirectory(db *squealx.DB) *SQLUserDirectory {
	return &SQLUserDirectory{db: db}
}

func (s *SQLUserDirectory) Status(ctx context.Context, userID string) (permit.UserStatus, error) {
	q := `SELECT active FROM users WHERE id = :id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": userID})
	if err != nil {
		return permit.UserUnknown, err
	}
	defer r.Close()
	if !r.Next() {
		return permit.UserUnknown, nil
	}
	var active int
	if err := r.Scan(&active); err != nil {
		return permit.UserUnknown, err
	}
	if active != 0 {
		return permit.UserActive, nil
	}
	return permit.UserInactive, nil
}

// SetStatus writes a user's activity flag, creating the row if needed.
func (s *SQLUserDirectory) SetStatus(ctx context.Context, userID string, status permit.UserStatus) error {
	q := `INSERT OR REPLACE INTO users(id, active) VALUES(:id, :active)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":     userID,
		"active": boolToInt(status == permit.UserActive),
	})
	return err
}
