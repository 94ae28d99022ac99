package stores

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oarkflow/squealx"

	"github.com/permithq/permit"
)

// SQLRoleStore persists roles in SQL (squealx)
type SQLRoleStore struct {
	db *squealx.DB
}

func NewSQLRoleStore(db *squealx.DB) *SQLRoleStore {
	return &SQLRoleStore{db: db}
}

func (s *SQLRoleStore) CreateRole(ctx context.Context, r *permit.Role) error {
	children, _ := json.Marshal(r.ChildIDs)
	perms, _ := json.Marshal(r.PermissionIDs)
	q := `INSERT INTO roles(id, name, active, level, parent_id, child_ids_json, perm_ids_json, created_at) VALUES(:id, :name, :active, :level, :parent_id, :child_ids_json, :perm_ids_json, :created_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":             r.ID,
		"name":           r.Name,
		"active":         boolToInt(r.Active),
		"level":          r.Level,
		"parent_id":      r.ParentID,
		"child_ids_json": string(children),
		"perm_ids_json":  string(perms),
		"created_at":     r.CreatedAt,
	})
	return err
}

func (s *SQLRoleStore) UpdateRole(ctx context.Context, r *permit.Role) error {
	children, _ := json.Marshal(r.ChildIDs)
	perms, _ := json.Marshal(r.PermissionIDs)
	q := `UPDATE roles SET name=:name, active=:active, level=:level, parent_id=:parent_id, child_ids_json=:child_ids_json, perm_ids_json=:perm_ids_json WHERE id=:id`
	res, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":             r.ID,
		"name":           r.Name,
		"active":         boolToInt(r.Active),
		"level":          r.Level,
		"parent_id":      r.ParentID,
		"child_ids_json": string(children),
		"perm_ids_json":  string(perms),
	})
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: role %s", permit.ErrNotFound, r.ID)
	}
	return nil
}

func (s *SQLRoleStore) DeleteRole(ctx context.Context, id string) error {
	q := `DELETE FROM roles WHERE id = :id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"id": id})
	return err
}

func (s *SQLRoleStore) GetRole(ctx context.Context, id string) (*permit.Role, error) {
	return s.getRoleWhere(ctx, `id = :v`, id)
}

func (s *SQLRoleStore) GetRoleByName(ctx context.Context, name string) (*permit.Role, error) {
	return s.getRoleWhere(ctx, `name = :v`, name)
}

func (s *SQLRoleStore) getRoleWhere(ctx context.Context, where, value string) (*permit.Role, error) {
	q := `SELECT id, name, active, level, parent_id, child_ids_json, perm_ids_json, created_at FROM roles WHERE ` + where
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"v": value})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("%w: role %s", permit.ErrNotFound, value)
	}
	return scanRole(r)
}

func (s *SQLRoleStore) ListRoles(ctx context.Context) ([]*permit.Role, error) {
	q := `SELECT id, name, active, level, parent_id, child_ids_json, perm_ids_json, created_at FROM roles`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*permit.Role, 0)
	for r.Next() {
		role, err := scanRole(r)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, nil
}

// Ancestors walks parent references upward one query at a time. Bounded
// depth protects against corrupted hierarchies.
func (s *SQLRoleStore) Ancestors(ctx context.Context, roleID string) ([]*permit.Role, error) {
	start, err := s.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	var out []*permit.Role
	visited := map[string]bool{roleID: true}
	cur := start.ParentID
	for depth := 0; cur != "" && depth < maxTraversalDepth; depth++ {
		if visited[cur] {
			break
		}
		visited[cur] = true
		parent, err := s.GetRole(ctx, cur)
		if err != nil {
			break
		}
		out = append(out, parent)
		cur = parent.ParentID
	}
	return out, nil
}

func scanRole(r interface {
	Scan(dest ...any) error
}) (*permit.Role, error) {
	var id, name, parentID, childrenJSON, permsJSON string
	var active, level int
	var createdRaw any
	if err := r.Scan(&id, &name, &active, &level, &parentID, &childrenJSON, &permsJSON, &createdRaw); err != nil {
		return nil, err
	}
	role := &permit.Role{
		ID:       id,
		Name:     name,
		Active:   active != 0,
		Level:    level,
		ParentID: parentID,
	}
	_ = json.Unmarshal([]byte(childrenJSON), &role.ChildIDs)
	_ = json.Unmarshal([]byte(permsJSON), &role.PermissionIDs)
	if createdRaw != nil {
		role.CreatedAt = scanTime(createdRaw)
	}
	return role, nil
}
