package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/oarkflow/squealx"

	"github.com/permithq/permit"
)

// SQLPermissionStore persists permissions and direct user-permission
// links in SQL (squealx)
type SQLPermissionStore struct {
	db *squealx.DB
}

func NewSQLPermissionStore(db *squealx.DB) *SQLPermissionStore {
	return &SQLPermissionStore{db: db}
}

func (s *SQLPermissionStore) CreatePermission(ctx context.Context, p *permit.Permission) error {
	conds, _ := json.Marshal(p.Conditions)
	q := `INSERT INTO permissions(id, name, kind, resource_type, resource_id, scope, conditions_json) VALUES(:id, :name, :kind, :resource_type, :resource_id, :scope, :conditions_json)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":              p.ID,
		"name":            p.Name,
		"kind":            string(p.Kind),
		"resource_type":   p.ResourceType,
		"resource_id":     p.ResourceID,
		"scope":           p.Scope,
		"conditions_json": string(conds),
	})
	return err
}

func (s *SQLPermissionStore) UpdatePermission(ctx context.Context, p *permit.Permission) error {
	conds, _ := json.Marshal(p.Conditions)
	q := `UPDATE permissions SET name=:name, kind=:kind, resource_type=:resource_type, resource_id=:resource_id, scope=:scope, conditions_json=:conditions_json WHERE id=:id`
	res, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":              p.ID,
		"name":            p.Name,
		"kind":            string(p.Kind),
		"resource_type":   p.ResourceType,
		"resource_id":     p.ResourceID,
		"scope":           p.Scope,
		"conditions_json": string(conds),
	})
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: permission %s", permit.ErrNotFound, p.ID)
	}
	return nil
}

func (s *SQLPermissionStore) DeletePermission(ctx context.Context, id string) error {
	if _, err := s.db.NamedExecContext(ctx, `DELETE FROM user_permissions WHERE permission_id = :id`, map[string]any{"id": id}); err != nil {
		return err
	}
	_, err := s.db.NamedExecContext(ctx, `DELETE FROM permissions WHERE id = :id`, map[string]any{"id": id})
	return err
}

func (s *SQLPermissionStore) GetPermission(ctx context.Context, id string) (*permit.Permission, error) {
	q := `SELECT id, name, kind, resource_type, resource_id, scope, conditions_json FROM permissions WHERE id = :id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("%w: permission %s", permit.ErrNotFound, id)
	}
	return scanPermission(r)
}

func (s *SQLPermissionStore) ListPermissions(ctx context.Context) ([]*permit.Permission, error) {
	q := `SELECT id, name, kind, resource_type, resource_id, scope, conditions_json FROM permissions`
	return s.queryPermissions(ctx, q, map[string]any{})
}

func (s *SQLPermissionStore) GetBatch(ctx context.Context, ids []string) ([]*permit.Permission, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	// squealx named queries take no slice expansion here; build the
	// placeholder list by hand.
	params := make(map[string]any, len(ids))
	holes := make([]string, len(ids))
	for i, id := range ids {
		name := fmt.Sprintf("id%d", i)
		params[name] = id
		holes[i] = ":" + name
	}
	q := `SELECT id, name, kind, resource_type, resource_id, scope, conditions_json FROM permissions WHERE id IN (` + strings.Join(holes, ", ") + `)`
	return s.queryPermissions(ctx, q, params)
}

func (s *SQLPermissionStore) AssignToUser(ctx context.Context, userID, permissionID string) error {
	if _, err := s.GetPermission(ctx, permissionID); err != nil {
		return err
	}
	q := `INSERT OR REPLACE INTO user_permissions(user_id, permission_id) VALUES(:user_id, :permission_id)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"user_id":       userID,
		"permission_id": permissionID,
	})
	return err
}

func (s *SQLPermissionStore) RevokeFromUser(ctx context.Context, userID, permissionID string) error {
	q := `DELETE FROM user_permissions WHERE user_id = :user_id AND permission_id = :permission_id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"user_id":       userID,
		"permission_id": permissionID,
	})
	return err
}

func (s *SQLPermissionStore) ListForUser(ctx context.Context, userID string) ([]*permit.Permission, error) {
	q := `SELECT p.id, p.name, p.kind, p.resource_type, p.resource_id, p.scope, p.conditions_json FROM permissions p JOIN user_permissions up ON up.permission_id = p.id WHERE up.user_id = :user_id`
	return s.queryPermissions(ctx, q, map[string]any{"user_id": userID})
}

func (s *SQLPermissionStore) queryPermissions(ctx context.Context, q string, params map[string]any) ([]*permit.Permission, error) {
	r, err := s.db.NamedQueryContext(ctx, q, params)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*permit.Permission, 0)
	for r.Next() {
		p, err := scanPermission(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func scanPermission(r interface {
	Scan(dest ...any) error
}) (*permit.Permission, error) {
	var id, name, kind, resourceType, resourceID, scope, condsJSON string
	if err := r.Scan(&id, &name, &kind, &resourceType, &resourceID, &scope, &condsJSON); err != nil {
		return nil, err
	}
	p := &permit.Permission{
		ID:           id,
		Name:         name,
		Kind:         permit.PermissionKind(kind),
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Scope:        scope,
	}
	_ = json.Unmarshal([]byte(condsJSON), &p.Conditions)
	return p, nil
}
