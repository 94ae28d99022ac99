package stores

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oarkflow/squealx"

	"github.com/permithq/permit"
)

// SQLPolicyStore persists policies in SQL (squealx)
type SQLPolicyStore struct {
	db *squealx.DB
}

func NewSQLPolicyStore(db *squealx.DB) *SQLPolicyStore {
	return &SQLPolicyStore{db: db}
}

func (s *SQLPolicyStore) CreatePolicy(ctx context.Context, p *permit.Policy) error {
	rules, _ := json.Marshal(p.Rules)
	types, _ := json.Marshal(p.ResourceTypes)
	ids, _ := json.Marshal(p.ResourceIDs)
	q := `INSERT INTO policies(id, name, priority, rules_json, combine_logic, resource_types_json, resource_ids_json, active, created_at, updated_at) VALUES(:id, :name, :priority, :rules_json, :combine_logic, :resource_types_json, :resource_ids_json, :active, :created_at, :updated_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":                  p.ID,
		"name":                p.Name,
		"priority":            p.Priority,
		"rules_json":          string(rules),
		"combine_logic":       string(p.CombineLogic),
		"resource_types_json": string(types),
		"resource_ids_json":   string(ids),
		"active":              boolToInt(p.Active),
		"created_at":          p.CreatedAt,
		"updated_at":          p.UpdatedAt,
	})
	return err
}

func (s *SQLPolicyStore) UpdatePolicy(ctx context.Context, p *permit.Policy) error {
	rules, _ := json.Marshal(p.Rules)
	types, _ := json.Marshal(p.ResourceTypes)
	ids, _ := json.Marshal(p.ResourceIDs)
	q := `UPDATE policies SET name=:name, priority=:priority, rules_json=:rules_json, combine_logic=:combine_logic, resource_types_json=:resource_types_json, resource_ids_json=:resource_ids_json, active=:active, updated_at=:updated_at WHERE id=:id`
	res, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":                  p.ID,
		"name":                p.Name,
		"priority":            p.Priority,
		"rules_json":          string(rules),
		"combine_logic":       string(p.CombineLogic),
		"resource_types_json": string(types),
		"resource_ids_json":   string(ids),
		"active":              boolToInt(p.Active),
		"updated_at":          p.UpdatedAt,
	})
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: policy %s", permit.ErrNotFound, p.ID)
	}
	return nil
}

func (s *SQLPolicyStore) DeletePolicy(ctx context.Context, id string) error {
	q := `DELETE FROM policies WHERE id = :id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"id": id})
	return err
}

func (s *SQLPolicyStore) GetPolicy(ctx context.Context, id string) (*permit.Policy, error) {
	q := `SELECT id, name, priority, rules_json, combine_logic, resource_types_json, resource_ids_json, active, created_at, updated_at FROM policies WHERE id = :id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("%w: policy %s", permit.ErrNotFound, id)
	}
	return scanPolicy(r)
}

func (s *SQLPolicyStore) ListPolicies(ctx context.Context) ([]*permit.Policy, error) {
	q := `SELECT id, name, priority, rules_json, combine_logic, resource_types_json, resource_ids_json, active, created_at, updated_at FROM policies`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*permit.Policy, 0)
	for r.Next() {
		p, err := scanPolicy(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// ListApplicable loads active policies and filters the applicability
// rules in process; the filter lists live in JSON columns.
func (s *SQLPolicyStore) ListApplicable(ctx context.Context, resourceType, resourceID string) ([]*permit.Policy, error) {
	all, err := s.ListPolicies(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*permit.Policy, 0, len(all))
	for _, p := range all {
		if p.Active && p.AppliesTo(resourceType, resourceID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func scanPolicy(r interface {
	Scan(dest ...any) error
}) (*permit.Policy, error) {
	var id, name, rulesJSON, logic, typesJSON, idsJSON string
	var priority, active int
	var createdRaw, updatedRaw any
	if err := r.Scan(&id, &name, &priority, &rulesJSON, &logic, &typesJSON, &idsJSON, &active, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	p := &permit.Policy{
		ID:           id,
		Name:         name,
		Priority:     priority,
		CombineLogic: permit.RuleLogic(logic),
		Active:       active != 0,
	}
	_ = json.Unmarshal([]byte(rulesJSON), &p.Rules)
	_ = json.Unmarshal([]byte(typesJSON), &p.ResourceTypes)
	_ = json.Unmarshal([]byte(idsJSON), &p.ResourceIDs)
	if createdRaw != nil {
		p.CreatedAt = scanTime(createdRaw)
	}
	if updatedRaw != nil {
		p.UpdatedAt = scanTime(updatedRaw)
	}
	return p, nil
}

// SQLDynamicStore persists expression-backed permissions in SQL
type SQLDynamicStore struct {
	db *squealx.DB
}

func NewSQLDynamicStore(db *squealx.DB) *SQLDynamicStore {
	return &SQLDynamicStore{db: db}
}

func (s *SQLDynamicStore) CreateDynamicPermission(ctx context.Context, d *permit.DynamicPermission) error {
	q := `INSERT INTO dynamic_permissions(id, name, expression, kind, resource_type, active) VALUES(:id, :name, :expression, :kind, :resource_type, :active)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":            d.ID,
		"name":          d.Name,
		"expression":    d.Expression,
		"kind":          string(d.Kind),
		"resource_type": d.ResourceType,
		"active":        boolToInt(d.Active),
	})
	return err
}

func (s *SQLDynamicStore) UpdateDynamicPermission(ctx context.Context, d *permit.DynamicPermission) error {
	q := `UPDATE dynamic_permissions SET name=:name, expression=:expression, kind=:kind, resource_type=:resource_type, active=:active WHERE id=:id`
	res, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":            d.ID,
		"name":          d.Name,
		"expression":    d.Expression,
		"kind":          string(d.Kind),
		"resource_type": d.ResourceType,
		"active":        boolToInt(d.Active),
	})
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: dynamic permission %s", permit.ErrNotFound, d.ID)
	}
	return nil
}

func (s *SQLDynamicStore) DeleteDynamicPermission(ctx context.Context, id string) error {
	q := `DELETE FROM dynamic_permissions WHERE id = :id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"id": id})
	return err
}

func (s *SQLDynamicStore) ListDynamicPermissions(ctx context.Context) ([]*permit.DynamicPermission, error) {
	q := `SELECT id, name, expression, kind, resource_type, active FROM dynamic_permissions`
	return s.queryDynamic(ctx, q, map[string]any{})
}

func (s *SQLDynamicStore) ListMatching(ctx context.Context, kind permit.PermissionKind, resourceType string) ([]*permit.DynamicPermission, error) {
	q := `SELECT id, name, expression, kind, resource_type, active FROM dynamic_permissions WHERE kind = :kind AND resource_type = :resource_type AND active = 1`
	return s.queryDynamic(ctx, q, map[string]any{
		"kind":          string(kind),
		"resource_type": resourceType,
	})
}

func (s *SQLDynamicStore) queryDynamic(ctx context.Context, q string, params map[string]any) ([]*permit.DynamicPermission, error) {
	r, err := s.db.NamedQueryContext(ctx, q, params)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*permit.DynamicPermission, 0)
	for r.Next() {
		var id, name, expression, kindStr, resType string
		var active int
		if err := r.Scan(&id, &name, &expression, &kindStr, &resType, &active); err != nil {
			return nil, err
		}
		out = append(out, &permit.DynamicPermission{
			ID:           id,
			Name:         name,
			Expression:   expression,
			Kind:         permit.PermissionKind(kindStr),
			ResourceType: resType,
			Active:       active != 0,
		})
	}
	return out, nil
}
