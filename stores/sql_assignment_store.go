package stores

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oarkflow/squealx"

	"github.com/permithq/permit"
)

// SQLAssignmentStore persists user-role assignments in SQL (squealx)
type SQLAssignmentStore struct {
	db *squealx.DB
}

func NewSQLAssignmentStore(db *squealx.DB) *SQLAssignmentStore {
	return &SQLAssignmentStore{db: db}
}

func (s *SQLAssignmentStore) Assign(ctx context.Context, a *permit.RoleAssignment) error {
	conds, _ := json.Marshal(a.Conditions)
	q := `INSERT OR REPLACE INTO role_assignments(user_id, role_id, valid_from, valid_until, active, conditions_json) VALUES(:user_id, :role_id, :valid_from, :valid_until, :active, :conditions_json)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"user_id":         a.UserID,
		"role_id":         a.RoleID,
		"valid_from":      a.ValidFrom,
		"valid_until":     a.ValidUntil,
		"active":          boolToInt(a.Active),
		"conditions_json": string(conds),
	})
	return err
}

func (s *SQLAssignmentStore) Revoke(ctx context.Context, userID, roleID string) error {
	q := `DELETE FROM role_assignments WHERE user_id = :user_id AND role_id = :role_id`
	res, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"user_id": userID,
		"role_id": roleID,
	})
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: assignment of %s to %s", permit.ErrNotFound, roleID, userID)
	}
	return nil
}

func (s *SQLAssignmentStore) ListForUser(ctx context.Context, userID string) ([]*permit.RoleAssignment, error) {
	q := `SELECT user_id, role_id, valid_from, valid_until, active, conditions_json FROM role_assignments WHERE user_id = :user_id`
	return s.queryAssignments(ctx, q, map[string]any{"user_id": userID})
}

func (s *SQLAssignmentStore) ListForRole(ctx context.Context, roleID string) ([]*permit.RoleAssignment, error) {
	q := `SELECT user_id, role_id, valid_from, valid_until, active, conditions_json FROM role_assignments WHERE role_id = :role_id`
	return s.queryAssignments(ctx, q, map[string]any{"role_id": roleID})
}

func (s *SQLAssignmentStore) queryAssignments(ctx context.Context, q string, params map[string]any) ([]*permit.RoleAssignment, error) {
	r, err := s.db.NamedQueryContext(ctx, q, params)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*permit.RoleAssignment, 0)
	for r.Next() {
		var userID, roleID, condsJSON string
		var active int
		var fromRaw, untilRaw any
		if err := r.Scan(&userID, &roleID, &fromRaw, &untilRaw, &active, &condsJSON); err != nil {
			return nil, err
		}
		a := &permit.RoleAssignment{UserID: userID, RoleID: roleID, Active: active != 0}
		if fromRaw != nil {
			a.ValidFrom = scanTime(fromRaw)
		}
		if untilRaw != nil {
			a.ValidUntil = scanTime(untilRaw)
		}
		_ = json.Unmarshal([]byte(condsJSON), &a.Conditions)
		out = append(out, a)
	}
	return out, nil
}
