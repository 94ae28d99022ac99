package permit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents a complete engine configuration
type Config struct {
	Version         uint16                `json:"version" yaml:"version"`
	Roles           []*Role               `json:"roles" yaml:"roles"`
	Permissions     []*Permission         `json:"permissions" yaml:"permissions"`
	UserPermissions []UserPermissionLink  `json:"user_permissions,omitempty" yaml:"user_permissions,omitempty"`
	Assignments     []*RoleAssignment     `json:"assignments,omitempty" yaml:"assignments,omitempty"`
	Groups          []*Group              `json:"groups,omitempty" yaml:"groups,omitempty"`
	Policies        []*Policy             `json:"policies,omitempty" yaml:"policies,omitempty"`
	Ownerships      []*ResourceOwnership  `json:"ownerships,omitempty" yaml:"ownerships,omitempty"`
	Dynamic         []*DynamicPermission  `json:"dynamic_permissions,omitempty" yaml:"dynamic_permissions,omitempty"`
	Engine          EngineConfig          `json:"engine" yaml:"engine"`
}

// UserPermissionLink binds a permission directly to a user.
type UserPermissionLink struct {
	UserID       string `json:"user_id" yaml:"user_id"`
	PermissionID string `json:"permission_id" yaml:"permission_id"`
}

// EngineConfig carries cache tuning knobs.
type EngineConfig struct {
	DecisionTTL         int64 `json:"decision_ttl_ms" yaml:"decision_ttl_ms"`
	AggregationTTL      int64 `json:"aggregation_ttl_ms" yaml:"aggregation_ttl_ms"`
	RistrettoNumCounter int64 `json:"ristretto_num_counter" yaml:"ristretto_num_counter"`
	RistrettoMaxCost    int64 `json:"ristretto_max_cost" yaml:"ristretto_max_cost"`
	RistrettoBuffer     int64 `json:"ristretto_buffer" yaml:"ristretto_buffer"`
}

// ConfigLoader parses configuration from supported formats
type ConfigLoader struct{}

func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{}
}

func (l *ConfigLoader) LoadYAML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *ConfigLoader) LoadJSON(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ToYAML exports config to YAML
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// ToJSON exports config to JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// Validate reports structural problems before a config is applied.
func (c *Config) Validate() error {
	roles := make(map[string]bool, len(c.Roles))
	for _, r := range c.Roles {
		if r.ID == "" || r.Name == "" {
			return fmt.Errorf("%w: role needs id and name", ErrInvalid)
		}
		if roles[r.ID] {
			return fmt.Errorf("%w: duplicate role id %s", ErrInvalid, r.ID)
		}
		roles[r.ID] = true
	}
	for _, r := range c.Roles {
		if r.ParentID != "" && !roles[r.ParentID] {
			return fmt.Errorf("%w: role %s references unknown parent %s", ErrInvalid, r.ID, r.ParentID)
		}
	}
	perms := make(map[string]bool, len(c.Permissions))
	for _, p := range c.Permissions {
		if p.ID == "" || p.Name == "" || p.Kind == "" {
			return fmt.Errorf("%w: permission needs id, name and kind", ErrInvalid)
		}
		if perms[p.ID] {
			return fmt.Errorf("%w: duplicate permission id %s", ErrInvalid, p.ID)
		}
		perms[p.ID] = true
	}
	for _, r := range c.Roles {
		for _, pid := range r.PermissionIDs {
			if !perms[pid] {
				return fmt.Errorf("%w: role %s references unknown permission %s", ErrInvalid, r.ID, pid)
			}
		}
	}
	for _, link := range c.UserPermissions {
		if !perms[link.PermissionID] {
			return fmt.Errorf("%w: user %s references unknown permission %s", ErrInvalid, link.UserID, link.PermissionID)
		}
	}
	for _, a := range c.Assignments {
		if !roles[a.RoleID] {
			return fmt.Errorf("%w: assignment for %s references unknown role %s", ErrInvalid, a.UserID, a.RoleID)
		}
	}
	for _, p := range c.Policies {
		if p.ID == "" || p.Name == "" {
			return fmt.Errorf("%w: policy needs id and name", ErrInvalid)
		}
	}
	for _, d := range c.Dynamic {
		if d.Expression == "" {
			return fmt.Errorf("%w: dynamic permission %s has no expression", ErrInvalid, d.ID)
		}
	}
	return nil
}

// ApplyConfig loads the configuration into the engine's stores. Existing
// roles, permissions and policies with matching IDs are updated in place;
// everything else is created. Ordering follows the reference graph:
// permissions before roles that reference them, parents before children.
func (e *Engine) ApplyConfig(ctx context.Context, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Engine.DecisionTTL > 0 {
		e.decisionTTL = time.Duration(cfg.Engine.DecisionTTL) * time.Millisecond
	}
	if cfg.Engine.AggregationTTL > 0 {
		e.aggregationTTL = time.Duration(cfg.Engine.AggregationTTL) * time.Millisecond
	}
	if cfg.Engine.RistrettoNumCounter > 0 {
		c, err := NewRistrettoCache(cfg.Engine.RistrettoNumCounter, cfg.Engine.RistrettoMaxCost, cfg.Engine.RistrettoBuffer)
		if err != nil {
			return err
		}
		if e.cache != nil {
			e.cache.Close()
		}
		e.cache = c
	}

	for _, p := range cfg.Permissions {
		if _, err := e.st.Permissions.GetPermission(ctx, p.ID); err != nil {
			if err := e.CreatePermission(ctx, p); err != nil {
				return fmt.Errorf("create permission %s: %w", p.ID, err)
			}
		} else if err := e.UpdatePermission(ctx, p); err != nil {
			return fmt.Errorf("update permission %s: %w", p.ID, err)
		}
	}

	// Parents before children so level derivation sees the parent.
	for _, r := range sortRolesByDepth(cfg.Roles) {
		if _, err := e.st.Roles.GetRole(ctx, r.ID); err != nil {
			if err := e.CreateRole(ctx, r); err != nil {
				return fmt.Errorf("create role %s: %w", r.ID, err)
			}
		} else if err := e.UpdateRole(ctx, r); err != nil {
			return fmt.Errorf("update role %s: %w", r.ID, err)
		}
	}

	for _, link := range cfg.UserPermissions {
		if err := e.GrantPermissionToUser(ctx, link.UserID, link.PermissionID); err != nil {
			return fmt.Errorf("grant permission %s to %s: %w", link.PermissionID, link.UserID, err)
		}
	}

	for _, a := range cfg.Assignments {
		if err := e.AssignRole(ctx, a); err != nil {
			return fmt.Errorf("assign role %s to %s: %w", a.RoleID, a.UserID, err)
		}
	}

	for _, g := range cfg.Groups {
		if err := e.CreateGroup(ctx, g); err != nil {
			return fmt.Errorf("create group %s: %w", g.ID, err)
		}
	}

	for _, p := range cfg.Policies {
		if _, err := e.st.Policies.GetPolicy(ctx, p.ID); err != nil {
			if err := e.CreatePolicy(ctx, p); err != nil {
				return fmt.Errorf("create policy %s: %w", p.ID, err)
			}
		} else if err := e.UpdatePolicy(ctx, p); err != nil {
			return fmt.Errorf("update policy %s: %w", p.ID, err)
		}
	}

	for _, own := range cfg.Ownerships {
		if err := e.CreateOwnership(ctx, own); err != nil {
			return fmt.Errorf("record ownership %s/%s: %w", own.ResourceType, own.ResourceID, err)
		}
	}

	for _, d := range cfg.Dynamic {
		if err := e.CreateDynamicPermission(ctx, d); err != nil {
			return fmt.Errorf("create dynamic permission %s: %w", d.ID, err)
		}
	}

	return nil
}

// sortRolesByDepth orders roles so every parent precedes its children.
func sortRolesByDepth(roles []*Role) []*Role {
	byID := make(map[string]*Role, len(roles))
	for _, r := range roles {
		byID[r.ID] = r
	}
	depth := func(r *Role) int {
		d := 0
		for cur := r; cur.ParentID != ""; d++ {
			next, ok := byID[cur.ParentID]
			if !ok || d > maxRoleDepth {
				break
			}
			cur = next
		}
		return d
	}
	out := make([]*Role, len(roles))
	copy(out, roles)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && depth(out[j-1]) > depth(out[j]); j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
