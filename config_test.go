package permit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/permithq/permit"
)

const testConfigYAML = `
version: 1
permissions:
  - id: perm-read
    name: read-documents
    kind: read
    resource_type: Document
    scope: "*"
  - id: perm-write
    name: write-documents
    kind: write
    resource_type: Document
    scope: "*"
roles:
  - id: editor
    name: Editor
    active: true
    parent_id: viewer
    permission_ids: [perm-write]
  - id: viewer
    name: Viewer
    active: true
    permission_ids: [perm-read]
assignments:
  - user_id: u1
    role_id: editor
    active: true
policies:
  - id: lockdown
    name: invoice-lockdown
    priority: 10
    active: true
    combine_logic: or
    resource_types: [Invoice]
    rules:
      - name: deny-all
        decision: deny
engine:
  decision_ttl_ms: 60000
  aggregation_ttl_ms: 120000
`

func TestLoadAndApplyYAMLConfig(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.activeUser(t, "u1")

	cfg, err := permit.NewConfigLoader().LoadYAML([]byte(testConfigYAML))
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if err := f.eng.ApplyConfig(ctx, cfg); err != nil {
		t.Fatalf("apply config: %v", err)
	}

	// Editor inherits Viewer's read even though the config lists the
	// child role before its parent.
	res := f.eng.Authorize(ctx, &permit.Context{UserID: "u1", ResourceType: "Document", ResourceID: "doc-1", Kind: permit.KindRead})
	if !res.Allowed {
		t.Fatalf("expected allow from applied config: %s", res.Reason)
	}

	res = f.eng.Authorize(ctx, &permit.Context{UserID: "u1", ResourceType: "Invoice", ResourceID: "inv-1", Kind: permit.KindRead})
	if res.Allowed {
		t.Fatalf("expected policy deny on invoices")
	}
}

func TestConfigRoundtrip(t *testing.T) {
	cfg, err := permit.NewConfigLoader().LoadYAML([]byte(testConfigYAML))
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}

	asJSON, err := cfg.ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	back, err := permit.NewConfigLoader().LoadJSON(asJSON)
	if err != nil {
		t.Fatalf("load json: %v", err)
	}
	if len(back.Roles) != len(cfg.Roles) || len(back.Policies) != len(cfg.Policies) {
		t.Fatalf("roundtrip lost entries: %+v", back)
	}
	if back.Engine.DecisionTTL != 60000 {
		t.Fatalf("engine tuning lost: %+v", back.Engine)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*permit.Config)
	}{
		{"unknown parent", func(c *permit.Config) { c.Roles[0].ParentID = "missing" }},
		{"unknown permission", func(c *permit.Config) { c.Roles[0].PermissionIDs = []string{"missing"} }},
		{"duplicate role", func(c *permit.Config) { c.Roles[1].ID = c.Roles[0].ID }},
		{"assignment to unknown role", func(c *permit.Config) { c.Assignments[0].RoleID = "missing" }},
		{"permission without kind", func(c *permit.Config) { c.Permissions[0].Kind = "" }},
	}
	for _, tc := range cases {
		cfg, err := permit.NewConfigLoader().LoadYAML([]byte(testConfigYAML))
		if err != nil {
			t.Fatalf("%s: load: %v", tc.name, err)
		}
		tc.mut(cfg)
		if err := cfg.Validate(); !errors.Is(err, permit.ErrInvalid) {
			t.Fatalf("%s: expected ErrInvalid, got %v", tc.name, err)
		}
	}
}
