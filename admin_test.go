package permit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/permithq/permit"
	"github.com/permithq/permit/celeval"
)

func TestRoleCycleRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a := permit.NewRoleBuilder().ID("a").Name("A").Build()
	if err := f.eng.CreateRole(ctx, a); err != nil {
		t.Fatalf("create a: %v", err)
	}
	b := permit.NewRoleBuilder().ID("b").Name("B").Parent("a").Build()
	if err := f.eng.CreateRole(ctx, b); err != nil {
		t.Fatalf("create b: %v", err)
	}
	if b.Level != 1 {
		t.Fatalf("expected derived level 1, got %d", b.Level)
	}

	// Reparenting a under b closes a cycle and must be rejected.
	a.ParentID = "b"
	err := f.eng.UpdateRole(ctx, a)
	if !errors.Is(err, permit.ErrRoleCycle) {
		t.Fatalf("expected ErrRoleCycle, got %v", err)
	}

	// Self-parenting is the one-node cycle.
	c := permit.NewRoleBuilder().ID("c").Name("C").Parent("c").Build()
	if err := f.eng.CreateRole(ctx, c); !errors.Is(err, permit.ErrRoleCycle) {
		t.Fatalf("expected ErrRoleCycle for self parent, got %v", err)
	}
}

func TestFailedCreateLeavesParentUnlinked(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	parent := permit.NewRoleBuilder().ID("parent").Name("Parent").Build()
	if err := f.eng.CreateRole(ctx, parent); err != nil {
		t.Fatalf("create parent: %v", err)
	}
	other := permit.NewRoleBuilder().ID("other").Name("Other").Build()
	if err := f.eng.CreateRole(ctx, other); err != nil {
		t.Fatalf("create other: %v", err)
	}

	// Colliding ID makes the store reject the create. The parent must not
	// be left pointing at a child that was never created.
	dup := permit.NewRoleBuilder().ID("other").Name("Duplicate").Parent("parent").Build()
	if err := f.eng.CreateRole(ctx, dup); !errors.Is(err, permit.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for duplicate role id, got %v", err)
	}

	got, err := f.st.Roles.GetRole(ctx, "parent")
	if err != nil {
		t.Fatalf("get parent: %v", err)
	}
	if len(got.ChildIDs) != 0 {
		t.Fatalf("failed create left dangling child reference: %v", got.ChildIDs)
	}
}

func TestDeleteRoleInUse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.activeUser(t, "u1")

	parent := permit.NewRoleBuilder().ID("parent").Name("Parent").Build()
	if err := f.eng.CreateRole(ctx, parent); err != nil {
		t.Fatalf("create parent: %v", err)
	}
	child := permit.NewRoleBuilder().ID("child").Name("Child").Parent("parent").Build()
	if err := f.eng.CreateRole(ctx, child); err != nil {
		t.Fatalf("create child: %v", err)
	}

	if err := f.eng.DeleteRole(ctx, "parent"); !errors.Is(err, permit.ErrRoleInUse) {
		t.Fatalf("expected ErrRoleInUse for role with active child, got %v", err)
	}

	if err := f.eng.AssignRole(ctx, &permit.RoleAssignment{UserID: "u1", RoleID: "child", Active: true}); err != nil {
		t.Fatalf("assign child: %v", err)
	}
	if err := f.eng.DeleteRole(ctx, "child"); !errors.Is(err, permit.ErrRoleInUse) {
		t.Fatalf("expected ErrRoleInUse for assigned role, got %v", err)
	}

	// Detach everything, then deletion goes through.
	if err := f.eng.RevokeRole(ctx, "u1", "child"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := f.eng.DeleteRole(ctx, "child"); err != nil {
		t.Fatalf("delete child after revoke: %v", err)
	}
	if err := f.eng.DeleteRole(ctx, "parent"); err != nil {
		t.Fatalf("delete parent after child removal: %v", err)
	}
}

func TestGrantOnResourceAppends(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.activeUser(t, "u1")
	f.activeUser(t, "u2")

	first := permit.NewGrantBuilder().User("u1").Kinds(permit.KindRead).Build()
	if err := f.eng.GrantOnResource(ctx, "Document", "doc-1", first); err != nil {
		t.Fatalf("first grant: %v", err)
	}
	second := permit.NewGrantBuilder().User("u2").Kinds(permit.KindWrite).Build()
	if err := f.eng.GrantOnResource(ctx, "Document", "doc-1", second); err != nil {
		t.Fatalf("second grant: %v", err)
	}

	if res := f.eng.Authorize(ctx, &permit.Context{UserID: "u1", ResourceType: "Document", ResourceID: "doc-1", Kind: permit.KindRead}); !res.Allowed {
		t.Fatalf("expected u1 read allow: %s", res.Reason)
	}
	if res := f.eng.Authorize(ctx, &permit.Context{UserID: "u2", ResourceType: "Document", ResourceID: "doc-1", Kind: permit.KindWrite}); !res.Allowed {
		t.Fatalf("expected u2 write allow: %s", res.Reason)
	}
	if res := f.eng.Authorize(ctx, &permit.Context{UserID: "u1", ResourceType: "Document", ResourceID: "doc-1", Kind: permit.KindWrite}); res.Allowed {
		t.Fatalf("expected u1 write deny")
	}
}

func TestBrokenDynamicExpressionRejected(t *testing.T) {
	ctx := context.Background()
	evaluator, err := celeval.New()
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}
	f := newFixture(t, permit.WithEvaluator(evaluator))

	err = f.eng.CreateDynamicPermission(ctx, &permit.DynamicPermission{
		ID: "bad", Name: "bad", Expression: "broken(", Kind: permit.KindRead, ResourceType: "Doc", Active: true,
	})
	if !errors.Is(err, permit.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for unevaluable expression, got %v", err)
	}
}
