package stores

import (
	"context"
	"errors"
	"testing"

	"github.com/permithq/permit"
)

func TestMemoryRoleStoreAncestors(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryRoleStore()

	roles := []*permit.Role{
		{ID: "root", Name: "Root", Active: true},
		{ID: "mid", Name: "Mid", Active: true, ParentID: "root", Level: 1},
		{ID: "leaf", Name: "Leaf", Active: true, ParentID: "mid", Level: 2},
	}
	for _, r := range roles {
		if err := s.CreateRole(ctx, r); err != nil {
			t.Fatalf("create %s: %v", r.ID, err)
		}
	}

	anc, err := s.Ancestors(ctx, "leaf")
	if err != nil {
		t.Fatalf("ancestors: %v", err)
	}
	if len(anc) != 2 || anc[0].ID != "mid" || anc[1].ID != "root" {
		t.Fatalf("unexpected ancestor chain: %+v", anc)
	}

	if _, err := s.Ancestors(ctx, "missing"); !errors.Is(err, permit.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// A corrupted cycle must terminate, not spin.
	if err := s.UpdateRole(ctx, &permit.Role{ID: "root", Name: "Root", Active: true, ParentID: "leaf"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := s.Ancestors(ctx, "leaf"); err != nil {
		t.Fatalf("cyclic ancestors: %v", err)
	}
}

func TestMemoryRoleStoreClonesOnRead(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryRoleStore()
	if err := s.CreateRole(ctx, &permit.Role{ID: "r", Name: "R", Active: true, PermissionIDs: []string{"p1"}}); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := s.GetRole(ctx, "r")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got.PermissionIDs[0] = "mutated"
	again, _ := s.GetRole(ctx, "r")
	if again.PermissionIDs[0] != "p1" {
		t.Fatalf("store state leaked through returned pointer")
	}
}

func TestMemoryGroupStoreTransitive(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryGroupStore()

	groups := []*permit.Group{
		{ID: "org", Name: "Org", PermissionIDs: []string{"p-org"}},
		{ID: "dept", Name: "Dept", ParentID: "org", RoleIDs: []string{"r-dept"}},
		{ID: "team", Name: "Team", ParentID: "dept", MemberIDs: []string{"u1"}},
	}
	for _, g := range groups {
		if err := s.CreateGroup(ctx, g); err != nil {
			t.Fatalf("create %s: %v", g.ID, err)
		}
	}

	got, err := s.GroupsForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("groups for user: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected team plus both parents, got %d groups", len(got))
	}

	if got, _ := s.GroupsForUser(ctx, "stranger"); len(got) != 0 {
		t.Fatalf("expected no groups for non-member, got %d", len(got))
	}
}

func TestMemoryAssignmentStoreUpsert(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryAssignmentStore()

	if err := s.Assign(ctx, &permit.RoleAssignment{UserID: "u1", RoleID: "r1", Active: true}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	// Re-assigning the same pair replaces, not duplicates.
	if err := s.Assign(ctx, &permit.RoleAssignment{UserID: "u1", RoleID: "r1", Active: false}); err != nil {
		t.Fatalf("reassign: %v", err)
	}
	list, err := s.ListForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Active {
		t.Fatalf("expected single replaced assignment, got %+v", list)
	}

	byRole, err := s.ListForRole(ctx, "r1")
	if err != nil {
		t.Fatalf("list for role: %v", err)
	}
	if len(byRole) != 1 || byRole[0].UserID != "u1" {
		t.Fatalf("unexpected role listing: %+v", byRole)
	}

	if err := s.Revoke(ctx, "u1", "r1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := s.Revoke(ctx, "u1", "r1"); !errors.Is(err, permit.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double revoke, got %v", err)
	}
}

func TestMemoryPermissionStoreUserLinks(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryPermissionStore()

	if err := s.CreatePermission(ctx, &permit.Permission{ID: "p1", Name: "read", Kind: permit.KindRead}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.AssignToUser(ctx, "u1", "p1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := s.AssignToUser(ctx, "u1", "missing"); !errors.Is(err, permit.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown permission, got %v", err)
	}

	perms, err := s.ListForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(perms) != 1 || perms[0].ID != "p1" {
		t.Fatalf("unexpected user permissions: %+v", perms)
	}

	// Deleting the permission also drops the link.
	if err := s.DeletePermission(ctx, "p1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if perms, _ := s.ListForUser(ctx, "u1"); len(perms) != 0 {
		t.Fatalf("expected link removed with permission, got %+v", perms)
	}
}

func TestMemoryPolicyStoreListApplicable(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryPolicyStore()

	policies := []*permit.Policy{
		{ID: "any", Name: "any", Active: true},
		{ID: "reports", Name: "reports", Active: true, ResourceTypes: []string{"Report"}},
		{ID: "one-doc", Name: "one-doc", Active: true, ResourceTypes: []string{"Document"}, ResourceIDs: []string{"doc-1"}},
	}
	for _, p := range policies {
		if err := s.CreatePolicy(ctx, p); err != nil {
			t.Fatalf("create %s: %v", p.ID, err)
		}
	}

	got, err := s.ListApplicable(ctx, "Report", "rep-1")
	if err != nil {
		t.Fatalf("list applicable: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected unfiltered and Report policies, got %d", len(got))
	}

	got, _ = s.ListApplicable(ctx, "Document", "doc-2")
	for _, p := range got {
		if p.ID == "one-doc" {
			t.Fatalf("id-constrained policy leaked to another document")
		}
	}
}
