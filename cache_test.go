package permit

import (
	"context"
	"testing"
	"time"
)

func TestMapCacheTTL(t *testing.T) {
	c := NewMapCache()
	defer c.Close()

	c.Set("k", "v", 50*time.Millisecond)
	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Fatalf("expected hit before expiry")
	}
	time.Sleep(80 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected miss after expiry")
	}
}

func TestMemoryEpochSource(t *testing.T) {
	ctx := context.Background()
	src := NewMemoryEpochSource()

	g0, err := src.Global(ctx)
	if err != nil {
		t.Fatalf("global: %v", err)
	}
	if err := src.BumpGlobal(ctx); err != nil {
		t.Fatalf("bump global: %v", err)
	}
	g1, _ := src.Global(ctx)
	if g1 != g0+1 {
		t.Fatalf("expected global epoch %d, got %d", g0+1, g1)
	}

	u0, _ := src.User(ctx, "u1")
	if err := src.BumpUser(ctx, "u1"); err != nil {
		t.Fatalf("bump user: %v", err)
	}
	u1, _ := src.User(ctx, "u1")
	if u1 != u0+1 {
		t.Fatalf("expected user epoch %d, got %d", u0+1, u1)
	}
	// Other users are untouched.
	if other, _ := src.User(ctx, "u2"); other != 0 {
		t.Fatalf("expected u2 epoch 0, got %d", other)
	}
}

func TestDecisionKeyEmbedsEpochs(t *testing.T) {
	rc := &Context{UserID: "u1", ResourceType: "Document", ResourceID: "d1", Kind: KindRead}
	base := decisionKey(1, 1, rc)

	if decisionKey(2, 1, rc) == base {
		t.Fatalf("global bump must change the key")
	}
	if decisionKey(1, 2, rc) == base {
		t.Fatalf("user bump must change the key")
	}
	if decisionKey(1, 1, rc) != base {
		t.Fatalf("same epochs must reproduce the key")
	}

	other := &Context{UserID: "u1", ResourceType: "Document", ResourceID: "d1", Kind: KindWrite}
	if decisionKey(1, 1, other) == base {
		t.Fatalf("different permission kind must change the key")
	}

	if aggregationKey(1, 1, "u1") == aggregationKey(1, 2, "u1") {
		t.Fatalf("user bump must change the aggregation key")
	}
}
