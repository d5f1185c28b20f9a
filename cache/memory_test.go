package cache

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/tenure"
)

func TestMemoryCacheHitMiss(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithTTL(time.Minute))

	if _, ok := c.Get(ctx, "u1"); ok {
		t.Fatal("expected cache miss")
	}

	c.Set(ctx, "u1", tenure.TierDecision{Tier: tenure.TierAdmin, ValidUntil: time.Now().Add(time.Minute)})
	got, ok := c.Get(ctx, "u1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Tier != tenure.TierAdmin {
		t.Fatalf("expected admin, got %s", got.Tier)
	}
}

func TestMemoryCacheHonoursValidUntil(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemory(WithTTL(time.Hour), WithClock(func() time.Time { return now }))

	c.Set(ctx, "u1", tenure.TierDecision{Tier: tenure.TierModerator, ValidUntil: now.Add(time.Second)})
	if _, ok := c.Get(ctx, "u1"); !ok {
		t.Fatal("expected hit before ValidUntil")
	}

	now = now.Add(time.Second)
	if _, ok := c.Get(ctx, "u1"); ok {
		t.Fatal("decision must not be served at ValidUntil")
	}
	if c.Len() != 0 {
		t.Fatalf("expected stale entry to be removed, len=%d", c.Len())
	}
}

func TestMemoryCacheInvalidation(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	until := time.Now().Add(time.Minute)

	c.Set(ctx, "u1", tenure.TierDecision{Tier: tenure.TierAdmin, ValidUntil: until})
	c.Set(ctx, "u2", tenure.TierDecision{Tier: tenure.TierAdmin, ValidUntil: until})

	c.InvalidateSubject(ctx, "u1")
	if _, ok := c.Get(ctx, "u1"); ok {
		t.Fatal("expected u1 to be invalidated")
	}
	if _, ok := c.Get(ctx, "u2"); !ok {
		t.Fatal("expected u2 to survive")
	}

	c.InvalidateAll(ctx)
	if c.Len() != 0 {
		t.Fatalf("expected empty cache, len=%d", c.Len())
	}
}

func TestMemoryCacheMaxSize(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithMaxSize(2))
	until := time.Now().Add(time.Minute)
	for _, s := range []string{"a", "b", "c"} {
		c.Set(ctx, s, tenure.TierDecision{Tier: tenure.TierAdmin, ValidUntil: until})
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}
	if _, ok := c.Get(ctx, "a"); ok {
		t.Fatal("expected least recently used entry to be evicted")
	}
}
