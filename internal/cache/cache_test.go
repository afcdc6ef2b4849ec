package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestNoopCacheAlwaysMisses(t *testing.T) {
	ctx := context.Background()
	var c OrderIndexCache = NoopOrderIndexCache{}
	if err := c.Set(ctx, []string{"a"}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, err := c.Get(ctx); ok || err != nil {
		t.Fatalf("expected miss without error, got ok=%v err=%v", ok, err)
	}
}

func TestRedisCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("ORDERS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set ORDERS_TEST_REDIS_ADDR to run redis integration test")
	}
	ctx := context.Background()
	c := NewRedisOrderIndexCache(addr, "", 0)
	c.key = DisplayIndexKey + ":test"
	t.Cleanup(func() {
		_ = c.Invalidate(ctx)
		_ = c.Close()
	})

	if err := c.Set(ctx, []string{"b", "a"}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	ids, ok, err := c.Get(ctx)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if len(ids) != 2 || ids[0] != "b" {
		t.Fatalf("unexpected ids %v", ids)
	}
	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok, _ := c.Get(ctx); ok {
		t.Fatalf("expected miss after invalidate")
	}
}
