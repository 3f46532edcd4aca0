package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewCache(mr.Addr(), "", 0)
	if err != nil {
		t.Fatalf("failed to connect to miniredis: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestCacheGetMissingKey(t *testing.T) {
	c, _ := newTestCache(t)

	value, found, err := c.Get(context.Background(), "price:missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found || value != "" {
		t.Errorf("expected a miss, got found=%v value=%q", found, value)
	}
}

func TestCacheSetGetAndExpire(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "price:p1:abc", `{"total":"110"}`, time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	value, found, err := c.Get(ctx, "price:p1:abc")
	if err != nil || !found {
		t.Fatalf("expected hit, got found=%v err=%v", found, err)
	}
	if value != `{"total":"110"}` {
		t.Errorf("unexpected value %q", value)
	}

	mr.FastForward(2 * time.Minute)

	if _, found, _ := c.Get(ctx, "price:p1:abc"); found {
		t.Error("expected key to expire after its TTL")
	}
}

func TestCacheDeletePrefix(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	for _, key := range []string{"price:p1:a", "price:p1:b", "price:p2:a"} {
		if err := c.Set(ctx, key, "x", time.Minute); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
	}

	deleted, err := c.DeletePrefix(ctx, "price:p1:")
	if err != nil {
		t.Fatalf("delete prefix: %v", err)
	}
	if deleted != 2 {
		t.Errorf("expected 2 deleted keys, got %d", deleted)
	}
	if _, found, _ := c.Get(ctx, "price:p2:a"); !found {
		t.Error("keys of other properties must survive")
	}
}

func TestNewCacheUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	addr := mr.Addr()
	mr.Close()

	if _, err := NewCache(addr, "", 0); err == nil {
		t.Fatal("expected ping failure for a closed server")
	}
}

func TestCacheIncrStartsWindow(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := c.Incr(ctx, "ratelimit:front-desk", time.Minute)
		if err != nil {
			t.Fatalf("incr failed: %v", err)
		}
		if got != want {
			t.Fatalf("expected count %d, got %d", want, got)
		}
	}

	if ttl := mr.TTL("ratelimit:front-desk"); ttl <= 0 || ttl > time.Minute {
		t.Errorf("expected window TTL of at most a minute, got %v", ttl)
	}
}
