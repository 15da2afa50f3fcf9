package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return New(redis.NewClient(&redis.Options{Addr: mr.Addr()})), mr
}

func TestSetGet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	type payload struct {
		Name string `json:"name"`
	}

	if err := c.Set(ctx, "k", payload{Name: "x"}, time.Minute); err != nil {
		t.Fatal(err)
	}

	var got payload
	if err := c.Get(ctx, "k", &got); err != nil {
		t.Fatal(err)
	}
	if got.Name != "x" {
		t.Errorf("got %+v", got)
	}
}

func TestCountWindow(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := c.CountWindow(ctx, "rl:key1", time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		if n != want {
			t.Errorf("count = %d, want %d", n, want)
		}
	}

	// A new window starts from zero once the TTL lapses.
	mr.FastForward(2 * time.Minute)
	n, err := c.CountWindow(ctx, "rl:key1", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("count after window = %d, want 1", n)
	}
}

func TestAcquireLock(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	ok, err := c.AcquireLock(ctx, "lock:shadow_1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}

	ok, err = c.AcquireLock(ctx, "lock:shadow_1", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("second acquire succeeded while lock held")
	}

	if err := c.ReleaseLock(ctx, "lock:shadow_1"); err != nil {
		t.Fatal(err)
	}
	ok, _ = c.AcquireLock(ctx, "lock:shadow_1", time.Minute)
	if !ok {
		t.Error("acquire after release failed")
	}
}
