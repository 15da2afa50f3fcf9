package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/trainlyhq/trainly-core/internal/cache"
)

func newKeyLimiter(t *testing.T) (*KeyLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewKeyLimiter(cache.New(client)), mr
}

func TestKeyLimiterEnforcesRPM(t *testing.T) {
	l, _ := newKeyLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "key-1", 3)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatalf("request %d rejected under the limit", i+1)
		}
	}

	ok, err := l.Allow(ctx, "key-1", 3)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("fourth request allowed over a limit of 3")
	}
}

func TestKeyLimiterWindowResets(t *testing.T) {
	l, mr := newKeyLimiter(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		l.Allow(ctx, "key-2", 2)
	}
	if ok, _ := l.Allow(ctx, "key-2", 2); ok {
		t.Fatal("over-limit request allowed")
	}

	mr.FastForward(61 * time.Second)

	if ok, _ := l.Allow(ctx, "key-2", 2); !ok {
		t.Fatal("request rejected in a fresh window")
	}
}

func TestKeyLimiterKeysIndependent(t *testing.T) {
	l, _ := newKeyLimiter(t)
	ctx := context.Background()

	l.Allow(ctx, "key-a", 1)
	if ok, _ := l.Allow(ctx, "key-a", 1); ok {
		t.Fatal("key-a should be exhausted")
	}
	if ok, _ := l.Allow(ctx, "key-b", 1); !ok {
		t.Fatal("key-b should not share key-a's window")
	}
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	rl := NewRateLimiter(0.0001, 2)
	handler := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}

	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK {
		t.Fatalf("burst requests rejected: %v", statuses)
	}
	if statuses[2] != http.StatusTooManyRequests {
		t.Fatalf("third request = %d, want 429", statuses[2])
	}
}
