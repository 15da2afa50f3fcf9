package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/trainlyhq/trainly-core/internal/cache"
)

type visitor struct {
	tokens   float64
	lastSeen time.Time
}

// RateLimiter is a per-IP token bucket for the public surface. Per-key
// limits on the scoped API use KeyLimiter instead, which is shared across
// instances through redis.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     float64
	burst    float64
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rps,
		burst:    float64(burst),
	}
	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr

		rl.mu.Lock()
		v, exists := rl.visitors[ip]
		if !exists {
			v = &visitor{tokens: rl.burst, lastSeen: time.Now()}
			rl.visitors[ip] = v
		}

		elapsed := time.Since(v.lastSeen).Seconds()
		v.tokens += elapsed * rl.rate
		if v.tokens > rl.burst {
			v.tokens = rl.burst
		}
		v.lastSeen = time.Now()

		if v.tokens < 1 {
			rl.mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
			return
		}

		v.tokens--
		rl.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) cleanup() {
	for {
		time.Sleep(time.Minute)
		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if time.Since(v.lastSeen) > 3*time.Minute {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// KeyLimiter enforces each integration key's configured requests-per-minute
// with a fixed redis window, so the limit holds across API instances.
type KeyLimiter struct {
	cache *cache.Cache
}

func NewKeyLimiter(c *cache.Cache) *KeyLimiter {
	return &KeyLimiter{cache: c}
}

// Allow counts one request against the key's minute window. Redis being
// down fails open: dropping queries because bookkeeping is unreachable is
// the worse trade.
func (l *KeyLimiter) Allow(ctx context.Context, keyID string, rpm int) (bool, error) {
	if rpm <= 0 {
		return true, nil
	}
	count, err := l.cache.CountWindow(ctx, "ratelimit:key:"+keyID, time.Minute)
	if err != nil {
		return true, err
	}
	return count <= int64(rpm), nil
}
