package middleware

import (
	"context"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go-tours/utils"

	"github.com/redis/go-redis/v9"
)

const rateLimitMessage = "Too many requests from this IP, please try again in an hour!"

// RateStore counts hits for a key inside a fixed window.
type RateStore interface {
	// Increment adds a hit and returns the count of the current window.
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisStore keeps counters in Redis so every instance shares the quota.
type RedisStore struct {
	rdb    redis.Cmdable
	prefix string
}

func NewRedisStore(rdb redis.Cmdable) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: "ratelimit:"}
}

// Increment runs INCR and EXPIRE NX in one transaction, so a counter never
// outlives its window.
func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	k := s.prefix + key
	var incr *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, window)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

type counter struct {
	hits  int64
	reset time.Time
}

// MemoryStore is a single-process RateStore. Expired counters are swept at
// most once per window.
type MemoryStore struct {
	mu        sync.Mutex
	counters  map[string]*counter
	nextSweep time.Time
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: map[string]*counter{}, now: time.Now}
}

func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if !now.Before(s.nextSweep) {
		for k, c := range s.counters {
			if !now.Before(c.reset) {
				delete(s.counters, k)
			}
		}
		s.nextSweep = now.Add(window)
	}
	c, ok := s.counters[key]
	if !ok || !now.Before(c.reset) {
		c = &counter{reset: now.Add(window)}
		s.counters[key] = c
	}
	c.hits++
	return c.hits, nil
}

// RateLimiter allows Limit requests per client IP in every Window.
type RateLimiter struct {
	Store  RateStore
	Limit  int64
	Window time.Duration
}

// Middleware rejects clients over their quota with 429. A failing store lets
// requests through.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, err := rl.Store.Increment(r.Context(), clientIP(r), rl.Window)
		if err != nil {
			log.Printf("rate limit store: %v", err)
			next.ServeHTTP(w, r)
			return
		}
		remaining := rl.Limit - n
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(rl.Limit, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		if n > rl.Limit {
			utils.RespondJSON(w, http.StatusTooManyRequests, map[string]string{
				"status":  "fail",
				"message": rateLimitMessage,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
