// Package ratelimit limits requests per client with a shared Redis counter,
// falling back to an in-process token bucket when Redis is not configured.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	prommetrics "github.com/aimd54/forum-progression/internal/metrics"
	"github.com/aimd54/forum-progression/pkg/logger"
)

// Result is the outcome of one limiter check.
type Result struct {
	Allowed   bool
	Count     int64
	Remaining int64
	ResetIn   time.Duration
}

// Store counts requests per key.
type Store interface {
	CheckAndIncrement(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// incrScript increments the counter and starts the window on the first hit.
var incrScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {count, redis.call("PTTL", KEYS[1])}
`)

// RedisStore is a fixed-window counter shared by every instance.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// CheckAndIncrement counts one request against key.
func (s *RedisStore) CheckAndIncrement(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	res, err := incrScript.Run(ctx, s.client, []string{s.prefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected rate limit script reply %v", res)
	}

	count, ttl := res[0], time.Duration(res[1])*time.Millisecond
	if ttl < 0 {
		ttl = window
	}
	remaining := int64(limit) - count
	if remaining < 0 {
		remaining = 0
	}
	return &Result{
		Allowed:   count <= int64(limit),
		Count:     count,
		Remaining: remaining,
		ResetIn:   ttl,
	}, nil
}

type localLimiter struct {
	limiter *rate.Limiter
	expires time.Time
}

// LocalStore keeps one token bucket per key in process memory.
type LocalStore struct {
	mu       sync.Mutex
	limiters map[string]*localLimiter
	now      func() time.Time
}

// NewLocalStore creates an in-process store.
func NewLocalStore() *LocalStore {
	return &LocalStore{limiters: make(map[string]*localLimiter), now: time.Now}
}

// CheckAndIncrement takes one token from key's bucket. The bucket refills at
// limit per window with a burst of limit.
func (s *LocalStore) CheckAndIncrement(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	if limit <= 0 || window <= 0 {
		return nil, fmt.Errorf("invalid rate limit %d per %s", limit, window)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, l := range s.limiters {
		if now.After(l.expires) {
			delete(s.limiters, k)
		}
	}

	l, ok := s.limiters[key]
	if !ok {
		l = &localLimiter{limiter: rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)}
		s.limiters[key] = l
	}
	l.expires = now.Add(2 * window)

	allowed := l.limiter.AllowN(now, 1)
	remaining := int64(l.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return &Result{
		Allowed:   allowed,
		Count:     int64(limit) - remaining,
		Remaining: remaining,
		ResetIn:   window,
	}, nil
}

// Config configures the middleware.
type Config struct {
	Requests int
	Window   time.Duration
	KeyFunc  func(c *gin.Context) string
}

// Middleware rejects requests over the limit with 429. Store failures let the
// request through.
func Middleware(store Store, cfg Config, log *logger.Logger) gin.HandlerFunc {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}

	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		key := keyFunc(c) + ":" + route

		res, err := store.CheckAndIncrement(c.Request.Context(), key, cfg.Requests, cfg.Window)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Rate limit check failed")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Requests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(res.ResetIn).Unix(), 10))

		if !res.Allowed {
			prommetrics.RecordRateLimited(route)
			log.Warn().
				Str("key", key).
				Int64("count", res.Count).
				Msg("Rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "Rate limit exceeded. Please try again later.",
			})
			return
		}

		c.Next()
	}
}
