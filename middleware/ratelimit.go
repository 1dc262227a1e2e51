package middleware

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

const (
	// cleanupThreshold is the minimum map size before a cleanup pass runs.
	cleanupThreshold = 500
	maxIdleAge       = 10 * time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedRateLimiter hands out one token bucket per key (user ID or IP) and
// prunes idle buckets inline.
type KeyedRateLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	r       rate.Limit
	b       int
}

func NewKeyedRateLimiter(r rate.Limit, b int) *KeyedRateLimiter {
	return &KeyedRateLimiter{entries: make(map[string]*limiterEntry), r: r, b: b}
}

func (l *KeyedRateLimiter) Get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) > cleanupThreshold {
		cutoff := time.Now().Add(-maxIdleAge)
		for k, e := range l.entries {
			if e.lastSeen.Before(cutoff) {
				delete(l.entries, k)
			}
		}
	}

	e, ok := l.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.r, l.b)}
		l.entries[key] = e
	}
	e.lastSeen = time.Now()
	return e.limiter
}

// RateLimitMiddleware limits money-moving requests per signed-in user,
// falling back to the client IP.
func RateLimitMiddleware(limiter *KeyedRateLimiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.IP()
		if userID, ok := c.Locals(LocalUserID).(string); ok && userID != "" {
			key = "user:" + userID
		}
		if !limiter.Get(key).Allow() {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests, slow down",
				"code":  "rate_limited",
			})
		}
		return c.Next()
	}
}

// DefaultRateLimiter allows a burst of five requests, then one per second.
func DefaultRateLimiter() *KeyedRateLimiter {
	return NewKeyedRateLimiter(rate.Every(time.Second), 5)
}
