// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// RateLimiter is a process-local token bucket per caller, built on
// golang.org/x/time/rate. Requests naming a live session are keyed by that
// session, so customers polling from behind one NAT get separate buckets;
// everything else, unknown session ids included, is keyed by client IP. Replays flagged by
// IdempotencyValidator are never limited. Idle buckets are swept
// periodically to bound memory.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc selects the bucket identity for a request.
type KeyFunc func(*gin.Context) string

// KeyBySessionOrIP keys by the ":sessionId" route parameter when live
// reports that session exists, otherwise by client IP. Session ids are
// guessable, so an unknown id never earns its own bucket. A nil live keys
// everything by IP. Keys are namespaced ("session:<id>", "ip:<addr>").
func KeyBySessionOrIP(live func(sessionID string) bool) KeyFunc {
	return func(c *gin.Context) string {
		if id := c.Param("sessionId"); id != "" && live != nil && live(id) {
			return "session:" + id
		}
		return "ip:" + c.ClientIP()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is safe for concurrent use.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn KeyFunc

	mu        sync.Mutex
	visitors  map[string]*visitor
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter builds a limiter refilling rps tokens per second with the
// given burst (coerced to at least 1).
func NewRateLimiter(rps float64, burst int, keyFn KeyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:       rate.Limit(rps),
		burst:     burst,
		keyFn:     keyFn,
		visitors:  make(map[string]*visitor),
		ttl:       10 * time.Minute,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// limiterFor returns the bucket for key, creating it on first use. At most
// once per ttl it first drops buckets idle for a full ttl.
func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) >= rl.ttl {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.lastSweep = now
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// IsRateBypass reports whether IdempotencyValidator exempted this request.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler enforces the limit. A denied request gets 429 with the shared
// error envelope and a Retry-After telling the client when its bucket will
// hold a token again.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		lim := rl.limiterFor(rl.keyFn(c))
		res := lim.ReserveN(rl.now(), 1)
		if res.OK() {
			delay := res.DelayFrom(rl.now())
			if delay == 0 {
				c.Next()
				return
			}
			// Denied: give the token back so waiting does not push the window further.
			res.Cancel()
			c.Header("Retry-After", retryAfter(delay))
		} else {
			c.Header("Retry-After", "60")
		}

		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": RequestIDFrom(c),
			"code":       "too_many_requests",
			"error":      "rate limit exceeded",
		})
	}
}

// retryAfter renders d as whole seconds, rounding up, minimum 1.
func retryAfter(d time.Duration) string {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		s = 1
	}
	return strconv.Itoa(s)
}
