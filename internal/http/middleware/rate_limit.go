package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter throttles requests per client IP with a token bucket
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu         sync.RWMutex
	limiters   map[string]*rate.Limiter
	lastAccess map[string]time.Time
	now        func() time.Time
}

// NewRateLimiter allows perMinute sustained requests per IP with the given burst
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	return &RateLimiter{
		limit:      rate.Limit(float64(perMinute) / 60),
		burst:      burst,
		limiters:   make(map[string]*rate.Limiter),
		lastAccess: make(map[string]time.Time),
		now:        time.Now,
	}
}

func (r *RateLimiter) limiterFor(ip string) *rate.Limiter {
	r.mu.RLock()
	limiter, ok := r.limiters[ip]
	r.mu.RUnlock()
	if ok {
		r.mu.Lock()
		r.lastAccess[ip] = r.now()
		r.mu.Unlock()
		return limiter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if limiter, ok = r.limiters[ip]; ok {
		return limiter
	}
	limiter = rate.NewLimiter(r.limit, r.burst)
	r.limiters[ip] = limiter
	r.lastAccess[ip] = r.now()
	return limiter
}

// Cleanup forgets limiters idle for longer than maxIdle
func (r *RateLimiter) Cleanup(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for ip, seen := range r.lastAccess {
		if seen.Before(cutoff) {
			delete(r.limiters, ip)
			delete(r.lastAccess, ip)
			removed++
		}
	}
	return removed
}

// Handle returns the gin middleware
func (r *RateLimiter) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !r.limiterFor(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"status": "error", "message": "Too many requests"})
			return
		}
		c.Next()
	}
}
