package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimitMiddleware limits requests per client IP
type RateLimitMiddleware struct {
	logger   *zap.Logger
	visitors map[string]*visitor
	mutex    sync.Mutex
	limit    rate.Limit
	burst    int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimitMiddleware creates a per-IP rate limiter allowing rps
// sustained requests per second with the given burst.
func NewRateLimitMiddleware(logger *zap.Logger, rps float64, burst int) *RateLimitMiddleware {
	r := &RateLimitMiddleware{
		logger:   logger,
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(rps),
		burst:    burst,
	}

	go r.cleanupOldEntries()

	return r
}

// RateLimit rejects requests once a client's token bucket is exhausted
func (r *RateLimitMiddleware) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		r.mutex.Lock()
		v, exists := r.visitors[ip]
		if !exists {
			v = &visitor{limiter: rate.NewLimiter(r.limit, r.burst)}
			r.visitors[ip] = v
		}
		v.lastSeen = time.Now()
		r.mutex.Unlock()

		if !v.limiter.Allow() {
			r.logger.Warn("Rate limit exceeded", zap.String("ip", ip))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded, please try again later",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// cleanupOldEntries periodically drops idle visitors to bound memory use
func (r *RateLimitMiddleware) cleanupOldEntries() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		r.mutex.Lock()
		cutoff := time.Now().Add(-1 * time.Hour)
		for ip, v := range r.visitors {
			if v.lastSeen.Before(cutoff) {
				delete(r.visitors, ip)
			}
		}
		r.mutex.Unlock()
	}
}
