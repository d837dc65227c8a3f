package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type clientBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimit caps requests per client IP with a token bucket. The HTTP
// surface here is only the health endpoint and the WS handshake, so the
// limit mostly guards against handshake floods.
func RateLimit(limit rate.Limit, burst int) gin.HandlerFunc {
	var (
		mu      sync.Mutex
		buckets = make(map[string]*clientBucket)
		nextGC  = time.Now().Add(limiterIdleTTL)
	)

	take := func(ip string) bool {
		now := time.Now()
		mu.Lock()
		defer mu.Unlock()

		if now.After(nextGC) {
			for ip, b := range buckets {
				if now.Sub(b.lastSeen) > limiterIdleTTL {
					delete(buckets, ip)
				}
			}
			nextGC = now.Add(limiterIdleTTL)
		}

		b, ok := buckets[ip]
		if !ok {
			b = &clientBucket{lim: rate.NewLimiter(limit, burst)}
			buckets[ip] = b
		}
		b.lastSeen = now
		return b.lim.Allow()
	}

	return func(c *gin.Context) {
		if !take(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
