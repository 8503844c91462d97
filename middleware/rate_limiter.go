package middleware

import (
	"net/http"
	"sync"
	"time"

	"voicebook/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// rateLimiterStore holds a map of IP addresses to their rate limiters.
type rateLimiterStore struct {
	limiters map[string]*visitor
	perMin   int
	mu       sync.Mutex
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiterStore(perMin int) *rateLimiterStore {
	if perMin <= 0 {
		perMin = 100
	}
	return &rateLimiterStore{limiters: make(map[string]*visitor), perMin: perMin}
}

// getLimiter returns the rate limiter for a given IP, creating one if it doesn't exist.
func (s *rateLimiterStore) getLimiter(ip string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, exists := s.limiters[ip]
	if !exists {
		// perMin requests per minute, all of them usable as a burst.
		v = &visitor{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(s.perMin)), s.perMin)}
		s.limiters[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

// prune forgets visitors idle for longer than ttl.
func (s *rateLimiterStore) prune(now time.Time, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ip, v := range s.limiters {
		if now.Sub(v.lastSeen) > ttl {
			delete(s.limiters, ip)
		}
	}
}

// RateLimitMiddleware limits requests per IP address to perMin per minute.
func RateLimitMiddleware(perMin int) gin.HandlerFunc {
	store := newRateLimiterStore(perMin)
	var calls int
	return func(c *gin.Context) {
		ip := getClientIP(c)
		now := time.Now()
		limiter := store.getLimiter(ip, now)

		store.mu.Lock()
		calls++
		sweep := calls%1000 == 0
		store.mu.Unlock()
		if sweep {
			store.prune(now, 10*time.Minute)
		}

		if !limiter.Allow() {
			utils.GetLogger().Warn("Rate limit exceeded", zap.String("ip", ip))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded. Try again later."})
			return
		}
		c.Next()
	}
}
