package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	apperrors "github.com/aredondocharro/ClothingStore-sub001/services/common/errors"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// SecurityHeaders adds security-related headers to all responses
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		// JSON only API, nothing may be loaded from responses
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	ips   map[string]*limiterEntry
	mu    sync.Mutex
	rate  rate.Limit
	burst int
	ttl   time.Duration
	now   func() time.Time
}

// NewRateLimiter creates a new rate limiter. Entries idle for longer than
// ttl are evicted until ctx is done.
func NewRateLimiter(ctx context.Context, r rate.Limit, b int, ttl time.Duration) *RateLimiter {
	rl := &RateLimiter{
		ips:   make(map[string]*limiterEntry),
		rate:  r,
		burst: b,
		ttl:   ttl,
		now:   time.Now,
	}

	go func() {
		ticker := time.NewTicker(ttl)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.evict()
			}
		}
	}()

	return rl
}

func (rl *RateLimiter) evict() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for ip, e := range rl.ips {
		if now.Sub(e.lastSeen) > rl.ttl {
			delete(rl.ips, ip)
		}
	}
}

// GetLimiter returns the rate limiter for the given IP
func (rl *RateLimiter) GetLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	entry, exists := rl.ips[ip]
	if !exists {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.ips[ip] = entry
	}
	entry.lastSeen = rl.now()
	return entry.limiter
}

// RateLimitMiddleware allows perMinute requests per client IP with the
// given burst.
func RateLimitMiddleware(ctx context.Context, perMinute, burst int) gin.HandlerFunc {
	if perMinute <= 0 {
		perMinute = 100
	}
	if burst <= 0 {
		burst = perMinute / 2
	}
	limiter := NewRateLimiter(ctx, rate.Every(time.Minute/time.Duration(perMinute)), burst, 5*time.Minute)

	return func(c *gin.Context) {
		if !limiter.GetLimiter(c.ClientIP()).Allow() {
			err := apperrors.New(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.", nil).
				WithReason("RATE_LIMITED").AsRetryable()
			c.AbortWithStatusJSON(err.Code, err)
			return
		}
		c.Next()
	}
}

// CORSMiddleware allows the comma separated origins in allowed, or any
// origin when allowed is "*". An empty list falls back to the local admin UI.
func CORSMiddleware(allowed string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	switch strings.TrimSpace(allowed) {
	case "*":
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	case "":
		cfg.AllowOrigins = []string{"http://localhost:3000", "http://localhost:3001"}
	default:
		for _, o := range strings.Split(allowed, ",") {
			if o = strings.TrimSuffix(strings.TrimSpace(o), "/"); o != "" {
				cfg.AllowOrigins = append(cfg.AllowOrigins, o)
			}
		}
	}
	return cors.New(cfg)
}
