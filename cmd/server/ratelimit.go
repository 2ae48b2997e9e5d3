package main

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// rateLimiter is a fixed-window per-client limiter: at most max
// requests per interval, keyed by client IP.
type rateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	max      int
	windows  map[string]*rateWindow
}

type rateWindow struct {
	start time.Time
	count int
}

func newRateLimiter(cfg rateLimitConfig) *rateLimiter {
	return &rateLimiter{
		interval: cfg.Interval,
		max:      cfg.MaxRequests,
		windows:  make(map[string]*rateWindow),
	}
}

func (rl *rateLimiter) allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, ok := rl.windows[client]
	if !ok || now.Sub(w.start) > rl.interval {
		rl.windows[client] = &rateWindow{start: now, count: 1}
		return true
	}
	w.count++
	return w.count <= rl.max
}

func (rl *rateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		client := c.ClientIP()
		if !rl.allow(client) {
			logrus.Warnf("rate limit exceeded for %s", client)
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				gin.H{"error": "too many requests, try again later"})
			return
		}
		c.Next()
	}
}
