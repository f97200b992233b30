package middlewares

import (
	"sync"

	"github.com/gin-gonic/gin"

	"backend/pkg/resp"

	"golang.org/x/time/rate"
)

// ClientLimiter keeps one token bucket per client key. It is owned by main
// and injected where throttling is needed, rather than living as package
// state.
type ClientLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func NewClientLimiter(limit rate.Limit, burst int) *ClientLimiter {
	return &ClientLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

func (l *ClientLimiter) Allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// RateLimit rejects requests whose client IP has exhausted its tokens.
func RateLimit(l *ClientLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			resp.TooManyRequests(c, "Too many requests")
			c.Abort()
			return
		}
	}
}
