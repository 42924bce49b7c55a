package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/variant-lollipop-server/internal/domain"
)

// maxTrackedClients bounds the number of per-client limiters kept in memory
const maxTrackedClients = 10000

// ClientLimiter hands out one token bucket per client key. Least recently seen
// clients are forgotten first.
type ClientLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
}

// NewClientLimiter creates a limiter allowing rps requests per second per
// client with the given burst.
func NewClientLimiter(rps float64, burst int) *ClientLimiter {
	if burst < 1 {
		burst = 1
	}
	// size is a positive constant, New cannot fail
	limiters, _ := lru.New[string, *rate.Limiter](maxTrackedClients)
	return &ClientLimiter{limit: rate.Limit(rps), burst: burst, limiters: limiters}
}

// Allow reports whether the client may proceed now.
func (l *ClientLimiter) Allow(key string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters.Get(key)
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters.Add(key, limiter)
	}
	l.mu.Unlock()
	return limiter.Allow()
}

// RateLimit rejects clients exceeding their request budget with 429.
func RateLimit(limiter *ClientLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter.Allow(c.ClientIP()) {
			c.Next()
			return
		}
		resp := domain.NewAPIError(domain.ErrRateLimit, "Rate limit exceeded", "", c.GetString(CorrelationIDKey))
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, resp)
	}
}
